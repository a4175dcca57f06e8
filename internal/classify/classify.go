// Package classify decodes raw frames into a closed set of classes.
//
// Every inbound frame is decoded exactly once at the transport boundary and
// labelled Ignore, Advisory, or Snapshot. Unknown kinds are Ignore rather
// than errors so newer servers cannot break older clients.
package classify

import (
	"encoding/json"
	"fmt"

	"github.com/rickgao/statesync/internal/model"
)

// Class labels a decoded frame.
type Class int

const (
	// ClassIgnore marks frames that carry no new truth: heartbeats,
	// progress pings, and unrecognized kinds.
	ClassIgnore Class = iota

	// ClassAdvisory marks operator hints. Advisories never mutate state
	// and are delivered only to subscribers that opted in.
	ClassAdvisory

	// ClassSnapshot marks state-bearing frames whose payload replaces the
	// current snapshot wholesale.
	ClassSnapshot
)

func (c Class) String() string {
	switch c {
	case ClassAdvisory:
		return "advisory"
	case ClassSnapshot:
		return "snapshot"
	default:
		return "ignore"
	}
}

// Frame kinds with meaning beyond classification. KindAuthRejected is
// surfaced so the connection manager can feed it into the retry path.
const (
	KindAuthRejected = "auth_rejected"
)

// advisoryKinds are the recognized advisory tags.
var advisoryKinds = map[string]bool{
	"advisory": true,
	"notice":   true,
}

// Result is the outcome of classifying one frame.
type Result struct {
	Class    Class
	Kind     string          // discriminant as sent by the server
	Advisory json.RawMessage // set when Class == ClassAdvisory
	Snapshot model.StateSnapshot
}

// envelope is the wire shape of a frame. Servers have shipped both
// kind/type and data/payload spellings; both are accepted.
type envelope struct {
	Kind    string          `json:"kind"`
	Type    string          `json:"type"`
	Data    json.RawMessage `json:"data"`
	Payload json.RawMessage `json:"payload"`
}

// snapshotWire is the payload shape of a state-bearing frame. Unknown
// fields are ignored; absent optional fields default neutrally.
type snapshotWire struct {
	Nodes    []model.Node     `json:"nodes"`
	Edges    []model.Edge     `json:"edges"`
	Counters map[string]int64 `json:"counters"`
	Mode     string           `json:"mode"`
}

// Classify decodes and labels a single raw frame.
//
// A malformed frame returns an error; the caller logs and drops that one
// frame without touching connection state. Classification is idempotent:
// the same bytes always yield the same result.
func Classify(raw []byte) (Result, error) {
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return Result{}, fmt.Errorf("decode envelope: %w", err)
	}

	kind := env.Kind
	if kind == "" {
		kind = env.Type
	}

	payload := env.Data
	if payload == nil {
		payload = env.Payload
	}

	if advisoryKinds[kind] {
		return Result{Class: ClassAdvisory, Kind: kind, Advisory: payload}, nil
	}

	// No payload means no new truth: heartbeats and progress-only pings.
	if emptyPayload(payload) {
		return Result{Class: ClassIgnore, Kind: kind}, nil
	}

	snap, err := DecodeSnapshot(payload)
	if err != nil {
		return Result{}, fmt.Errorf("decode %q payload: %w", kind, err)
	}

	return Result{Class: ClassSnapshot, Kind: kind, Snapshot: snap}, nil
}

// DecodeSnapshot maps a payload onto the canonical snapshot shape. The
// one-shot resync endpoint returns the same shape, so the REST client
// shares this decoder.
func DecodeSnapshot(payload []byte) (model.StateSnapshot, error) {
	var wire snapshotWire
	if err := json.Unmarshal(payload, &wire); err != nil {
		return model.StateSnapshot{}, err
	}

	snap := model.StateSnapshot{
		Nodes:    wire.Nodes,
		Edges:    wire.Edges,
		Counters: wire.Counters,
		Mode:     wire.Mode,
	}
	if snap.Nodes == nil {
		snap.Nodes = []model.Node{}
	}

	return snap, nil
}

func emptyPayload(p json.RawMessage) bool {
	return len(p) == 0 || string(p) == "null"
}
