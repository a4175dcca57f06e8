package connection

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/rickgao/statesync/internal/backoff"
	"github.com/rickgao/statesync/internal/fallback"
	"github.com/rickgao/statesync/internal/model"
)

// Errors
var (
	ErrNotConnected    = errors.New("not connected")
	ErrStaleConnection = errors.New("connection stale (no ping)")
	ErrAlreadyClosed   = errors.New("already closed")
	ErrAuthRejected    = errors.New("authentication frame rejected")
	ErrExhausted       = errors.New("reconnection attempts exhausted")
)

// State is the lifecycle position of one logical channel, process-wide.
type State int

const (
	StateIdle State = iota
	StateConnecting
	StateOpen
	StateClosed
	StateExhausted
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateConnecting:
		return "connecting"
	case StateOpen:
		return "open"
	case StateClosed:
		return "closed"
	case StateExhausted:
		return "exhausted"
	default:
		return "unknown"
	}
}

// TimestampedMessage wraps raw frame bytes with a receive timestamp.
type TimestampedMessage struct {
	Data       []byte    // Raw frame bytes from the transport
	ReceivedAt time.Time // Local timestamp when the read returned
}

// Update is a snapshot delivery to a subscriber.
type Update struct {
	Snapshot   model.StateSnapshot
	Synthetic  bool // true when fabricated by the fallback generator
	ReceivedAt time.Time
}

// Listener receives deliveries from the manager. OnUpdate is required;
// OnAdvisory is the advisory opt-in; OnState is optional.
type Listener struct {
	OnUpdate   func(Update)
	OnAdvisory func(json.RawMessage)
	OnState    func(State)
}

// authFrame is sent once after every successful open when a credential is
// available.
type authFrame struct {
	Kind  string `json:"kind"`
	Token string `json:"token"`
}

func encodeAuthFrame(tok string) ([]byte, error) {
	return json.Marshal(authFrame{Kind: "auth", Token: tok})
}

// ChannelConfig configures a WebSocket channel.
type ChannelConfig struct {
	URL          string        // WebSocket URL
	PingTimeout  time.Duration // Max time without ping before considering connection stale
	WriteTimeout time.Duration // Write deadline for sends
	BufferSize   int           // Message channel buffer size
}

// DefaultChannelConfig returns sensible defaults.
func DefaultChannelConfig() ChannelConfig {
	return ChannelConfig{
		PingTimeout:  60 * time.Second,
		WriteTimeout: 5 * time.Second,
		BufferSize:   1000,
	}
}

// ManagerConfig configures the Connection Manager for one logical channel.
type ManagerConfig struct {
	Channel   string // logical channel name, also the cache namespace
	StreamURL string // WebSocket URL

	Policy   backoff.Policy
	Fallback fallback.Config

	PingTimeout  time.Duration
	WriteTimeout time.Duration
	BufferSize   int

	// Dial overrides transport construction, for tests and alternate
	// transports. Nil means a WebSocket channel against StreamURL.
	Dial func() Channel

	// OnUnauthorized is the external auth:unauthorized signal, fired after
	// the cache is cleared and reconnection suspended.
	OnUnauthorized func()
}

// DefaultManagerConfig returns sensible defaults for a channel.
func DefaultManagerConfig(channel string) ManagerConfig {
	return ManagerConfig{
		Channel:      channel,
		Policy:       backoff.Default(),
		Fallback:     fallback.DefaultConfig(),
		PingTimeout:  60 * time.Second,
		WriteTimeout: 5 * time.Second,
		BufferSize:   1000,
	}
}

// Stats provides a point-in-time view of the manager.
type Stats struct {
	State             State
	Subscribers       int
	Attempts          int
	FramesReceived    int64
	SnapshotsAccepted int64
	DecodeErrors      int64
}
