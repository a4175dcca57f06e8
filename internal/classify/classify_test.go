package classify

import (
	"testing"
)

func TestClassify_Heartbeat(t *testing.T) {
	// Heartbeats carry no data field and must be ignored.
	res, err := Classify([]byte(`{"kind":"heartbeat"}`))
	if err != nil {
		t.Fatalf("Classify failed: %v", err)
	}
	if res.Class != ClassIgnore {
		t.Errorf("class = %v, want ignore", res.Class)
	}
	if res.Kind != "heartbeat" {
		t.Errorf("kind = %q, want heartbeat", res.Kind)
	}
}

func TestClassify_NullData(t *testing.T) {
	res, err := Classify([]byte(`{"kind":"progress","data":null}`))
	if err != nil {
		t.Fatalf("Classify failed: %v", err)
	}
	if res.Class != ClassIgnore {
		t.Errorf("class = %v, want ignore", res.Class)
	}
}

func TestClassify_Advisory(t *testing.T) {
	res, err := Classify([]byte(`{"kind":"advisory","data":{"message":"maintenance at 02:00"}}`))
	if err != nil {
		t.Fatalf("Classify failed: %v", err)
	}
	if res.Class != ClassAdvisory {
		t.Fatalf("class = %v, want advisory", res.Class)
	}
	if len(res.Advisory) == 0 {
		t.Error("advisory payload should be preserved")
	}
}

func TestClassify_Snapshot(t *testing.T) {
	raw := []byte(`{"type":"state","data":{"nodes":[{"id":"a"},{"id":"b"},{"id":"c"}],"edges":[{"source":"a","target":"b"}]}}`)

	res, err := Classify(raw)
	if err != nil {
		t.Fatalf("Classify failed: %v", err)
	}
	if res.Class != ClassSnapshot {
		t.Fatalf("class = %v, want snapshot", res.Class)
	}
	if got := len(res.Snapshot.Nodes); got != 3 {
		t.Errorf("nodes = %d, want 3", got)
	}
	if got := len(res.Snapshot.Edges); got != 1 {
		t.Errorf("edges = %d, want 1", got)
	}
}

func TestClassify_NeutralDefaults(t *testing.T) {
	// Absent optional fields default neutrally, not to nil surprises.
	res, err := Classify([]byte(`{"kind":"state","data":{"counters":{"events":5}}}`))
	if err != nil {
		t.Fatalf("Classify failed: %v", err)
	}
	if res.Class != ClassSnapshot {
		t.Fatalf("class = %v, want snapshot", res.Class)
	}
	if res.Snapshot.Nodes == nil {
		t.Error("nodes should default to empty slice")
	}
	if res.Snapshot.Mode != "" {
		t.Errorf("mode = %q, want empty", res.Snapshot.Mode)
	}
}

func TestClassify_UnknownKindWithPayload(t *testing.T) {
	// Forward compatibility: unknown kinds with a state-shaped payload are
	// still mapped, never errors.
	res, err := Classify([]byte(`{"kind":"state_v9","data":{"nodes":[{"id":"x"}]}}`))
	if err != nil {
		t.Fatalf("Classify failed: %v", err)
	}
	if res.Class != ClassSnapshot {
		t.Errorf("class = %v, want snapshot", res.Class)
	}
}

func TestClassify_UnknownFieldsIgnored(t *testing.T) {
	raw := []byte(`{"kind":"state","shard":7,"data":{"nodes":[{"id":"a","future_field":true}]}}`)
	res, err := Classify(raw)
	if err != nil {
		t.Fatalf("Classify failed: %v", err)
	}
	if res.Class != ClassSnapshot || len(res.Snapshot.Nodes) != 1 {
		t.Errorf("unexpected result: %+v", res)
	}
}

func TestClassify_Malformed(t *testing.T) {
	if _, err := Classify([]byte(`{not json`)); err == nil {
		t.Error("malformed frame should return an error")
	}
	if _, err := Classify([]byte(`{"kind":"state","data":{"nodes":"nope"}}`)); err == nil {
		t.Error("malformed payload should return an error")
	}
}

func TestClassify_Idempotent(t *testing.T) {
	raw := []byte(`{"kind":"state","data":{"nodes":[{"id":"a"},{"id":"b"}],"mode":"live"}}`)

	first, err := Classify(raw)
	if err != nil {
		t.Fatalf("Classify failed: %v", err)
	}
	second, err := Classify(raw)
	if err != nil {
		t.Fatalf("Classify failed: %v", err)
	}

	if first.Class != second.Class {
		t.Errorf("classes differ: %v vs %v", first.Class, second.Class)
	}
	if !first.Snapshot.Equal(second.Snapshot) {
		t.Error("derived snapshots differ between identical classifications")
	}
}

func TestClassify_AuthRejected(t *testing.T) {
	res, err := Classify([]byte(`{"kind":"auth_rejected"}`))
	if err != nil {
		t.Fatalf("Classify failed: %v", err)
	}
	if res.Kind != KindAuthRejected {
		t.Errorf("kind = %q, want %q", res.Kind, KindAuthRejected)
	}
	if res.Class != ClassIgnore {
		t.Errorf("class = %v, want ignore", res.Class)
	}
}
