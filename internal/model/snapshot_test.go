package model

import "testing"

func TestStateSnapshot_IsEmpty(t *testing.T) {
	tests := []struct {
		name string
		snap StateSnapshot
		want bool
	}{
		{"zero value", StateSnapshot{}, true},
		{"counters only", StateSnapshot{Counters: map[string]int64{"events": 10}}, true},
		{"mode only", StateSnapshot{Mode: "degraded"}, true},
		{"one node", StateSnapshot{Nodes: []Node{{ID: "a"}}}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.snap.IsEmpty(); got != tt.want {
				t.Errorf("IsEmpty() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestStateSnapshot_Clone(t *testing.T) {
	orig := StateSnapshot{
		Nodes: []Node{
			{ID: "a", Attrs: map[string]string{"zone": "east"}},
			{ID: "b"},
		},
		Edges:    []Edge{{Source: "a", Target: "b"}},
		Counters: map[string]int64{"events": 3},
		Mode:     "live",
	}

	clone := orig.Clone()
	if !clone.Equal(orig) {
		t.Fatal("clone should equal original")
	}

	// Mutating the clone must not reach the original.
	clone.Nodes[0].Attrs["zone"] = "west"
	clone.Counters["events"] = 99

	if orig.Nodes[0].Attrs["zone"] != "east" {
		t.Error("clone mutation leaked into original node attrs")
	}
	if orig.Counters["events"] != 3 {
		t.Error("clone mutation leaked into original counters")
	}
}

func TestStateSnapshot_Equal(t *testing.T) {
	a := StateSnapshot{
		Nodes:    []Node{{ID: "a", Status: "up"}},
		Counters: map[string]int64{"events": 1},
	}

	b := a.Clone()
	if !a.Equal(b) {
		t.Error("clone should compare equal")
	}

	b.Nodes[0].Status = "down"
	if a.Equal(b) {
		t.Error("differing node status should not compare equal")
	}
}
