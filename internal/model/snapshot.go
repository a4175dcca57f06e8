package model

// Node is one vertex of the synchronized graph.
type Node struct {
	ID     string            `json:"id"`
	Label  string            `json:"label,omitempty"`
	Kind   string            `json:"kind,omitempty"`
	Status string            `json:"status,omitempty"`
	Attrs  map[string]string `json:"attrs,omitempty"`
}

// Edge is a directed connection between two nodes.
type Edge struct {
	ID     string `json:"id,omitempty"`
	Source string `json:"source"`
	Target string `json:"target"`
	Label  string `json:"label,omitempty"`
}

// StateSnapshot is a complete representation of server-side state.
//
// Snapshots are treated as immutable: producers build a fresh value and
// consumers must not mutate what they receive. Use Clone before modifying.
type StateSnapshot struct {
	Nodes    []Node           `json:"nodes"`
	Edges    []Edge           `json:"edges,omitempty"`
	Counters map[string]int64 `json:"counters,omitempty"`
	Mode     string           `json:"mode,omitempty"`
}

// IsEmpty reports whether the snapshot carries no meaningful state.
//
// Nodes are the primary collection: a snapshot without nodes cannot have
// edges that reference anything, so counters and mode flags alone do not
// make a snapshot worth caching.
func (s StateSnapshot) IsEmpty() bool {
	return len(s.Nodes) == 0
}

// Clone returns a deep copy safe to mutate independently.
func (s StateSnapshot) Clone() StateSnapshot {
	out := StateSnapshot{Mode: s.Mode}

	if s.Nodes != nil {
		out.Nodes = make([]Node, len(s.Nodes))
		for i, n := range s.Nodes {
			out.Nodes[i] = n
			if n.Attrs != nil {
				attrs := make(map[string]string, len(n.Attrs))
				for k, v := range n.Attrs {
					attrs[k] = v
				}
				out.Nodes[i].Attrs = attrs
			}
		}
	}

	if s.Edges != nil {
		out.Edges = make([]Edge, len(s.Edges))
		copy(out.Edges, s.Edges)
	}

	if s.Counters != nil {
		out.Counters = make(map[string]int64, len(s.Counters))
		for k, v := range s.Counters {
			out.Counters[k] = v
		}
	}

	return out
}

// Equal reports whether two snapshots carry identical state.
func (s StateSnapshot) Equal(other StateSnapshot) bool {
	if s.Mode != other.Mode ||
		len(s.Nodes) != len(other.Nodes) ||
		len(s.Edges) != len(other.Edges) ||
		len(s.Counters) != len(other.Counters) {
		return false
	}

	for i, n := range s.Nodes {
		o := other.Nodes[i]
		if n.ID != o.ID || n.Label != o.Label || n.Kind != o.Kind || n.Status != o.Status {
			return false
		}
		if len(n.Attrs) != len(o.Attrs) {
			return false
		}
		for k, v := range n.Attrs {
			if o.Attrs[k] != v {
				return false
			}
		}
	}

	for i, e := range s.Edges {
		if e != other.Edges[i] {
			return false
		}
	}

	for k, v := range s.Counters {
		if other.Counters[k] != v {
			return false
		}
	}

	return true
}
