// Package graph holds the in-memory story graph and its serialized form.
// It is pure data: no validation is performed beyond what (de)serialization
// itself requires.
package graph

import "encoding/json"

// Graph is the mutable knowledge graph for one story: nodes keyed by id
// (unordered) and an ordered edge list. Edge endpoints SHOULD reference
// existing node ids, but the model does not enforce it — dangling references
// from partially filtered proposals are an accepted edge case.
type Graph struct {
	Nodes map[string]*Node
	Edges []*Edge
}

// New creates an empty graph
func New() *Graph {
	return &Graph{
		Nodes: make(map[string]*Node),
		Edges: []*Edge{},
	}
}

// Clone returns a deep copy of the graph. Version snapshots rely on this to
// stay immutable once committed.
func (g *Graph) Clone() *Graph {
	out := &Graph{
		Nodes: make(map[string]*Node, len(g.Nodes)),
		Edges: make([]*Edge, 0, len(g.Edges)),
	}
	for id, n := range g.Nodes {
		out.Nodes[id] = n.Clone()
	}
	for _, e := range g.Edges {
		out.Edges = append(out.Edges, e.Clone())
	}
	return out
}

// NodeIDs returns the set of node ids currently in the graph
func (g *Graph) NodeIDs() map[string]struct{} {
	ids := make(map[string]struct{}, len(g.Nodes))
	for id := range g.Nodes {
		ids[id] = struct{}{}
	}
	return ids
}

// HasNode reports whether a node id exists in the graph
func (g *Graph) HasNode(id string) bool {
	_, ok := g.Nodes[id]
	return ok
}

// serializedGraph is the persisted shape: nodes as a mapping keyed by id,
// edges as an ordered list
type serializedGraph struct {
	Nodes map[string]*Node `json:"nodes"`
	Edges []*Edge          `json:"edges"`
}

// MarshalJSON serializes the graph without validating it (the graph is
// assumed valid)
func (g *Graph) MarshalJSON() ([]byte, error) {
	s := serializedGraph{Nodes: g.Nodes, Edges: g.Edges}
	if s.Nodes == nil {
		s.Nodes = map[string]*Node{}
	}
	if s.Edges == nil {
		s.Edges = []*Edge{}
	}
	return json.Marshal(s)
}

// UnmarshalJSON deserializes a graph, applying two total normalizations so
// that structurally valid JSON always yields a usable graph:
//   - legacy node type tags are rewritten to their current names
//   - edges persisted without ids get a deterministic id
func (g *Graph) UnmarshalJSON(data []byte) error {
	var s serializedGraph
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}

	g.Nodes = make(map[string]*Node, len(s.Nodes))
	for id, n := range s.Nodes {
		if n == nil {
			// a JSON null entry decodes to a nil pointer; drop it
			continue
		}
		if n.ID == "" {
			n.ID = id // the map key is authoritative
		}
		n.Type = NormalizeNodeType(n.Type)
		g.Nodes[id] = n
	}

	g.Edges = make([]*Edge, 0, len(s.Edges))
	for _, e := range s.Edges {
		if e == nil {
			continue
		}
		g.Edges = append(g.Edges, NormalizeEdge(e))
	}
	return nil
}
