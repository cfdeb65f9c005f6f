package patch

// Change actions accepted in change packages
const (
	ActionAdd    = "add"
	ActionModify = "modify"
	ActionDelete = "delete"
)

// NodeChange is one proposed node mutation
type NodeChange struct {
	Action string                 `json:"action" validate:"required,oneof=add modify delete"`
	ID     string                 `json:"id" validate:"required"`
	Type   string                 `json:"type,omitempty" validate:"required_if=Action add"`
	Data   map[string]interface{} `json:"data,omitempty"`
}

// EdgeChange is one proposed edge mutation. Deletions match by the
// (type, from, to) key rather than by stored edge id.
type EdgeChange struct {
	Action     string                 `json:"action" validate:"required,oneof=add delete"`
	Type       string                 `json:"type" validate:"required"`
	From       string                 `json:"from" validate:"required"`
	To         string                 `json:"to" validate:"required"`
	Properties map[string]interface{} `json:"properties,omitempty"`
}

// ChangeSet groups node and edge changes that belong together
type ChangeSet struct {
	Description string       `json:"description,omitempty"`
	Nodes       []NodeChange `json:"nodes,omitempty" validate:"dive"`
	Edges       []EdgeChange `json:"edges,omitempty" validate:"dive"`
}

// ContextAddition is a structured suggestion to mutate story context
// metadata. It rides alongside graph changes but never becomes a PatchOp.
type ContextAddition struct {
	Section string `json:"section" validate:"required,oneof=constitution operational"`
	Field   string `json:"field" validate:"required"`
	Value   string `json:"value" validate:"required"`
}

// StashedIdea is a proposed Idea node that the caller deferred rather than
// committing to the graph
type StashedIdea struct {
	Title string                 `json:"title" validate:"required"`
	Data  map[string]interface{} `json:"data,omitempty"`
}

// ChangePackage is the external payload converted by the engine. Two shapes
// coexist: the legacy flat Nodes/Edges lists and the richer
// Primary/Supporting change sets. When both are present the enhanced shape
// wins and the legacy lists are ignored.
type ChangePackage struct {
	ID          string `json:"id,omitempty"`
	Description string `json:"description,omitempty"`

	// legacy flat shape
	Nodes []NodeChange `json:"nodes,omitempty" validate:"dive"`
	Edges []EdgeChange `json:"edges,omitempty" validate:"dive"`

	// enhanced shape
	Primary    *ChangeSet  `json:"primary,omitempty"`
	Supporting []ChangeSet `json:"supporting,omitempty" validate:"dive"`

	ContextAdditions []ContextAddition `json:"contextAdditions,omitempty" validate:"dive"`
	StashedIdeas     []StashedIdea     `json:"stashedIdeas,omitempty" validate:"dive"`
}

// IsEnhanced reports whether the package uses the primary/supporting shape
func (p *ChangePackage) IsEnhanced() bool {
	return p.Primary != nil || len(p.Supporting) > 0
}

// flatten resolves the shape union once, producing one canonical ordered
// node-change list and one edge-change list. Downstream code never branches
// on shape again.
func (p *ChangePackage) flatten() ([]NodeChange, []EdgeChange) {
	if !p.IsEnhanced() {
		return p.Nodes, p.Edges
	}

	var nodes []NodeChange
	var edges []EdgeChange
	if p.Primary != nil {
		nodes = append(nodes, p.Primary.Nodes...)
		edges = append(edges, p.Primary.Edges...)
	}
	for _, set := range p.Supporting {
		nodes = append(nodes, set.Nodes...)
		edges = append(edges, set.Edges...)
	}
	return nodes, edges
}
