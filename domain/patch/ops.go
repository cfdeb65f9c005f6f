package patch

import (
	"time"

	"storyforge-backend/domain/graph"
)

// OpKind discriminates the PatchOp union
type OpKind string

const (
	OpAddNode    OpKind = "addNode"
	OpUpdateNode OpKind = "updateNode"
	OpDeleteNode OpKind = "deleteNode"
	OpAddEdge    OpKind = "addEdge"
	OpDeleteEdge OpKind = "deleteEdge"
)

// PatchOp is one atomic graph mutation
type PatchOp interface {
	Kind() OpKind
}

// AddNode inserts a full node, replacing any node with the same id
type AddNode struct {
	Node *graph.Node
}

func (AddNode) Kind() OpKind { return OpAddNode }

// UpdateNode merges a partial field set into an existing node's data
type UpdateNode struct {
	ID     string
	Fields map[string]interface{}
}

func (UpdateNode) Kind() OpKind { return OpUpdateNode }

// DeleteNode removes a node and every edge touching it
type DeleteNode struct {
	ID string
}

func (DeleteNode) Kind() OpKind { return OpDeleteNode }

// AddEdge appends a fully formed edge
type AddEdge struct {
	Edge *graph.Edge
}

func (AddEdge) Kind() OpKind { return OpAddEdge }

// DeleteEdge removes every edge matching the (type, from, to) key
type DeleteEdge struct {
	Type string
	From string
	To   string
}

func (DeleteEdge) Kind() OpKind { return OpDeleteEdge }

// Patch is a transient description of the transition from one graph to the
// next. It is consumed immediately to produce a new version and is never
// persisted.
type Patch struct {
	ID            string
	BaseVersionID string
	CreatedAt     time.Time
	Ops           []PatchOp
	Metadata      map[string]interface{}
}
