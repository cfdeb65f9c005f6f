package patch

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"storyforge-backend/domain/graph"
)

// Extras carries the non-graph outputs extracted from a change package.
// Context additions mutate story metadata; stashed ideas take a separate
// creation path. Neither belongs in the patch itself.
type Extras struct {
	ContextAdditions []ContextAddition
	StashedIdeas     []StashedIdea
}

// ToPatch converts a change package into an ordered op list against
// baseVersionID. Conversion is total for structurally well-typed packages;
// it performs no reference checking. Callers must run Validate before
// committing the result.
func ToPatch(pkg *ChangePackage, baseVersionID string) (*Patch, *Extras) {
	nodes, edges := pkg.flatten()

	ops := make([]PatchOp, 0, len(nodes)+len(edges))
	for _, nc := range nodes {
		switch nc.Action {
		case ActionAdd:
			ops = append(ops, AddNode{Node: graph.NewNode(nc.ID, nc.Type, nc.Data)})
		case ActionModify:
			ops = append(ops, UpdateNode{ID: nc.ID, Fields: nc.Data})
		case ActionDelete:
			ops = append(ops, DeleteNode{ID: nc.ID})
		}
	}
	for _, ec := range edges {
		switch ec.Action {
		case ActionAdd:
			ops = append(ops, AddEdge{Edge: &graph.Edge{
				ID:         uuid.New().String(),
				Type:       ec.Type,
				From:       ec.From,
				To:         ec.To,
				Properties: ec.Properties,
				Provenance: &graph.Provenance{
					Source:  graph.ProvenanceAI,
					PatchID: pkg.ID,
				},
			}})
		case ActionDelete:
			ops = append(ops, DeleteEdge{Type: ec.Type, From: ec.From, To: ec.To})
		}
	}

	p := &Patch{
		ID:            uuid.New().String(),
		BaseVersionID: baseVersionID,
		CreatedAt:     time.Now().UTC(),
		Ops:           ops,
	}
	if pkg.Description != "" {
		p.Metadata = map[string]interface{}{"description": pkg.Description}
	}

	extras := &Extras{
		ContextAdditions: pkg.ContextAdditions,
		StashedIdeas:     pkg.StashedIdeas,
	}
	return p, extras
}

// ValidationResult collects every precondition failure in a package so the
// caller can show all problems at once
type ValidationResult struct {
	Valid  bool
	Errors []string
}

// Validate checks a package's references against the node ids of the target
// graph. Modify and delete node changes must reference existing ids, as must
// both endpoints of an edge deletion. Additions are never invalid here; new
// ids are assumed fresh. The check is advisory: ToPatch does not re-run it.
func Validate(pkg *ChangePackage, existingIDs map[string]struct{}) ValidationResult {
	var errs []string
	nodes, edges := pkg.flatten()

	for _, nc := range nodes {
		if nc.Action == ActionAdd {
			continue
		}
		if _, ok := existingIDs[nc.ID]; !ok {
			errs = append(errs, fmt.Sprintf("node change '%s' references unknown node '%s'", nc.Action, nc.ID))
		}
	}
	for _, ec := range edges {
		if ec.Action != ActionDelete {
			continue
		}
		if _, ok := existingIDs[ec.From]; !ok {
			errs = append(errs, fmt.Sprintf("edge delete (%s) references unknown node '%s'", ec.Type, ec.From))
		}
		if _, ok := existingIDs[ec.To]; !ok {
			errs = append(errs, fmt.Sprintf("edge delete (%s) references unknown node '%s'", ec.Type, ec.To))
		}
	}

	return ValidationResult{Valid: len(errs) == 0, Errors: errs}
}

// Apply folds a patch over g and returns the resulting graph. The fold is
// permissive: updates to missing nodes and deletions of missing nodes or
// edges are no-ops, and adding an existing node id replaces it. g is not
// mutated.
func Apply(g *graph.Graph, p *Patch) *graph.Graph {
	next := g.Clone()

	for _, op := range p.Ops {
		switch o := op.(type) {
		case AddNode:
			next.Nodes[o.Node.ID] = o.Node.Clone()
		case UpdateNode:
			if node, ok := next.Nodes[o.ID]; ok {
				node.Merge(o.Fields)
			}
		case DeleteNode:
			delete(next.Nodes, o.ID)
			kept := next.Edges[:0]
			for _, e := range next.Edges {
				if e.From == o.ID || e.To == o.ID {
					continue
				}
				kept = append(kept, e)
			}
			next.Edges = kept
		case AddEdge:
			next.Edges = append(next.Edges, o.Edge.Clone())
		case DeleteEdge:
			key := graph.EdgeKey{Type: o.Type, From: o.From, To: o.To}
			kept := next.Edges[:0]
			for _, e := range next.Edges {
				if e.Key() == key {
					continue
				}
				kept = append(kept, e)
			}
			next.Edges = kept
		}
	}

	return next
}
