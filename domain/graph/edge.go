package graph

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// Provenance sources
const (
	ProvenanceAI   = "ai-generated"
	ProvenanceUser = "user"
)

// Provenance records how an edge came to exist. PatchID is a non-owning
// back-reference to the patch that created the edge.
type Provenance struct {
	Source  string `json:"source"`
	PatchID string `json:"patchId,omitempty"`
}

// Edge is a directed, typed relationship between two node ids
type Edge struct {
	ID         string                 `json:"id"`
	Type       string                 `json:"type"`
	From       string                 `json:"from"`
	To         string                 `json:"to"`
	Properties map[string]interface{} `json:"properties,omitempty"`
	Provenance *Provenance            `json:"provenance,omitempty"`
}

// Clone returns a deep copy of the edge
func (e *Edge) Clone() *Edge {
	out := &Edge{
		ID:   e.ID,
		Type: e.Type,
		From: e.From,
		To:   e.To,
	}
	if e.Properties != nil {
		out.Properties = deepCopyValue(e.Properties).(map[string]interface{})
	}
	if e.Provenance != nil {
		p := *e.Provenance
		out.Provenance = &p
	}
	return out
}

// Key returns the (type, from, to) triple that identifies an edge for
// deletion. Callers proposing a deletion may not know the stored id, so
// deletion matches by this key rather than by edge id.
func (e *Edge) Key() EdgeKey {
	return EdgeKey{Type: e.Type, From: e.From, To: e.To}
}

// EdgeKey identifies an edge by its type and endpoints
type EdgeKey struct {
	Type string `json:"type"`
	From string `json:"from"`
	To   string `json:"to"`
}

// NormalizeEdge assigns a deterministic id to an edge persisted before edge
// ids were mandatory. It is total and pure: an edge that already carries an
// id is returned unchanged.
func NormalizeEdge(e *Edge) *Edge {
	if e.ID != "" {
		return e
	}
	out := e.Clone()
	out.ID = DeterministicEdgeID(e.Type, e.From, e.To)
	return out
}

// DeterministicEdgeID derives a stable id from the edge key so that repeated
// loads of legacy data assign the same id
func DeterministicEdgeID(edgeType, from, to string) string {
	sum := sha256.Sum256([]byte(fmt.Sprintf("%s|%s|%s", edgeType, from, to)))
	return "edge-" + hex.EncodeToString(sum[:])[:16]
}
