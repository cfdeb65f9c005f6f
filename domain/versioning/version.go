package versioning

import (
	"time"

	"github.com/google/uuid"

	"storyforge-backend/domain/graph"
)

// Version is an immutable, parent-linked snapshot of the graph at one point
// in the edit history. A nil ParentID marks a root version.
type Version struct {
	ID          string                 `json:"id"`
	ParentID    *string                `json:"parentId,omitempty"`
	Label       string                 `json:"label"`
	CreatedAt   time.Time              `json:"createdAt"`
	Graph       *graph.Graph           `json:"graph"`
	Annotations map[string]interface{} `json:"annotations,omitempty"`
}

// newVersion snapshots the graph into a fresh version. The caller owns
// linking it into the history.
func newVersion(parentID *string, label string, g *graph.Graph, annotations map[string]interface{}) *Version {
	return &Version{
		ID:          uuid.New().String(),
		ParentID:    parentID,
		Label:       label,
		CreatedAt:   time.Now().UTC(),
		Graph:       g.Clone(),
		Annotations: annotations,
	}
}

// VersionSummary is the read-only projection returned by version listings
type VersionSummary struct {
	ID        string    `json:"id"`
	ParentID  *string   `json:"parentId,omitempty"`
	Label     string    `json:"label"`
	CreatedAt time.Time `json:"createdAt"`
	// BranchHead names the branch whose head this version is, if any
	BranchHead string `json:"branchHead,omitempty"`
	IsCurrent  bool   `json:"isCurrent"`
}
