package versioning

import "time"

// MainBranch is created at story initialization and can never be deleted
const MainBranch = "main"

// Branch is a named, mutable pointer to a version. HeadVersionID is
// reassigned whenever a commit is made while the branch is active.
type Branch struct {
	Name          string    `json:"name"`
	HeadVersionID string    `json:"headVersionId"`
	CreatedAt     time.Time `json:"createdAt"`
	Description   string    `json:"description,omitempty"`
}

// BranchSummary is the read-only projection returned by branch listings
type BranchSummary struct {
	Name          string    `json:"name"`
	HeadVersionID string    `json:"headVersionId"`
	CreatedAt     time.Time `json:"createdAt"`
	Description   string    `json:"description,omitempty"`
	IsCurrent     bool      `json:"isCurrent"`
}
