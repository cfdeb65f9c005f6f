// Package ports declares the interfaces application services depend on.
// Infrastructure supplies the implementations.
package ports

import (
	"context"

	"storyforge-backend/domain/graph"
	"storyforge-backend/domain/story"
	"storyforge-backend/domain/versioning"
)

// StoryStore is the persistence boundary for story documents. Every
// mutating call runs inside the store's per-story critical section.
type StoryStore interface {
	CreateStory(ctx context.Context, storyID string, meta story.Metadata) (*story.Document, error)
	Load(ctx context.Context, storyID string) (*story.Document, error)
	Update(ctx context.Context, storyID string, fn func(doc *story.Document) error) (*story.Document, error)

	Commit(ctx context.Context, storyID string, g *graph.Graph, label string, metadataPatch map[string]interface{}) (string, error)
	Checkout(ctx context.Context, storyID, versionID string) error
	CreateBranch(ctx context.Context, storyID, name, description string) (*versioning.Branch, error)
	SwitchBranch(ctx context.Context, storyID, name string) error
	DeleteBranch(ctx context.Context, storyID, name string) error

	CurrentGraph(ctx context.Context, storyID string) (*graph.Graph, error)
	ListVersions(ctx context.Context, storyID string) ([]versioning.VersionSummary, error)
	ListBranches(ctx context.Context, storyID string) ([]versioning.BranchSummary, error)
	ListStories(ctx context.Context) ([]story.Summary, error)
	UpdateMetadata(ctx context.Context, storyID string, patch map[string]interface{}) (*story.Document, error)
}
