package services

import (
	"context"

	"go.uber.org/zap"

	"storyforge-backend/application/ports"
	"storyforge-backend/domain/graph"
	"storyforge-backend/domain/story"
	"storyforge-backend/domain/versioning"
	pkgerrors "storyforge-backend/pkg/errors"
)

// VersionService exposes the history navigation surface: checkout, branch
// management, and listings
type VersionService struct {
	store  ports.StoryStore
	logger *zap.Logger
}

// NewVersionService creates a version service
func NewVersionService(store ports.StoryStore, logger *zap.Logger) *VersionService {
	return &VersionService{store: store, logger: logger}
}

// CreateStory initializes a new story
func (s *VersionService) CreateStory(ctx context.Context, storyID string, meta story.Metadata) (*story.Document, error) {
	return s.store.CreateStory(ctx, storyID, meta)
}

// GetStory loads a story document, migrating it if needed
func (s *VersionService) GetStory(ctx context.Context, storyID string) (*story.Document, error) {
	if storyID == "" {
		return nil, pkgerrors.NewValidationError("story id is required")
	}
	return s.store.Load(ctx, storyID)
}

// ListStories lists every readable story
func (s *VersionService) ListStories(ctx context.Context) ([]story.Summary, error) {
	return s.store.ListStories(ctx)
}

// CurrentGraph returns the graph at the story's current version
func (s *VersionService) CurrentGraph(ctx context.Context, storyID string) (*graph.Graph, error) {
	return s.store.CurrentGraph(ctx, storyID)
}

// Checkout moves the story's current position to versionID
func (s *VersionService) Checkout(ctx context.Context, storyID, versionID string) error {
	if versionID == "" {
		return pkgerrors.NewValidationError("version id is required")
	}
	return s.store.Checkout(ctx, storyID, versionID)
}

// ListVersions returns version summaries, newest first
func (s *VersionService) ListVersions(ctx context.Context, storyID string) ([]versioning.VersionSummary, error) {
	return s.store.ListVersions(ctx, storyID)
}

// CreateBranch creates and activates a branch at the current version
func (s *VersionService) CreateBranch(ctx context.Context, storyID, name, description string) (*versioning.Branch, error) {
	if name == "" {
		return nil, pkgerrors.NewValidationError("branch name is required")
	}
	return s.store.CreateBranch(ctx, storyID, name, description)
}

// SwitchBranch activates an existing branch
func (s *VersionService) SwitchBranch(ctx context.Context, storyID, name string) error {
	if name == "" {
		return pkgerrors.NewValidationError("branch name is required")
	}
	return s.store.SwitchBranch(ctx, storyID, name)
}

// DeleteBranch removes a branch pointer
func (s *VersionService) DeleteBranch(ctx context.Context, storyID, name string) error {
	return s.store.DeleteBranch(ctx, storyID, name)
}

// ListBranches returns branch summaries, newest first
func (s *VersionService) ListBranches(ctx context.Context, storyID string) ([]versioning.BranchSummary, error) {
	return s.store.ListBranches(ctx, storyID)
}

// UpdateMetadata merges a partial metadata patch without creating a version
func (s *VersionService) UpdateMetadata(ctx context.Context, storyID string, patch map[string]interface{}) (*story.Document, error) {
	if len(patch) == 0 {
		return nil, pkgerrors.NewValidationError("metadata patch is required")
	}
	return s.store.UpdateMetadata(ctx, storyID, patch)
}
