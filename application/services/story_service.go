// Package services implements the application use cases over the story
// store and the patch engine.
package services

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"storyforge-backend/application/ports"
	"storyforge-backend/domain/graph"
	"storyforge-backend/domain/patch"
	"storyforge-backend/domain/story"
	pkgerrors "storyforge-backend/pkg/errors"
	"storyforge-backend/pkg/utils"
)

// StoryService coordinates change-package application, idea stashing, and
// the read surface
type StoryService struct {
	store  ports.StoryStore
	logger *zap.Logger
}

// NewStoryService creates a story service
func NewStoryService(store ports.StoryStore, logger *zap.Logger) *StoryService {
	return &StoryService{store: store, logger: logger}
}

// ApplyResult reports the outcome of applying a change package
type ApplyResult struct {
	VersionID    string   `json:"versionId"`
	StashedIdeas []string `json:"stashedIdeas,omitempty"`
	Warnings     []string `json:"warnings,omitempty"`
}

// ApplyChangePackage validates pkg against the story's current graph,
// converts it to a patch, applies it, and commits the result as a new
// version. Everything after validation happens inside the story's critical
// section, so the graph checked is the graph patched. Context-addition and
// stashed-idea side channels are processed after the commit.
func (s *StoryService) ApplyChangePackage(ctx context.Context, storyID string, pkg *patch.ChangePackage, label string) (*ApplyResult, error) {
	if pkg == nil {
		return nil, pkgerrors.NewValidationError("change package is required")
	}
	if err := utils.ValidateStruct(pkg); err != nil {
		return nil, err
	}
	if pkg.ID == "" {
		pkg.ID = uuid.New().String()
	}
	if label == "" {
		label = "Applied changes"
	}

	result := &ApplyResult{}
	_, err := s.store.Update(ctx, storyID, func(doc *story.Document) error {
		g := doc.History.CurrentGraph()

		if vr := patch.Validate(pkg, g.NodeIDs()); !vr.Valid {
			return pkgerrors.NewValidationError("change package failed validation").
				WithDetail("errors", strings.Join(vr.Errors, "; "))
		}

		p, extras := patch.ToPatch(pkg, doc.History.CurrentVersionID)
		next := patch.Apply(g, p)

		annotations := map[string]interface{}{"patchId": p.ID, "packageId": pkg.ID}
		if pkg.Description != "" {
			annotations["description"] = pkg.Description
		}
		result.VersionID = doc.History.Commit(next, label, annotations)

		if doc.Metadata.Context == nil {
			doc.Metadata.Context = story.DefaultStoryContext()
		}
		for _, add := range extras.ContextAdditions {
			if err := doc.Metadata.Context.Apply(add.Section, add.Field, add.Value); err != nil {
				// bad suggestion, committed graph stands; report and move on
				result.Warnings = append(result.Warnings, err.Error())
			}
		}
		for _, idea := range extras.StashedIdeas {
			result.StashedIdeas = append(result.StashedIdeas, idea.Title)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("change package applied",
		zap.String("storyId", storyID),
		zap.String("packageId", pkg.ID),
		zap.String("versionId", result.VersionID))
	return result, nil
}

// StashIdeas commits deferred ideas as Idea nodes in a single new version.
// Ideas take this separate creation path because they are not part of the
// change set they arrived with.
func (s *StoryService) StashIdeas(ctx context.Context, storyID string, ideas []patch.StashedIdea) (string, error) {
	if len(ideas) == 0 {
		return "", pkgerrors.NewValidationError("at least one idea is required")
	}
	for i := range ideas {
		if err := utils.ValidateStruct(&ideas[i]); err != nil {
			return "", err
		}
	}

	var versionID string
	_, err := s.store.Update(ctx, storyID, func(doc *story.Document) error {
		g := doc.History.CurrentGraph()
		for _, idea := range ideas {
			data := map[string]interface{}{"title": idea.Title}
			for k, v := range idea.Data {
				data[k] = v
			}
			node := graph.NewNode(uuid.New().String(), graph.TypeIdea, data)
			g.Nodes[node.ID] = node
		}
		versionID = doc.History.Commit(g, "Stashed ideas", nil)
		return nil
	})
	if err != nil {
		return "", err
	}

	s.logger.Info("ideas stashed",
		zap.String("storyId", storyID),
		zap.Int("count", len(ideas)),
		zap.String("versionId", versionID))
	return versionID, nil
}

// UpdateContext applies structured context additions without touching the
// graph or creating a version
func (s *StoryService) UpdateContext(ctx context.Context, storyID string, additions []patch.ContextAddition) (*story.StoryContext, error) {
	if len(additions) == 0 {
		return nil, pkgerrors.NewValidationError("at least one context addition is required")
	}
	for i := range additions {
		if err := utils.ValidateStruct(&additions[i]); err != nil {
			return nil, err
		}
	}

	doc, err := s.store.Update(ctx, storyID, func(doc *story.Document) error {
		if doc.Metadata.Context == nil {
			doc.Metadata.Context = story.DefaultStoryContext()
		}
		for _, add := range additions {
			if err := doc.Metadata.Context.Apply(add.Section, add.Field, add.Value); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return doc.Metadata.Context, nil
}
