package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"storyforge-backend/application/ports"
	"storyforge-backend/domain/graph"
	"storyforge-backend/domain/patch"
	"storyforge-backend/domain/story"
	"storyforge-backend/infrastructure/persistence/storystore"
	pkgerrors "storyforge-backend/pkg/errors"
)

// the concrete store must satisfy the application port
var _ ports.StoryStore = (*storystore.Store)(nil)

func newFixture(t *testing.T) (*StoryService, *VersionService, string) {
	t.Helper()
	store, err := storystore.NewStore(storystore.Config{Root: t.TempDir()}, zap.NewNop(), nil)
	require.NoError(t, err)
	t.Cleanup(store.Close)

	logger := zap.NewNop()
	svc := NewStoryService(store, logger)
	vsvc := NewVersionService(store, logger)

	doc, err := vsvc.CreateStory(context.Background(), "s1", story.Metadata{Name: "Tides"})
	require.NoError(t, err)
	return svc, vsvc, doc.History.CurrentVersionID
}

func TestApplyChangePackage(t *testing.T) {
	svc, vsvc, v0 := newFixture(t)
	ctx := context.Background()

	pkg := &patch.ChangePackage{
		Description: "introduce Iris",
		Primary: &patch.ChangeSet{
			Nodes: []patch.NodeChange{
				{Action: patch.ActionAdd, ID: "char-1", Type: graph.TypeCharacter, Data: map[string]interface{}{"name": "Iris"}},
				{Action: patch.ActionAdd, ID: "scene-1", Type: graph.TypeScene},
			},
			Edges: []patch.EdgeChange{
				{Action: patch.ActionAdd, Type: "appears_in", From: "char-1", To: "scene-1"},
			},
		},
		ContextAdditions: []patch.ContextAddition{
			{Section: "constitution", Field: "themes", Value: "loyalty"},
		},
		StashedIdeas: []patch.StashedIdea{
			{Title: "A rival ship"},
		},
	}

	result, err := svc.ApplyChangePackage(ctx, "s1", pkg, "Introduce Iris")
	require.NoError(t, err)
	assert.NotEqual(t, v0, result.VersionID)
	assert.Equal(t, []string{"A rival ship"}, result.StashedIdeas)
	assert.Empty(t, result.Warnings)

	g, err := vsvc.CurrentGraph(ctx, "s1")
	require.NoError(t, err)
	assert.True(t, g.HasNode("char-1"))
	assert.True(t, g.HasNode("scene-1"))
	require.Len(t, g.Edges, 1)
	assert.Equal(t, graph.ProvenanceAI, g.Edges[0].Provenance.Source)

	doc, err := vsvc.GetStory(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, []string{"loyalty"}, doc.Metadata.Context.Constitution.Themes)
	assert.Equal(t, result.VersionID, doc.History.Branches["main"].HeadVersionID)
}

func TestApplyChangePackageRejectsInvalidReferences(t *testing.T) {
	svc, vsvc, v0 := newFixture(t)
	ctx := context.Background()

	pkg := &patch.ChangePackage{
		Nodes: []patch.NodeChange{
			{Action: patch.ActionModify, ID: "ghost", Data: map[string]interface{}{"x": 1}},
		},
	}

	_, err := svc.ApplyChangePackage(ctx, "s1", pkg, "")
	assert.True(t, pkgerrors.IsValidation(err))

	doc, err := vsvc.GetStory(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, v0, doc.History.CurrentVersionID, "nothing committed on validation failure")
	assert.Len(t, doc.History.Versions, 1)
}

func TestApplyChangePackageStructuralValidation(t *testing.T) {
	svc, _, _ := newFixture(t)
	ctx := context.Background()

	tests := []struct {
		name string
		pkg  *patch.ChangePackage
	}{
		{name: "nil package", pkg: nil},
		{
			name: "unknown action",
			pkg: &patch.ChangePackage{
				Nodes: []patch.NodeChange{{Action: "replace", ID: "n1"}},
			},
		},
		{
			name: "node change without id",
			pkg: &patch.ChangePackage{
				Nodes: []patch.NodeChange{{Action: patch.ActionAdd, Type: graph.TypeIdea}},
			},
		},
		{
			name: "edge change without endpoints",
			pkg: &patch.ChangePackage{
				Edges: []patch.EdgeChange{{Action: patch.ActionAdd, Type: "knows"}},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.ApplyChangePackage(ctx, "s1", tt.pkg, "")
			assert.True(t, pkgerrors.IsValidation(err))
		})
	}
}

func TestApplyChangePackageBadContextAdditionWarns(t *testing.T) {
	svc, _, _ := newFixture(t)
	ctx := context.Background()

	pkg := &patch.ChangePackage{
		Nodes: []patch.NodeChange{
			{Action: patch.ActionAdd, ID: "n1", Type: graph.TypeIdea},
		},
		ContextAdditions: []patch.ContextAddition{
			{Section: "constitution", Field: "mood", Value: "tense"},
		},
	}

	result, err := svc.ApplyChangePackage(ctx, "s1", pkg, "")
	require.NoError(t, err, "a bad context suggestion must not fail the commit")
	assert.NotEmpty(t, result.VersionID)
	assert.Len(t, result.Warnings, 1)
}

func TestStashIdeas(t *testing.T) {
	svc, vsvc, _ := newFixture(t)
	ctx := context.Background()

	versionID, err := svc.StashIdeas(ctx, "s1", []patch.StashedIdea{
		{Title: "A rival ship", Data: map[string]interface{}{"notes": "appears in act two"}},
		{Title: "Storm subplot"},
	})
	require.NoError(t, err)
	assert.NotEmpty(t, versionID)

	g, err := vsvc.CurrentGraph(ctx, "s1")
	require.NoError(t, err)

	var ideas []*graph.Node
	for _, n := range g.Nodes {
		if n.Type == graph.TypeIdea {
			ideas = append(ideas, n)
		}
	}
	require.Len(t, ideas, 2)

	_, err = svc.StashIdeas(ctx, "s1", nil)
	assert.True(t, pkgerrors.IsValidation(err))
}

func TestUpdateContext(t *testing.T) {
	svc, vsvc, _ := newFixture(t)
	ctx := context.Background()

	updated, err := svc.UpdateContext(ctx, "s1", []patch.ContextAddition{
		{Section: "constitution", Field: "logline", Value: "A heist goes sideways"},
		{Section: "operational", Field: "activeThreads", Value: "the betrayal"},
	})
	require.NoError(t, err)
	assert.Equal(t, "A heist goes sideways", updated.Constitution.Logline)
	assert.Equal(t, []string{"the betrayal"}, updated.Operational.ActiveThreads)

	doc, err := vsvc.GetStory(ctx, "s1")
	require.NoError(t, err)
	assert.Len(t, doc.History.Versions, 1, "context changes never commit")
}
