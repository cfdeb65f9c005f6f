package storystore

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"storyforge-backend/domain/graph"
	"storyforge-backend/domain/story"
	"storyforge-backend/domain/versioning"
	pkgerrors "storyforge-backend/pkg/errors"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := NewStore(Config{Root: t.TempDir()}, zap.NewNop(), nil)
	require.NoError(t, err)
	t.Cleanup(s.Close)
	return s
}

func sceneGraph(id string) *graph.Graph {
	g := graph.New()
	g.Nodes[id] = graph.NewNode(id, graph.TypeScene, map[string]interface{}{"synopsis": "x"})
	return g
}

func TestCreateAndLoad(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	doc, err := s.CreateStory(ctx, "s1", story.Metadata{Name: "Tides"})
	require.NoError(t, err)
	assert.Equal(t, "s1", doc.StoryID)

	loaded, err := s.Load(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, "Tides", loaded.Metadata.Name)
	assert.Equal(t, story.CurrentSchemaVersion, loaded.SchemaVersion)
	require.NotNil(t, loaded.History)
	assert.Equal(t, versioning.MainBranch, loaded.History.CurrentBranch)

	t.Run("duplicate id conflicts", func(t *testing.T) {
		_, err := s.CreateStory(ctx, "s1", story.Metadata{})
		assert.True(t, pkgerrors.IsConflict(err))
	})

	t.Run("generated id when empty", func(t *testing.T) {
		doc, err := s.CreateStory(ctx, "", story.Metadata{})
		require.NoError(t, err)
		assert.NotEmpty(t, doc.StoryID)
	})

	t.Run("missing story", func(t *testing.T) {
		_, err := s.Load(ctx, "nope")
		assert.True(t, pkgerrors.IsNotFound(err))
	})
}

func TestCommitCheckoutBranchFlow(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	doc, err := s.CreateStory(ctx, "s1", story.Metadata{})
	require.NoError(t, err)
	v0 := doc.History.CurrentVersionID

	v1, err := s.Commit(ctx, "s1", sceneGraph("scene-1"), "Add scene", nil)
	require.NoError(t, err)

	// reload from a fresh store to prove everything round-trips through disk
	s2, err := NewStore(Config{Root: s.root}, zap.NewNop(), nil)
	require.NoError(t, err)
	defer s2.Close()

	loaded, err := s2.Load(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, v1, loaded.History.CurrentVersionID)
	assert.Equal(t, v1, loaded.History.Branches[versioning.MainBranch].HeadVersionID)

	g, err := s2.CurrentGraph(ctx, "s1")
	require.NoError(t, err)
	assert.True(t, g.HasNode("scene-1"))

	require.NoError(t, s2.Checkout(ctx, "s1", v0))
	loaded, err = s2.Load(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, "", loaded.History.CurrentBranch, "checkout of a non-head detaches")

	branch, err := s2.CreateBranch(ctx, "s1", "draft", "experiment")
	require.NoError(t, err)
	assert.Equal(t, v0, branch.HeadVersionID)

	assert.True(t, pkgerrors.IsConflict(s2.DeleteBranch(ctx, "s1", versioning.MainBranch)))

	require.NoError(t, s2.SwitchBranch(ctx, "s1", versioning.MainBranch))
	require.NoError(t, s2.DeleteBranch(ctx, "s1", "draft"))

	versions, err := s2.ListVersions(ctx, "s1")
	require.NoError(t, err)
	require.Len(t, versions, 2)
	assert.Equal(t, v1, versions[0].ID)

	branches, err := s2.ListBranches(ctx, "s1")
	require.NoError(t, err)
	require.Len(t, branches, 1)
	assert.Equal(t, versioning.MainBranch, branches[0].Name)
}

func TestLegacyDocumentMigratesOnLoadAndWritesBack(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	dir := s.storyDir("legacy")
	require.NoError(t, os.MkdirAll(dir, 0o755))
	legacy := `{
		"storyId": "legacy",
		"metadata": {"name": "Old", "logline": "A heist goes sideways", "storyContext": "prose"},
		"graph": {"nodes": {"n1": {"id": "n1", "type": "PlotPoint"}}, "edges": []}
	}`
	require.NoError(t, os.WriteFile(filepath.Join(dir, documentFileName), []byte(legacy), 0o644))

	doc, err := s.Load(ctx, "legacy")
	require.NoError(t, err)
	assert.Equal(t, story.CurrentSchemaVersion, doc.SchemaVersion)
	require.NotNil(t, doc.History)
	assert.Equal(t, versioning.MainBranch, doc.History.CurrentBranch)
	assert.Equal(t, "A heist goes sideways", doc.Metadata.Context.Constitution.Logline)
	assert.True(t, doc.History.CurrentGraph().HasNode("n1"))
	assert.Equal(t, graph.TypeStoryBeat, doc.History.CurrentGraph().Nodes["n1"].Type)

	// the upgraded form was persisted: the raw file now has a history
	raw, err := os.ReadFile(filepath.Join(dir, documentFileName))
	require.NoError(t, err)
	var onDisk map[string]interface{}
	require.NoError(t, json.Unmarshal(raw, &onDisk))
	assert.Contains(t, onDisk, "history")
	assert.NotContains(t, onDisk, "graph")
	assert.EqualValues(t, story.CurrentSchemaVersion, onDisk["schemaVersion"])
}

func TestCorruptDocument(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	dir := s.storyDir("broken")
	require.NoError(t, os.MkdirAll(dir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, documentFileName), []byte("{ not json"), 0o644))

	_, err := s.Load(ctx, "broken")
	assert.True(t, pkgerrors.IsCorrupt(err))
}

func TestListStoriesSkipsUnreadable(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	_, err := s.CreateStory(ctx, "good", story.Metadata{Name: "Good"})
	require.NoError(t, err)

	dir := s.storyDir("bad")
	require.NoError(t, os.MkdirAll(dir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, documentFileName), []byte("garbage"), 0o644))

	stories, err := s.ListStories(ctx)
	require.NoError(t, err)
	require.Len(t, stories, 1)
	assert.Equal(t, "good", stories[0].StoryID)
}

func TestUpdateMetadataDoesNotCreateVersion(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	_, err := s.CreateStory(ctx, "s1", story.Metadata{Name: "Old"})
	require.NoError(t, err)

	doc, err := s.UpdateMetadata(ctx, "s1", map[string]interface{}{"name": "New", "rating": "PG"})
	require.NoError(t, err)
	assert.Equal(t, "New", doc.Metadata.Name)
	assert.Equal(t, "PG", doc.Metadata.Custom["rating"])
	assert.Len(t, doc.History.Versions, 1, "metadata changes never commit")
}

// A crash between temp-file write and rename must leave the canonical file
// untouched. Simulated by dropping a stray temp file next to it.
func TestAtomicityUnderInterruption(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	_, err := s.CreateStory(ctx, "s1", story.Metadata{Name: "Tides"})
	require.NoError(t, err)

	canonical := s.documentPath("s1")
	before, err := os.ReadFile(canonical)
	require.NoError(t, err)

	// the aborted write: a temp file that never got renamed
	stray := filepath.Join(s.storyDir("s1"), documentFileName+".tmp-crashed")
	require.NoError(t, os.WriteFile(stray, []byte(`{"torn":`), 0o644))

	after, err := os.ReadFile(canonical)
	require.NoError(t, err)
	assert.Equal(t, before, after)

	s.cache.clear()
	doc, err := s.Load(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, "Tides", doc.Metadata.Name)
}

func TestUpdateSeesLatestDiskState(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	_, err := s.CreateStory(ctx, "s1", story.Metadata{})
	require.NoError(t, err)

	_, err = s.Commit(ctx, "s1", sceneGraph("scene-1"), "Add scene", nil)
	require.NoError(t, err)

	// Update loads from disk inside the critical section, not from any
	// previously returned document
	doc, err := s.Update(ctx, "s1", func(doc *story.Document) error {
		assert.True(t, doc.History.CurrentGraph().HasNode("scene-1"))
		doc.Metadata.Name = "Renamed"
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, "Renamed", doc.Metadata.Name)
}
