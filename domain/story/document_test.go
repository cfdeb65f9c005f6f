package story

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pkgerrors "storyforge-backend/pkg/errors"
)

func TestNewDocument(t *testing.T) {
	doc := NewDocument("s1", Metadata{Name: "Tides"}, nil)

	assert.Equal(t, CurrentSchemaVersion, doc.SchemaVersion)
	assert.Equal(t, "s1", doc.StoryID)
	assert.Equal(t, "Tides", doc.Metadata.Name)
	require.NotNil(t, doc.Metadata.Context)
	require.NotNil(t, doc.History)
	assert.NoError(t, doc.History.Validate())
	assert.Nil(t, doc.LegacyGraph)
}

func TestStoryContextLegacyString(t *testing.T) {
	var ctx StoryContext
	require.NoError(t, json.Unmarshal([]byte(`"a long free-text premise"`), &ctx))
	assert.True(t, ctx.IsLegacyText())

	// structured form decodes normally
	var structured StoryContext
	require.NoError(t, json.Unmarshal([]byte(`{"constitution":{"logline":"L","genre":"noir","setting":"harbor"},"operational":{"activeThreads":["t1"]}}`), &structured))
	assert.False(t, structured.IsLegacyText())
	assert.Equal(t, "L", structured.Constitution.Logline)
	assert.Equal(t, []string{"t1"}, structured.Operational.ActiveThreads)

	// marshaling always emits the structured shape
	raw, err := json.Marshal(&ctx)
	require.NoError(t, err)
	assert.Contains(t, string(raw), "constitution")
}

func TestStoryContextApply(t *testing.T) {
	tests := []struct {
		name    string
		section string
		field   string
		value   string
		check   func(t *testing.T, c *StoryContext)
		wantErr bool
	}{
		{
			name: "set logline", section: "constitution", field: "logline", value: "L",
			check: func(t *testing.T, c *StoryContext) { assert.Equal(t, "L", c.Constitution.Logline) },
		},
		{
			name: "append theme", section: "constitution", field: "themes", value: "loss",
			check: func(t *testing.T, c *StoryContext) { assert.Equal(t, []string{"loss"}, c.Constitution.Themes) },
		},
		{
			name: "append active thread", section: "operational", field: "activeThreads", value: "t1",
			check: func(t *testing.T, c *StoryContext) { assert.Equal(t, []string{"t1"}, c.Operational.ActiveThreads) },
		},
		{name: "unknown section", section: "plot", field: "x", value: "y", wantErr: true},
		{name: "unknown constitution field", section: "constitution", field: "mood", value: "y", wantErr: true},
		{name: "unknown operational field", section: "operational", field: "mood", value: "y", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := DefaultStoryContext()
			err := c.Apply(tt.section, tt.field, tt.value)
			if tt.wantErr {
				assert.True(t, pkgerrors.IsValidation(err))
				return
			}
			require.NoError(t, err)
			tt.check(t, c)
		})
	}
}

func TestMetadataMerge(t *testing.T) {
	m := Metadata{Name: "Old", Custom: map[string]interface{}{"tone": "grim"}}

	err := m.Merge(map[string]interface{}{
		"name":   "New",
		"genre":  "noir",
		"rating": "PG",
		"tone":   nil,
		"storyContext": map[string]interface{}{
			"constitution": map[string]interface{}{"logline": "L"},
		},
	})
	require.NoError(t, err)

	assert.Equal(t, "New", m.Name)
	assert.Equal(t, "noir", m.Genre)
	assert.Equal(t, "PG", m.Custom["rating"])
	_, cleared := m.Custom["tone"]
	assert.False(t, cleared, "nil value clears a custom key")
	require.NotNil(t, m.Context)
	assert.Equal(t, "L", m.Context.Constitution.Logline)
}

func TestMetadataJSONRoundTrip(t *testing.T) {
	m := Metadata{
		Name:   "Tides",
		Genre:  "noir",
		Custom: map[string]interface{}{"rating": "PG"},
	}

	raw, err := json.Marshal(m)
	require.NoError(t, err)

	var flat map[string]interface{}
	require.NoError(t, json.Unmarshal(raw, &flat))
	assert.Equal(t, "PG", flat["rating"], "custom keys flatten into the object")

	var back Metadata
	require.NoError(t, json.Unmarshal(raw, &back))
	assert.Equal(t, m.Name, back.Name)
	assert.Equal(t, m.Genre, back.Genre)
	assert.Equal(t, "PG", back.Custom["rating"])
	_, leaked := back.Custom["name"]
	assert.False(t, leaked, "fixed fields must not leak into Custom")
}

func TestDocumentJSONRoundTrip(t *testing.T) {
	doc := NewDocument("s1", Metadata{Name: "Tides"}, nil)
	doc.History.Commit(doc.History.CurrentGraph(), "Add scene", nil)

	raw, err := json.Marshal(doc)
	require.NoError(t, err)

	var back Document
	require.NoError(t, json.Unmarshal(raw, &back))
	assert.Equal(t, doc.StoryID, back.StoryID)
	assert.Equal(t, doc.SchemaVersion, back.SchemaVersion)
	require.NotNil(t, back.History)
	assert.NoError(t, back.History.Validate())
	assert.Equal(t, doc.History.CurrentVersionID, back.History.CurrentVersionID)
}
