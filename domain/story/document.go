package story

import (
	"encoding/json"
	"time"

	"storyforge-backend/domain/graph"
	"storyforge-backend/domain/versioning"
)

// Metadata is the non-graph descriptive state of a story
type Metadata struct {
	Name string `json:"name,omitempty"`
	// Logline is the retired top-level field; the migration pipeline folds
	// it into Context.Constitution.Logline
	Logline string                 `json:"logline,omitempty"`
	Context *StoryContext          `json:"storyContext,omitempty"`
	Genre   string                 `json:"genre,omitempty"`
	Setting string                 `json:"setting,omitempty"`
	Custom  map[string]interface{} `json:"-"`
}

// metadataAlias carries the fixed fields during custom (un)marshaling
type metadataAlias Metadata

// MarshalJSON flattens Custom alongside the fixed metadata fields
func (m Metadata) MarshalJSON() ([]byte, error) {
	fixed, err := json.Marshal(metadataAlias(m))
	if err != nil {
		return nil, err
	}
	if len(m.Custom) == 0 {
		return fixed, nil
	}

	out := make(map[string]json.RawMessage, len(m.Custom)+5)
	if err := json.Unmarshal(fixed, &out); err != nil {
		return nil, err
	}
	for k, v := range m.Custom {
		if _, reserved := out[k]; reserved {
			continue
		}
		raw, err := json.Marshal(v)
		if err != nil {
			return nil, err
		}
		out[k] = raw
	}
	return json.Marshal(out)
}

// UnmarshalJSON splits unknown keys into Custom
func (m *Metadata) UnmarshalJSON(data []byte) error {
	var alias metadataAlias
	if err := json.Unmarshal(data, &alias); err != nil {
		return err
	}

	var all map[string]json.RawMessage
	if err := json.Unmarshal(data, &all); err != nil {
		return err
	}
	for _, k := range []string{"name", "logline", "storyContext", "genre", "setting"} {
		delete(all, k)
	}
	if len(all) > 0 {
		alias.Custom = make(map[string]interface{}, len(all))
		for k, raw := range all {
			var v interface{}
			if err := json.Unmarshal(raw, &v); err != nil {
				return err
			}
			alias.Custom[k] = v
		}
	}

	*m = Metadata(alias)
	return nil
}

// Merge applies a partial metadata update. Known keys update the fixed
// fields; everything else lands in Custom. Nil values clear custom keys.
func (m *Metadata) Merge(patch map[string]interface{}) error {
	for k, v := range patch {
		switch k {
		case "name":
			if s, ok := v.(string); ok {
				m.Name = s
			}
		case "genre":
			if s, ok := v.(string); ok {
				m.Genre = s
			}
		case "setting":
			if s, ok := v.(string); ok {
				m.Setting = s
			}
		case "storyContext":
			raw, err := json.Marshal(v)
			if err != nil {
				return err
			}
			ctx := DefaultStoryContext()
			if err := json.Unmarshal(raw, ctx); err != nil {
				return err
			}
			m.Context = ctx
		default:
			if v == nil {
				delete(m.Custom, k)
				continue
			}
			if m.Custom == nil {
				m.Custom = make(map[string]interface{})
			}
			m.Custom[k] = v
		}
	}
	return nil
}

// CurrentSchemaVersion is the document schema produced by a full run of the
// migration pipeline
const CurrentSchemaVersion = 5

// Document is the unit of persistence: one story, its metadata, and its
// full version history. LegacyGraph only appears on pre-versioning
// documents; the migration pipeline wraps it into a History.
type Document struct {
	SchemaVersion int                 `json:"schemaVersion"`
	StoryID       string              `json:"storyId"`
	CreatedAt     time.Time           `json:"createdAt"`
	UpdatedAt     time.Time           `json:"updatedAt"`
	Metadata      Metadata            `json:"metadata"`
	History       *versioning.History `json:"history,omitempty"`
	LegacyGraph   *graph.Graph        `json:"graph,omitempty"`
}

// NewDocument creates a fully migrated document with an initial version
// holding g (an empty graph when g is nil)
func NewDocument(storyID string, meta Metadata, g *graph.Graph) *Document {
	if g == nil {
		g = graph.New()
	}
	if meta.Context == nil {
		meta.Context = DefaultStoryContext()
	}
	now := time.Now().UTC()
	return &Document{
		SchemaVersion: CurrentSchemaVersion,
		StoryID:       storyID,
		CreatedAt:     now,
		UpdatedAt:     now,
		Metadata:      meta,
		History:       versioning.NewHistory(g),
	}
}

// Touch bumps the modification timestamp
func (d *Document) Touch() {
	d.UpdatedAt = time.Now().UTC()
}

// Summary is one row in a story listing
type Summary struct {
	StoryID   string    `json:"storyId"`
	Name      string    `json:"name,omitempty"`
	UpdatedAt time.Time `json:"updatedAt"`
}
