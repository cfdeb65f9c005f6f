package story

import (
	"encoding/json"
	"fmt"

	pkgerrors "storyforge-backend/pkg/errors"
)

// Context section names accepted by Apply
const (
	SectionConstitution = "constitution"
	SectionOperational  = "operational"
)

// Constitution holds the slow-changing creative ground rules of a story
type Constitution struct {
	Logline string   `json:"logline"`
	Genre   string   `json:"genre"`
	Setting string   `json:"setting"`
	Themes  []string `json:"themes,omitempty"`
}

// Operational holds the working creative context that shifts as the story
// is written
type Operational struct {
	ActiveThreads []string `json:"activeThreads,omitempty"`
	StyleNotes    []string `json:"styleNotes,omitempty"`
}

// StoryContext is the structured creative context carried in story metadata.
// It is metadata, not graph content: changes to it never create a version
// by themselves.
type StoryContext struct {
	Constitution Constitution `json:"constitution"`
	Operational  Operational  `json:"operational"`

	// legacyText is set when the persisted value was the retired free-text
	// form. The migration pipeline replaces such contexts with the
	// structured default.
	legacyText string
}

// DefaultStoryContext returns the empty structured context
func DefaultStoryContext() *StoryContext {
	return &StoryContext{}
}

// IsLegacyText reports whether this context was decoded from the retired
// plain-string form
func (c *StoryContext) IsLegacyText() bool {
	return c.legacyText != ""
}

// storyContextAlias avoids UnmarshalJSON recursion
type storyContextAlias StoryContext

// UnmarshalJSON tolerates the legacy plain-string context so deserialization
// stays total; the migration pipeline performs the actual (lossy) cutover.
func (c *StoryContext) UnmarshalJSON(data []byte) error {
	if len(data) > 0 && data[0] == '"' {
		var legacy string
		if err := json.Unmarshal(data, &legacy); err != nil {
			return err
		}
		*c = StoryContext{legacyText: legacy}
		return nil
	}

	var alias storyContextAlias
	if err := json.Unmarshal(data, &alias); err != nil {
		return err
	}
	*c = StoryContext(alias)
	return nil
}

// MarshalJSON always writes the structured form
func (c *StoryContext) MarshalJSON() ([]byte, error) {
	return json.Marshal(storyContextAlias(*c))
}

// Apply mutates one context field from a structured context addition.
// Scalar constitution fields are overwritten; list fields are appended.
func (c *StoryContext) Apply(section, field, value string) error {
	switch section {
	case SectionConstitution:
		switch field {
		case "logline":
			c.Constitution.Logline = value
		case "genre":
			c.Constitution.Genre = value
		case "setting":
			c.Constitution.Setting = value
		case "themes":
			c.Constitution.Themes = append(c.Constitution.Themes, value)
		default:
			return pkgerrors.NewValidationError(fmt.Sprintf("unknown constitution field '%s'", field))
		}
	case SectionOperational:
		switch field {
		case "activeThreads":
			c.Operational.ActiveThreads = append(c.Operational.ActiveThreads, value)
		case "styleNotes":
			c.Operational.StyleNotes = append(c.Operational.StyleNotes, value)
		default:
			return pkgerrors.NewValidationError(fmt.Sprintf("unknown operational field '%s'", field))
		}
	default:
		return pkgerrors.NewValidationError(fmt.Sprintf("unknown context section '%s'", section))
	}
	return nil
}
