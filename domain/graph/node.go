package graph

import "encoding/json"

// Well-known node types. The Data payload of a node is free-form and
// type-specific; the store never interprets it.
const (
	TypeCharacter = "Character"
	TypeScene     = "Scene"
	TypeStoryBeat = "StoryBeat"
	TypeLocation  = "Location"
	TypeTheme     = "Theme"
	TypeIdea      = "Idea"
)

// legacyTypeRenames maps retired type tags to their current names.
// Applied on deserialization only; newly created nodes always carry
// current tags.
var legacyTypeRenames = map[string]string{
	"PlotPoint": TypeStoryBeat,
	"Setting":   TypeLocation,
}

// NormalizeNodeType rewrites a legacy type tag to its current name.
// It is total: unknown tags pass through unchanged.
func NormalizeNodeType(nodeType string) string {
	if renamed, ok := legacyTypeRenames[nodeType]; ok {
		return renamed
	}
	return nodeType
}

// Node is a tagged record in the story graph. ID is globally unique within
// the story; Data carries the type-specific attributes (a character's traits,
// a scene's synopsis, and so on).
type Node struct {
	ID   string
	Type string
	Data map[string]interface{}
}

// NewNode creates a node with its own copy of the data map
func NewNode(id, nodeType string, data map[string]interface{}) *Node {
	n := &Node{
		ID:   id,
		Type: nodeType,
		Data: make(map[string]interface{}, len(data)),
	}
	for k, v := range data {
		n.Data[k] = deepCopyValue(v)
	}
	return n
}

// Clone returns a deep copy of the node
func (n *Node) Clone() *Node {
	return NewNode(n.ID, n.Type, n.Data)
}

// Set assigns a single attribute
func (n *Node) Set(field string, value interface{}) {
	if n.Data == nil {
		n.Data = make(map[string]interface{})
	}
	n.Data[field] = deepCopyValue(value)
}

// Merge assigns a partial field set onto the node's attributes
func (n *Node) Merge(fields map[string]interface{}) {
	for k, v := range fields {
		n.Set(k, v)
	}
}

// MarshalJSON flattens Data into the node object, the persisted shape being
// {"id": ..., "type": ..., <attributes...>}
func (n *Node) MarshalJSON() ([]byte, error) {
	flat := make(map[string]interface{}, len(n.Data)+2)
	for k, v := range n.Data {
		flat[k] = v
	}
	flat["id"] = n.ID
	flat["type"] = n.Type
	return json.Marshal(flat)
}

// UnmarshalJSON lifts "id" and "type" out of the flattened object and keeps
// the remaining fields as free-form attributes
func (n *Node) UnmarshalJSON(data []byte) error {
	var flat map[string]interface{}
	if err := json.Unmarshal(data, &flat); err != nil {
		return err
	}

	if id, ok := flat["id"].(string); ok {
		n.ID = id
	}
	if nodeType, ok := flat["type"].(string); ok {
		n.Type = nodeType
	}
	delete(flat, "id")
	delete(flat, "type")
	n.Data = flat
	return nil
}

// deepCopyValue copies the JSON-shaped value graphs found in node attributes
// and edge properties
func deepCopyValue(v interface{}) interface{} {
	switch typed := v.(type) {
	case map[string]interface{}:
		out := make(map[string]interface{}, len(typed))
		for k, inner := range typed {
			out[k] = deepCopyValue(inner)
		}
		return out
	case []interface{}:
		out := make([]interface{}, len(typed))
		for i, inner := range typed {
			out[i] = deepCopyValue(inner)
		}
		return out
	default:
		return v
	}
}
