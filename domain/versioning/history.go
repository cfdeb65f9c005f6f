// Package versioning owns the version DAG for one story: the parent-linked
// version tree and the named branch pointers over it.
package versioning

import (
	"fmt"
	"sort"
	"time"

	"storyforge-backend/domain/graph"
	pkgerrors "storyforge-backend/pkg/errors"
)

// History is the aggregate over one story's edit history.
// Invariants: CurrentVersionID always resolves to a key in Versions; every
// ParentID resolves to an existing version; the versions form a forest,
// never a cycle. CurrentBranch == "" denotes detached state (the current
// version is not a branch head).
type History struct {
	Versions         map[string]*Version `json:"versions"`
	Branches         map[string]*Branch  `json:"branches"`
	CurrentBranch    string              `json:"currentBranch,omitempty"`
	CurrentVersionID string              `json:"currentVersionId"`
}

// NewHistory creates the history for a fresh story: one root version labeled
// "Initial" and a main branch pointing at it.
func NewHistory(g *graph.Graph) *History {
	root := newVersion(nil, "Initial", g, nil)
	return &History{
		Versions: map[string]*Version{root.ID: root},
		Branches: map[string]*Branch{
			MainBranch: {
				Name:          MainBranch,
				HeadVersionID: root.ID,
				CreatedAt:     root.CreatedAt,
			},
		},
		CurrentBranch:    MainBranch,
		CurrentVersionID: root.ID,
	}
}

// Current returns the version the history points at
func (h *History) Current() *Version {
	return h.Versions[h.CurrentVersionID]
}

// CurrentGraph returns a deep copy of the current version's graph, safe for
// the caller to mutate
func (h *History) CurrentGraph() *graph.Graph {
	v := h.Current()
	if v == nil || v.Graph == nil {
		return graph.New()
	}
	return v.Graph.Clone()
}

// Commit snapshots the given graph into a new version parented on the
// current one. If a branch is active its head advances to the new version;
// either way the new version becomes current. Returns the new version id.
func (h *History) Commit(g *graph.Graph, label string, annotations map[string]interface{}) string {
	parent := h.CurrentVersionID
	v := newVersion(&parent, label, g, annotations)
	h.Versions[v.ID] = v

	if h.CurrentBranch != "" {
		if b, ok := h.Branches[h.CurrentBranch]; ok {
			b.HeadVersionID = v.ID
		}
	}
	h.CurrentVersionID = v.ID
	return v.ID
}

// Checkout moves the current pointer to an existing version without creating
// a new one. If the version is some branch's head that branch becomes
// current; otherwise the history is left detached.
func (h *History) Checkout(versionID string) error {
	if _, ok := h.Versions[versionID]; !ok {
		return pkgerrors.NewNotFoundError("version").WithDetail("versionId", versionID)
	}

	h.CurrentBranch = ""
	for _, name := range h.sortedBranchNames() {
		if h.Branches[name].HeadVersionID == versionID {
			h.CurrentBranch = name
			break
		}
	}
	h.CurrentVersionID = versionID
	return nil
}

// CreateBranch creates a branch headed at the current version and makes it
// the active branch
func (h *History) CreateBranch(name, description string) (*Branch, error) {
	if _, exists := h.Branches[name]; exists {
		return nil, pkgerrors.NewConflictError(fmt.Sprintf("branch '%s' already exists", name)).
			WithDetail("branch", name)
	}

	b := &Branch{
		Name:          name,
		HeadVersionID: h.CurrentVersionID,
		CreatedAt:     time.Now().UTC(),
		Description:   description,
	}
	h.Branches[name] = b
	h.CurrentBranch = name
	return b, nil
}

// SwitchBranch makes the named branch current and moves the current version
// to its head
func (h *History) SwitchBranch(name string) error {
	b, ok := h.Branches[name]
	if !ok {
		return pkgerrors.NewNotFoundError("branch").WithDetail("branch", name)
	}
	h.CurrentBranch = name
	h.CurrentVersionID = b.HeadVersionID
	return nil
}

// DeleteBranch removes a branch. The main branch and the currently active
// branch are protected.
func (h *History) DeleteBranch(name string) error {
	if _, ok := h.Branches[name]; !ok {
		return pkgerrors.NewNotFoundError("branch").WithDetail("branch", name)
	}
	if name == MainBranch {
		return pkgerrors.NewConflictError("the main branch cannot be deleted").
			WithDetail("branch", name)
	}
	if name == h.CurrentBranch {
		return pkgerrors.NewConflictError(fmt.Sprintf("branch '%s' is currently active", name)).
			WithDetail("branch", name)
	}
	delete(h.Branches, name)
	return nil
}

// SortedVersions projects the version tree for listing, newest first
func (h *History) SortedVersions() []VersionSummary {
	heads := make(map[string]string, len(h.Branches))
	for _, name := range h.sortedBranchNames() {
		head := h.Branches[name].HeadVersionID
		if _, taken := heads[head]; !taken {
			heads[head] = name
		}
	}

	out := make([]VersionSummary, 0, len(h.Versions))
	for id, v := range h.Versions {
		out = append(out, VersionSummary{
			ID:         id,
			ParentID:   v.ParentID,
			Label:      v.Label,
			CreatedAt:  v.CreatedAt,
			BranchHead: heads[id],
			IsCurrent:  id == h.CurrentVersionID,
		})
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// SortedBranches projects the branches for listing, newest first
func (h *History) SortedBranches() []BranchSummary {
	out := make([]BranchSummary, 0, len(h.Branches))
	for name, b := range h.Branches {
		out = append(out, BranchSummary{
			Name:          name,
			HeadVersionID: b.HeadVersionID,
			CreatedAt:     b.CreatedAt,
			Description:   b.Description,
			IsCurrent:     name == h.CurrentBranch,
		})
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].Name < out[j].Name
	})
	return out
}

// Validate ensures history invariants hold after deserialization
func (h *History) Validate() error {
	if len(h.Versions) == 0 {
		return fmt.Errorf("history has no versions")
	}
	if _, ok := h.Versions[h.CurrentVersionID]; !ok {
		return fmt.Errorf("current version '%s' does not exist", h.CurrentVersionID)
	}
	for id, v := range h.Versions {
		if v.ParentID == nil {
			continue
		}
		if _, ok := h.Versions[*v.ParentID]; !ok {
			return fmt.Errorf("version '%s' references missing parent '%s'", id, *v.ParentID)
		}
	}
	for name, b := range h.Branches {
		if _, ok := h.Versions[b.HeadVersionID]; !ok {
			return fmt.Errorf("branch '%s' references missing head '%s'", name, b.HeadVersionID)
		}
	}
	if h.CurrentBranch != "" {
		if _, ok := h.Branches[h.CurrentBranch]; !ok {
			return fmt.Errorf("current branch '%s' does not exist", h.CurrentBranch)
		}
	}
	return nil
}

// sortedBranchNames keeps branch iteration deterministic
func (h *History) sortedBranchNames() []string {
	names := make([]string, 0, len(h.Branches))
	for name := range h.Branches {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
