// Package schema upgrades persisted story documents across historical
// schema generations. Migrations run over the raw JSON object before typed
// decoding, because the shapes they repair (a plain-string context, a
// missing history envelope) cannot be represented by the current types.
package schema

import (
	"time"

	"github.com/google/uuid"

	"storyforge-backend/domain/story"
	"storyforge-backend/domain/versioning"
)

// Step is one schema transition. Apply mutates doc in place and reports
// whether it fired. Every step must be a no-op on an already-current
// document so the pipeline can run on every load.
type Step struct {
	Name  string
	Apply func(doc map[string]interface{}) bool
}

// Steps run in this order on every load
var Steps = []Step{
	{Name: "flat_to_versioned", Apply: flatToVersioned},
	{Name: "synthesize_main_branch", Apply: synthesizeMainBranch},
	{Name: "structured_context", Apply: structuredContext},
	{Name: "fold_legacy_logline", Apply: foldLegacyLogline},
	{Name: "backfill_constitution", Apply: backfillConstitution},
}

// Migrate runs every step in order and stamps the current schema version.
// It returns the document and the names of the steps that fired; a dirty
// document (any fired step) must be persisted back by the caller so
// migrations run at most once per story.
func Migrate(doc map[string]interface{}) (map[string]interface{}, []string) {
	var fired []string
	for _, step := range Steps {
		if step.Apply(doc) {
			fired = append(fired, step.Name)
		}
	}
	if v, ok := doc["schemaVersion"].(float64); !ok || int(v) != story.CurrentSchemaVersion {
		doc["schemaVersion"] = story.CurrentSchemaVersion
		fired = append(fired, "schema_version_stamp")
	}
	return doc, fired
}

// flatToVersioned wraps a pre-versioning document's top-level graph into a
// single-version history with a main branch
func flatToVersioned(doc map[string]interface{}) bool {
	if h, has := doc["history"]; has && h != nil {
		return false
	}

	g, _ := doc["graph"].(map[string]interface{})
	if g == nil {
		g = map[string]interface{}{
			"nodes": map[string]interface{}{},
			"edges": []interface{}{},
		}
	}

	versionID := uuid.New().String()
	now := time.Now().UTC().Format(time.RFC3339Nano)
	doc["history"] = map[string]interface{}{
		"versions": map[string]interface{}{
			versionID: map[string]interface{}{
				"id":        versionID,
				"label":     "Initial",
				"createdAt": now,
				"graph":     g,
			},
		},
		"branches": map[string]interface{}{
			versioning.MainBranch: map[string]interface{}{
				"name":          versioning.MainBranch,
				"headVersionId": versionID,
				"createdAt":     now,
			},
		},
		"currentBranch":    versioning.MainBranch,
		"currentVersionId": versionID,
	}
	delete(doc, "graph")
	return true
}

// synthesizeMainBranch repairs histories persisted before branches existed
func synthesizeMainBranch(doc map[string]interface{}) bool {
	history, _ := doc["history"].(map[string]interface{})
	if history == nil {
		return false
	}
	if branches, _ := history["branches"].(map[string]interface{}); len(branches) > 0 {
		return false
	}

	currentID, _ := history["currentVersionId"].(string)
	if currentID == "" {
		return false
	}

	history["branches"] = map[string]interface{}{
		versioning.MainBranch: map[string]interface{}{
			"name":          versioning.MainBranch,
			"headVersionId": currentID,
			"createdAt":     time.Now().UTC().Format(time.RFC3339Nano),
		},
	}
	history["currentBranch"] = versioning.MainBranch
	return true
}

// structuredContext replaces the retired free-text story context with the
// empty structured default. Deliberately lossy: the old prose does not map
// onto structured fields.
func structuredContext(doc map[string]interface{}) bool {
	meta, _ := doc["metadata"].(map[string]interface{})
	if meta == nil {
		return false
	}
	if _, isText := meta["storyContext"].(string); !isText {
		return false
	}

	meta["storyContext"] = map[string]interface{}{
		"constitution": map[string]interface{}{
			"logline": "",
			"genre":   "",
			"setting": "",
		},
		"operational": map[string]interface{}{},
	}
	return true
}

// foldLegacyLogline moves the retired top-level metadata logline into the
// structured constitution when the structured slot is still empty
func foldLegacyLogline(doc map[string]interface{}) bool {
	meta, _ := doc["metadata"].(map[string]interface{})
	if meta == nil {
		return false
	}
	logline, _ := meta["logline"].(string)
	if logline == "" {
		return false
	}

	ctx, _ := meta["storyContext"].(map[string]interface{})
	if ctx == nil {
		ctx = map[string]interface{}{}
		meta["storyContext"] = ctx
	}
	constitution, _ := ctx["constitution"].(map[string]interface{})
	if constitution == nil {
		constitution = map[string]interface{}{}
		ctx["constitution"] = constitution
	}
	if existing, _ := constitution["logline"].(string); existing != "" {
		// structured value wins; drop the stale legacy field
		delete(meta, "logline")
		return true
	}

	constitution["logline"] = logline
	delete(meta, "logline")
	return true
}

// backfillConstitution defaults genre and setting on constitutions persisted
// before those fields existed
func backfillConstitution(doc map[string]interface{}) bool {
	meta, _ := doc["metadata"].(map[string]interface{})
	if meta == nil {
		return false
	}
	ctx, _ := meta["storyContext"].(map[string]interface{})
	if ctx == nil {
		return false
	}
	constitution, _ := ctx["constitution"].(map[string]interface{})
	if constitution == nil {
		return false
	}

	fired := false
	for _, field := range []string{"genre", "setting"} {
		if _, has := constitution[field]; !has {
			constitution[field] = ""
			fired = true
		}
	}
	return fired
}
