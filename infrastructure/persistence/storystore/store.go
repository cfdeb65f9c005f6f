// Package storystore persists story documents as one JSON file per story
// under a data directory, with atomic writes, load-time schema migration,
// and per-story serialization of mutations.
package storystore

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"storyforge-backend/domain/graph"
	"storyforge-backend/domain/story"
	"storyforge-backend/domain/versioning"
	"storyforge-backend/infrastructure/persistence/guard"
	"storyforge-backend/infrastructure/persistence/schema"
	pkgerrors "storyforge-backend/pkg/errors"
	"storyforge-backend/pkg/observability"
)

const documentFileName = "story.json"

// Config controls store construction
type Config struct {
	Root          string
	CacheTTL      time.Duration
	EnableWatcher bool
}

// Store is the version store: it owns document persistence and runs every
// mutation inside the per-story guard
type Store struct {
	root    string
	guard   *guard.KeyedSerializer
	cache   *documentCache
	watcher *storeWatcher
	logger  *zap.Logger
	metrics *observability.Collector
}

// NewStore creates the data directory if needed and wires the cache and
// optional file watcher. metrics may be nil.
func NewStore(cfg Config, logger *zap.Logger, metrics *observability.Collector) (*Store, error) {
	if err := os.MkdirAll(cfg.Root, 0o755); err != nil {
		return nil, pkgerrors.NewInternalError(fmt.Sprintf("failed to create data directory %s", cfg.Root)).WithCause(err)
	}

	ttl := cfg.CacheTTL
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}

	s := &Store{
		root:    cfg.Root,
		guard:   guard.NewKeyedSerializer(logger, metrics),
		cache:   newDocumentCache(ttl),
		logger:  logger,
		metrics: metrics,
	}

	if cfg.EnableWatcher {
		w, err := newStoreWatcher(cfg.Root, s.cache, logger)
		if err != nil {
			logger.Warn("story watcher disabled", zap.Error(err))
		} else {
			s.watcher = w
		}
	}

	return s, nil
}

// Close releases the file watcher and stops the cache cleanup goroutine
func (s *Store) Close() {
	if s.watcher != nil {
		s.watcher.close()
	}
	s.cache.close()
}

func (s *Store) storyDir(storyID string) string {
	return filepath.Join(s.root, storyID)
}

func (s *Store) documentPath(storyID string) string {
	return filepath.Join(s.storyDir(storyID), documentFileName)
}

// CreateStory initializes a new story document with an initial version. An
// empty storyID gets a generated one.
func (s *Store) CreateStory(ctx context.Context, storyID string, meta story.Metadata) (*story.Document, error) {
	if storyID == "" {
		storyID = uuid.New().String()
	}

	var doc *story.Document
	err := s.guard.Do(ctx, storyID, func(ctx context.Context) error {
		if _, err := os.Stat(s.documentPath(storyID)); err == nil {
			return pkgerrors.NewConflictError(fmt.Sprintf("story '%s' already exists", storyID))
		}
		doc = story.NewDocument(storyID, meta, nil)
		return s.persist(doc)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("story created", zap.String("storyId", storyID))
	return doc, nil
}

// Load returns the fully migrated document for storyID. When a migration
// fires, the upgraded document is written back before returning, so it runs
// at most once per story. The write-back takes the guard; cached and
// already-current loads do not.
func (s *Store) Load(ctx context.Context, storyID string) (*story.Document, error) {
	if raw, ok := s.cache.get(storyID); ok {
		if s.metrics != nil {
			s.metrics.CacheHits.Inc()
		}
		return decodeDocument(storyID, raw)
	}
	if s.metrics != nil {
		s.metrics.CacheMisses.Inc()
	}

	doc, dirty, err := s.loadFromDisk(storyID)
	if err != nil {
		return nil, err
	}
	if !dirty {
		return doc, nil
	}

	// migration fired: persist the upgraded form under the guard, rereading
	// in case a concurrent writer got there first
	err = s.guard.Do(ctx, storyID, func(ctx context.Context) error {
		current, stillDirty, err := s.loadFromDisk(storyID)
		if err != nil {
			return err
		}
		doc = current
		if !stillDirty {
			return nil
		}
		return s.persist(current)
	})
	if err != nil {
		return nil, err
	}
	return doc, nil
}

// loadFromDisk reads, migrates, decodes, and caches a document. It never
// writes; the caller persists when dirty.
func (s *Store) loadFromDisk(storyID string) (*story.Document, bool, error) {
	raw, err := os.ReadFile(s.documentPath(storyID))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, false, pkgerrors.NewNotFoundError("story").WithDetail("storyId", storyID)
		}
		return nil, false, pkgerrors.NewInternalError(fmt.Sprintf("failed to read story '%s'", storyID)).WithCause(err)
	}

	var rawDoc map[string]interface{}
	if err := json.Unmarshal(raw, &rawDoc); err != nil {
		return nil, false, pkgerrors.NewCorruptError(storyID, err)
	}

	rawDoc, fired := schema.Migrate(rawDoc)
	if s.metrics != nil {
		for _, step := range fired {
			s.metrics.MigrationsApplied.WithLabelValues(step).Inc()
		}
	}
	if len(fired) > 0 {
		s.logger.Info("story migrated",
			zap.String("storyId", storyID),
			zap.Strings("steps", fired))
	}

	migrated, err := json.Marshal(rawDoc)
	if err != nil {
		return nil, false, pkgerrors.NewInternalError("failed to re-encode migrated story").WithCause(err)
	}

	doc, err := decodeDocument(storyID, migrated)
	if err != nil {
		return nil, false, err
	}
	if err := doc.History.Validate(); err != nil {
		return nil, false, pkgerrors.NewCorruptError(storyID, err)
	}

	s.cache.set(storyID, migrated)
	if s.watcher != nil {
		s.watcher.watchStory(s.storyDir(storyID))
	}
	return doc, len(fired) > 0, nil
}

func decodeDocument(storyID string, raw []byte) (*story.Document, error) {
	var doc story.Document
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, pkgerrors.NewCorruptError(storyID, err)
	}
	if doc.StoryID == "" {
		doc.StoryID = storyID
	}
	return &doc, nil
}

// persist writes the document atomically: encode, write to a unique temp
// file in the story directory, fsync, rename over the live file. A crash
// leaves either the old document or the new one, never a torn write.
func (s *Store) persist(doc *story.Document) error {
	doc.Touch()

	raw, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return pkgerrors.NewInternalError("failed to encode story document").WithCause(err)
	}

	dir := s.storyDir(doc.StoryID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return pkgerrors.NewInternalError("failed to create story directory").WithCause(err)
	}

	tmp, err := os.CreateTemp(dir, documentFileName+".tmp-*")
	if err != nil {
		return pkgerrors.NewInternalError("failed to create temp file").WithCause(err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(raw); err != nil {
		tmp.Close()
		return pkgerrors.NewInternalError("failed to write temp file").WithCause(err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return pkgerrors.NewInternalError("failed to sync temp file").WithCause(err)
	}
	if err := tmp.Close(); err != nil {
		return pkgerrors.NewInternalError("failed to close temp file").WithCause(err)
	}
	if err := os.Rename(tmpName, s.documentPath(doc.StoryID)); err != nil {
		return pkgerrors.NewInternalError("failed to replace story document").WithCause(err)
	}

	s.cache.set(doc.StoryID, raw)
	return nil
}

// Update runs fn against the loaded document inside the guard and persists
// the result. This is the critical section every mutation goes through.
func (s *Store) Update(ctx context.Context, storyID string, fn func(doc *story.Document) error) (*story.Document, error) {
	var doc *story.Document
	err := s.guard.Do(ctx, storyID, func(ctx context.Context) error {
		loaded, _, err := s.loadFromDisk(storyID)
		if err != nil {
			return err
		}
		if err := fn(loaded); err != nil {
			return err
		}
		if err := s.persist(loaded); err != nil {
			return err
		}
		doc = loaded
		return nil
	})
	if err != nil {
		return nil, err
	}
	return doc, nil
}

// Commit records g as a new version on the active branch and returns the new
// version id. An optional metadata patch is merged into the document's
// metadata in the same write. Committing from detached state creates an
// anonymous fork: the version is reachable from its parent but no branch
// advances.
func (s *Store) Commit(ctx context.Context, storyID string, g *graph.Graph, label string, metadataPatch map[string]interface{}) (string, error) {
	var versionID string
	_, err := s.Update(ctx, storyID, func(doc *story.Document) error {
		versionID = doc.History.Commit(g, label, nil)
		if len(metadataPatch) > 0 {
			return doc.Metadata.Merge(metadataPatch)
		}
		return nil
	})
	if err != nil {
		return "", err
	}

	if s.metrics != nil {
		s.metrics.CommitsTotal.Inc()
	}
	s.logger.Info("version committed",
		zap.String("storyId", storyID),
		zap.String("versionId", versionID),
		zap.String("label", label))
	return versionID, nil
}

// Checkout moves the current position to versionID, attaching to a branch
// whose head matches or detaching otherwise
func (s *Store) Checkout(ctx context.Context, storyID, versionID string) error {
	_, err := s.Update(ctx, storyID, func(doc *story.Document) error {
		return doc.History.Checkout(versionID)
	})
	if err != nil {
		return err
	}

	if s.metrics != nil {
		s.metrics.CheckoutsTotal.Inc()
	}
	s.logger.Info("version checked out",
		zap.String("storyId", storyID),
		zap.String("versionId", versionID))
	return nil
}

// CreateBranch creates a branch at the current version and makes it active
func (s *Store) CreateBranch(ctx context.Context, storyID, name, description string) (*versioning.Branch, error) {
	var branch *versioning.Branch
	_, err := s.Update(ctx, storyID, func(doc *story.Document) error {
		b, err := doc.History.CreateBranch(name, description)
		if err != nil {
			return err
		}
		branch = b
		return nil
	})
	if err != nil {
		return nil, err
	}

	if s.metrics != nil {
		s.metrics.BranchesCreated.Inc()
	}
	s.logger.Info("branch created",
		zap.String("storyId", storyID),
		zap.String("branch", name))
	return branch, nil
}

// SwitchBranch makes name the active branch and moves current to its head
func (s *Store) SwitchBranch(ctx context.Context, storyID, name string) error {
	_, err := s.Update(ctx, storyID, func(doc *story.Document) error {
		return doc.History.SwitchBranch(name)
	})
	return err
}

// DeleteBranch removes a branch pointer. Versions it pointed at remain in
// the history. The main branch and the active branch cannot be deleted.
func (s *Store) DeleteBranch(ctx context.Context, storyID, name string) error {
	_, err := s.Update(ctx, storyID, func(doc *story.Document) error {
		return doc.History.DeleteBranch(name)
	})
	if err != nil {
		return err
	}

	if s.metrics != nil {
		s.metrics.BranchesDeleted.Inc()
	}
	return nil
}

// UpdateMetadata merges a partial metadata patch. Metadata changes never
// create a version.
func (s *Store) UpdateMetadata(ctx context.Context, storyID string, patch map[string]interface{}) (*story.Document, error) {
	return s.Update(ctx, storyID, func(doc *story.Document) error {
		return doc.Metadata.Merge(patch)
	})
}

// CurrentGraph returns a copy of the graph at the current version
func (s *Store) CurrentGraph(ctx context.Context, storyID string) (*graph.Graph, error) {
	doc, err := s.Load(ctx, storyID)
	if err != nil {
		return nil, err
	}
	return doc.History.CurrentGraph(), nil
}

// ListVersions returns every version, newest first
func (s *Store) ListVersions(ctx context.Context, storyID string) ([]versioning.VersionSummary, error) {
	doc, err := s.Load(ctx, storyID)
	if err != nil {
		return nil, err
	}
	return doc.History.SortedVersions(), nil
}

// ListBranches returns every branch, newest first
func (s *Store) ListBranches(ctx context.Context, storyID string) ([]versioning.BranchSummary, error) {
	doc, err := s.Load(ctx, storyID)
	if err != nil {
		return nil, err
	}
	return doc.History.SortedBranches(), nil
}

// ListStories scans the data directory. Unreadable or corrupt stories are
// logged and skipped rather than failing the whole listing.
func (s *Store) ListStories(ctx context.Context) ([]story.Summary, error) {
	entries, err := os.ReadDir(s.root)
	if err != nil {
		return nil, pkgerrors.NewInternalError("failed to read data directory").WithCause(err)
	}

	infos := make([]story.Summary, 0, len(entries))
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		storyID := entry.Name()
		doc, err := s.Load(ctx, storyID)
		if err != nil {
			s.logger.Warn("skipping unreadable story",
				zap.String("storyId", storyID),
				zap.Error(err))
			continue
		}
		infos = append(infos, story.Summary{
			StoryID:   doc.StoryID,
			Name:      doc.Metadata.Name,
			UpdatedAt: doc.UpdatedAt,
		})
	}
	return infos, nil
}
