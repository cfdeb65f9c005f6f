package storystore

import (
	"path/filepath"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// storeWatcher invalidates cache entries when story files change on disk
// behind the store's back (manual edits, external tooling). The watcher is
// best-effort: a missed event only costs one stale TTL window.
type storeWatcher struct {
	fw     *fsnotify.Watcher
	cache  *documentCache
	logger *zap.Logger
	done   chan struct{}
}

func newStoreWatcher(root string, cache *documentCache, logger *zap.Logger) (*storeWatcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := fw.Add(root); err != nil {
		fw.Close()
		return nil, err
	}

	w := &storeWatcher{
		fw:     fw,
		cache:  cache,
		logger: logger,
		done:   make(chan struct{}),
	}
	go w.run()
	return w, nil
}

// watchStory registers a story directory. fsnotify does not recurse, so the
// store calls this whenever it touches a story.
func (w *storeWatcher) watchStory(dir string) {
	if err := w.fw.Add(dir); err != nil {
		w.logger.Warn("failed to watch story directory",
			zap.String("dir", dir),
			zap.Error(err))
	}
}

func (w *storeWatcher) run() {
	for {
		select {
		case event, ok := <-w.fw.Events:
			if !ok {
				return
			}
			w.handle(event)
		case err, ok := <-w.fw.Errors:
			if !ok {
				return
			}
			w.logger.Warn("story watcher error", zap.Error(err))
		case <-w.done:
			return
		}
	}
}

func (w *storeWatcher) handle(event fsnotify.Event) {
	if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename|fsnotify.Remove) == 0 {
		return
	}
	if filepath.Base(event.Name) != documentFileName {
		return
	}

	storyID := filepath.Base(filepath.Dir(event.Name))
	w.cache.invalidate(storyID)
	w.logger.Debug("cache invalidated by file event",
		zap.String("storyId", storyID),
		zap.String("op", event.Op.String()))
}

func (w *storeWatcher) close() {
	close(w.done)
	w.fw.Close()
}
