// Package watch re-runs an export whenever its source file changes.
package watch

import (
	"context"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/mogaika/xsg_export/logger"
)

// DefaultDelay collapses the burst of events an editor produces on save.
const DefaultDelay = 300 * time.Millisecond

type Watcher struct {
	Path  string
	Delay time.Duration
	// Run is called once on start and after every settled change.
	Run func(ctx context.Context) error
}

// Watch blocks until ctx is done. Run errors are logged and do not stop it.
// The parent directory is watched since many tools save by renaming a temp
// file over the original.
func (w *Watcher) Watch(ctx context.Context) error {
	path, err := filepath.Abs(w.Path)
	if err != nil {
		return errors.Wrapf(err, "Failed to resolve %q", w.Path)
	}
	delay := w.Delay
	if delay <= 0 {
		delay = DefaultDelay
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return errors.Wrapf(err, "Failed to create watcher")
	}
	defer fw.Close()
	if err := fw.Add(filepath.Dir(path)); err != nil {
		return errors.Wrapf(err, "Failed to watch %q", filepath.Dir(path))
	}

	w.run(ctx)
	logger.Info("[watch] waiting for changes", zap.String("path", path))

	timer := time.NewTimer(delay)
	timer.Stop()
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-fw.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != path || !Relevant(ev.Op) {
				continue
			}
			logger.Debug("[watch] event", zap.String("path", ev.Name), zap.Stringer("op", ev.Op))
			timer.Reset(delay)
		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			logger.Warn("[watch] watcher error", zap.Error(err))
		case <-timer.C:
			w.run(ctx)
		}
	}
}

func (w *Watcher) run(ctx context.Context) {
	start := time.Now()
	if err := w.Run(ctx); err != nil {
		logger.Error("[watch] export failed", zap.String("path", w.Path), zap.Error(err))
		return
	}
	logger.Info("[watch] export done", zap.String("path", w.Path), zap.Duration("took", time.Since(start)))
}

// Relevant reports whether op may have changed the file contents.
func Relevant(op fsnotify.Op) bool {
	return op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) != 0
}
