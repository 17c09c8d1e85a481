package ingest

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/strata-search/strata/internal/config"
)

// Watcher re-ingests the corpus directory when files change. Events are
// debounced so an editor save burst triggers one sync instead of many;
// the sync itself is cheap because unchanged files short-circuit on
// mtime and hash.
type Watcher struct {
	manager  *Manager
	dir      string
	debounce time.Duration
}

func NewWatcher(manager *Manager, cfg config.IngestConfig) *Watcher {
	debounce := time.Duration(cfg.DebounceMS) * time.Millisecond
	if debounce <= 0 {
		debounce = 2 * time.Second
	}
	return &Watcher{manager: manager, dir: cfg.Dir, debounce: debounce}
}

// Run blocks until the context is cancelled.
func (w *Watcher) Run(ctx context.Context) error {
	logger := logutil.GetLogger(ctx)
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	if err := addRecursive(watcher, w.dir); err != nil {
		return err
	}
	logger.Info("watching corpus dir", zap.String("dir", w.dir))

	timer := time.NewTimer(w.debounce)
	if !timer.Stop() {
		<-timer.C
	}
	armed := false

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if ev.Op.Has(fsnotify.Create) {
				if info, err := os.Stat(ev.Name); err == nil && info.IsDir() {
					if err := addRecursive(watcher, ev.Name); err != nil {
						logger.Warn("watch new dir failed", zap.String("dir", ev.Name), zap.Error(err))
					}
				}
			}
			if ev.Op.Has(fsnotify.Remove) || ev.Op.Has(fsnotify.Rename) {
				if isCorpusFile(ev.Name) {
					if err := w.manager.RemoveSource(ctx, ev.Name); err != nil {
						logger.Error("remove source failed", zap.String("path", ev.Name), zap.Error(err))
					}
				}
				continue
			}
			if !isCorpusFile(ev.Name) {
				continue
			}
			if armed {
				if !timer.Stop() {
					select {
					case <-timer.C:
					default:
					}
				}
			}
			timer.Reset(w.debounce)
			armed = true
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logger.Warn("fs watch error", zap.Error(err))
		case <-timer.C:
			armed = false
			if _, err := w.manager.IngestDir(ctx); err != nil {
				logger.Error("watch-triggered ingest failed", zap.Error(err))
			}
		}
	}
}

func addRecursive(watcher *fsnotify.Watcher, root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return watcher.Add(path)
		}
		return nil
	})
}
