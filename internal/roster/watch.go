package roster

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

const reloadDebounce = 500 * time.Millisecond

// Watch reloads the roster from path whenever the file is written, until ctx
// is canceled. The parent directory is watched so editors that replace the
// file via rename are picked up too. A file that fails to parse leaves the
// previous snapshot in place.
func (r *Roster) Watch(ctx context.Context, path string, log *zap.Logger) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create roster watcher: %w", err)
	}
	defer func() { _ = watcher.Close() }()

	if err := watcher.Add(filepath.Dir(path)); err != nil {
		return fmt.Errorf("watch roster directory: %w", err)
	}

	target := filepath.Clean(path)
	var debounce *time.Timer
	defer func() {
		if debounce != nil {
			debounce.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != target {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}
			if debounce != nil {
				debounce.Stop()
			}
			debounce = time.AfterFunc(reloadDebounce, func() {
				snap, err := LoadFile(path)
				if err != nil {
					log.Warn("roster reload failed, keeping previous list", zap.String("path", path), zap.Error(err))
					return
				}
				r.Store(snap)
				log.Info("roster reloaded", zap.String("path", path), zap.Int("items", len(snap.Items)), zap.Int("expected_sum", snap.ExpectedSum()))
			})
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			log.Warn("roster watcher error", zap.Error(err))
		}
	}
}
