package server

import (
	"context"
	"log/slog"
	"path/filepath"

	"github.com/fsnotify/fsnotify"

	"github.com/stagetrack/stagetrack/internal/registry"
	"github.com/stagetrack/stagetrack/pkg/storage"
)

// WatchSnapshot reloads the registry whenever another process rewrites the
// snapshot file. Only meaningful for local storage; S3 deployments rely on
// the per-request staleness check instead.
func WatchSnapshot(ctx context.Context, store *storage.LocalStorage, snapshotFile string, reg *registry.Registry) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}

	// Watch the directory, not the file: atomic writes replace the inode.
	dir := filepath.Dir(filepath.Join(store.BasePath(), snapshotFile))
	if err := watcher.Add(dir); err != nil {
		watcher.Close()
		return err
	}
	target := filepath.Base(snapshotFile)

	go func() {
		defer watcher.Close()
		slog.Info("watching snapshot for external changes", "dir", dir, "file", target)
		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if filepath.Base(event.Name) != target {
					continue
				}
				if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
					continue
				}
				slog.Debug("snapshot file changed", "op", event.Op.String())
				reg.ReloadIfStale(ctx)
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				slog.Warn("snapshot watcher error", "error", err)
			}
		}
	}()
	return nil
}
