package app

import (
	"context"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

const reloadDebounce = 500 * time.Millisecond

// WatchConfig reloads the config whenever its file changes, until ctx ends.
// The directory is watched so editors that replace the file are handled.
func (a *App) WatchConfig(ctx context.Context) error {
	if a.configPath == "" {
		return nil
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()

	if err := w.Add(filepath.Dir(a.configPath)); err != nil {
		return err
	}
	a.logger.Info("watching config", zap.String("path", a.configPath))

	target := filepath.Clean(a.configPath)
	var pending <-chan time.Time
	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-w.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != target {
				continue
			}
			if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) || event.Has(fsnotify.Rename) {
				pending = time.After(reloadDebounce)
			}

		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			a.logger.Warn("config watcher error", zap.Error(err))

		case <-pending:
			pending = nil
			if err := a.ReloadConfig(ctx); err != nil {
				a.logger.Error("config reload failed; keeping previous config", zap.Error(err))
			}
		}
	}
}
