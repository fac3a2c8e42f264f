package tokenstore

import (
	"context"
	"os"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

const watchOps = fsnotify.Create | fsnotify.Write | fsnotify.Remove | fsnotify.Rename

// Watch calls fn each time the file at path is created, written, replaced or
// removed, until ctx is done. The parent directory is watched so atomic
// replacements are seen.
func Watch(ctx context.Context, path string, log *zap.Logger, fn func()) error {
	if log == nil {
		log = zap.NewNop()
	}
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return err
	}
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	if err := w.Add(dir); err != nil {
		_ = w.Close()
		return err
	}

	target := filepath.Clean(path)
	go func() {
		defer w.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-w.Events:
				if !ok {
					return
				}
				if filepath.Clean(ev.Name) != target || ev.Op&watchOps == 0 {
					continue
				}
				log.Debug("token file changed", zap.String("op", ev.Op.String()))
				fn()
			case err, ok := <-w.Errors:
				if !ok {
					return
				}
				log.Warn("token watch", zap.Error(err))
			}
		}
	}()
	return nil
}
