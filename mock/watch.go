package mock

import (
	"context"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/mongodb/grip"
	"github.com/mongodb/grip/message"
	"github.com/pkg/errors"
)

const reloadDebounce = 500 * time.Millisecond

// Watch reloads the service from the file at path whenever it changes,
// until ctx is canceled. A file that fails to load is logged and the
// running service is kept.
func (s *Server) Watch(ctx context.Context, path string, seed uint64) error {
	path, err := filepath.Abs(path)
	if err != nil {
		return errors.WithStack(err)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return errors.Wrap(err, "creating file watcher")
	}
	defer watcher.Close()

	// editors often replace the file rather than write it in place, so
	// the directory is watched
	if err = watcher.Add(filepath.Dir(path)); err != nil {
		return errors.Wrapf(err, "watching '%s'", path)
	}

	var timer *time.Timer
	defer func() {
		if timer != nil {
			timer.Stop()
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
			if filepath.Clean(event.Name) != path {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}

			if timer != nil {
				timer.Stop()
			}
			timer = time.AfterFunc(reloadDebounce, func() {
				s.reloadFile(ctx, path, seed)
			})
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			grip.Warning(message.WrapError(err, message.Fields{
				"message": "file watcher error",
				"path":    path,
			}))
		}
	}
}

func (s *Server) reloadFile(ctx context.Context, path string, seed uint64) {
	data, err := os.ReadFile(path)
	if err != nil {
		grip.Error(message.WrapError(err, message.Fields{
			"message": "reading changed specification",
			"path":    path,
		}))
		return
	}

	svc, err := LoadService(ctx, filepath.Base(path), data, seed)
	if err == nil {
		err = s.Reload(svc)
	}
	if err != nil {
		grip.Error(message.WrapError(err, message.Fields{
			"message": "reloading changed specification, keeping the running service",
			"path":    path,
		}))
		return
	}

	grip.Info(message.Fields{
		"message":    "reloaded specification",
		"path":       path,
		"operations": len(svc.Operations),
	})
}
