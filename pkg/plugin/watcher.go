package plugin

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/sirupsen/logrus"
)

// Watcher observes the extension root and invokes a reload callback
// once the tree settles after a burst of filesystem events. The
// callback typically re-runs discovery and composition and swaps the
// registry snapshot.
type Watcher struct {
	root     string
	scopeDir string
	debounce time.Duration
	reload   func(ctx context.Context)
	log      *logrus.Logger

	mu    sync.Mutex
	timer *time.Timer
}

// NewWatcher creates a watcher over root's scope directory. The
// debounce window coalesces the many events a plugin install produces
// into one reload.
func NewWatcher(root string, debounce time.Duration, reload func(ctx context.Context), log *logrus.Logger) *Watcher {
	if log == nil {
		log = logrus.New()
	}
	return &Watcher{
		root:     root,
		scopeDir: DefaultScopeDir,
		debounce: debounce,
		reload:   reload,
		log:      log,
	}
}

// Run watches until the context is cancelled. It returns the error that
// prevented watching from starting; runtime watch errors are logged and
// survived.
func (w *Watcher) Run(ctx context.Context) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer fw.Close()

	if err := w.watchTree(fw, filepath.Join(w.root, w.scopeDir)); err != nil {
		return err
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-fw.Events:
			if !ok {
				return nil
			}
			if event.Op&fsnotify.Create != 0 {
				// fsnotify does not recurse; newly created
				// directories need watches of their own.
				if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
					if err := w.watchTree(fw, event.Name); err != nil {
						w.log.Warnf("Cannot watch %s: %v", event.Name, err)
					}
				}
			}
			if event.Op&(fsnotify.Create|fsnotify.Remove|fsnotify.Rename|fsnotify.Write) != 0 {
				w.schedule(ctx)
			}
		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			w.log.Warnf("Plugin watcher error: %v", err)
		}
	}
}

// watchTree adds watches for dir and every directory below it, so edits
// inside plugin directories and nested extension trees are seen. Only
// the top-level dir is required to be watchable.
func (w *Watcher) watchTree(fw *fsnotify.Watcher, dir string) error {
	if err := fw.Add(dir); err != nil {
		return err
	}
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return nil
		}
		if !d.IsDir() || path == dir {
			return nil
		}
		if err := fw.Add(path); err != nil {
			w.log.Warnf("Cannot watch %s: %v", path, err)
		}
		return nil
	})
}

func (w *Watcher) schedule(ctx context.Context) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(w.debounce, func() {
		if ctx.Err() != nil {
			return
		}
		w.log.Info("Plugin tree changed, recomposing")
		w.reload(ctx)
	})
}
