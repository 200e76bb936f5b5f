package filesystem

import (
	"context"
	"io/fs"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
)

// Watcher reports changes to the templates of a Local file system.
type Watcher struct {
	watcher *fsnotify.Watcher
	local   *Local
	logger  *slog.Logger

	mu   sync.Mutex
	subs []func(name string)
	done chan struct{}
}

// NewWatcher watches the root of l and its subdirectories. The watcher
// runs until ctx is done or Close is called.
func NewWatcher(ctx context.Context, l *Local, logger *slog.Logger) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	w := &Watcher{watcher: fw, local: l, logger: logger, done: make(chan struct{})}
	if err := w.watchDirRecursive(l.Root); err != nil {
		fw.Close()
		return nil, err
	}
	go w.eventLoop(ctx)
	return w, nil
}

// OnChange registers fn to be called with the template name of every
// changed, created or removed template file.
func (w *Watcher) OnChange(fn func(name string)) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.subs = append(w.subs, fn)
}

// Close stops watching. It may be called after ctx is done.
func (w *Watcher) Close() error {
	err := w.watcher.Close()
	<-w.done
	return err
}

func (w *Watcher) watchDirRecursive(root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		if strings.HasPrefix(d.Name(), ".") && path != root {
			return filepath.SkipDir
		}
		return w.watcher.Add(path)
	})
}

func (w *Watcher) eventLoop(ctx context.Context) {
	defer close(w.done)
	for {
		select {
		case <-ctx.Done():
			if err := w.watcher.Close(); err != nil {
				w.logger.Warn("closing watcher", "err", err)
			}
			return

		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if event.Has(fsnotify.Create) {
				// New directories need their own watch.
				w.watchDirRecursive(event.Name)
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) &&
				!event.Has(fsnotify.Remove) && !event.Has(fsnotify.Rename) {
				continue
			}
			name, ok := w.local.NameOf(event.Name)
			if !ok {
				continue
			}
			w.logger.Debug("template changed", "name", name, "op", event.Op.String())
			w.notify(name)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Warn("watcher error", "err", err)
		}
	}
}

func (w *Watcher) notify(name string) {
	w.mu.Lock()
	subs := append([]func(string){}, w.subs...)
	w.mu.Unlock()
	for _, fn := range subs {
		fn(name)
	}
}
