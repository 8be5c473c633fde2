package plugin

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// DefaultDebounce groups bursts of file events (editors write, rename and
// chmod in quick succession) into one reload.
const DefaultDebounce = 500 * time.Millisecond

// Watcher calls onChange after reply files in a directory change.
type Watcher struct {
	dir      string
	debounce time.Duration
	onChange func()
	logger   *zap.Logger
	fsw      *fsnotify.Watcher
	cancel   context.CancelFunc
	done     chan struct{}
}

// NewWatcher creates a watcher for dir. onChange runs on the watcher's
// goroutine, so it should only hand the work off (e.g. enqueue a reload).
func NewWatcher(dir string, debounce time.Duration, onChange func(), logger *zap.Logger) *Watcher {
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	return &Watcher{dir: dir, debounce: debounce, onChange: onChange, logger: logger}
}

// Start begins watching. The directory must exist.
func (w *Watcher) Start(ctx context.Context) error {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	if err := fsw.Add(w.dir); err != nil {
		_ = fsw.Close()
		return fmt.Errorf("watch %s: %w", w.dir, err)
	}
	w.fsw = fsw
	ctx, w.cancel = context.WithCancel(ctx)
	w.done = make(chan struct{})
	go w.loop(ctx)
	w.logger.Info("watching plugin dir", zap.String("dir", w.dir))
	return nil
}

// Stop stops watching and waits for the loop to exit.
func (w *Watcher) Stop() {
	if w.cancel == nil {
		return
	}
	w.cancel()
	<-w.done
	_ = w.fsw.Close()
}

func (w *Watcher) loop(ctx context.Context) {
	defer close(w.done)
	var timer *time.Timer
	var fire <-chan time.Time

	for {
		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			return
		case evt, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			if !relevant(evt) {
				continue
			}
			if timer == nil {
				timer = time.NewTimer(w.debounce)
			} else {
				timer.Reset(w.debounce)
			}
			fire = timer.C
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			w.logger.Warn("plugin watcher error", zap.Error(err))
		case <-fire:
			fire = nil
			w.logger.Info("plugin dir changed, reloading")
			w.onChange()
		}
	}
}

func relevant(evt fsnotify.Event) bool {
	if !strings.HasSuffix(filepath.Base(evt.Name), ReplyExt) {
		return false
	}
	return evt.Has(fsnotify.Create) || evt.Has(fsnotify.Write) || evt.Has(fsnotify.Remove) || evt.Has(fsnotify.Rename)
}
