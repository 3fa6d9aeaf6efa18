package instmgr

import (
	"context"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"vawter.tech/stopper"
)

// ConfEvent reports a change to an instance configuration file, or a watch
// error. Exactly one of Instance/Path or Err is populated.
type ConfEvent struct {
	// Instance is the instance name derived from the changed file
	Instance string
	// Path is the changed configuration file
	Path string
	// Removed reports that the configuration file was deleted or renamed away
	Removed bool
	// Err is a watcher error, if one occurred
	Err error
}

// WatchCleanupFunc stops a watch and releases its resources
type WatchCleanupFunc func() error

// DefaultWatchDebounce is the debounce applied to bursts of writes against
// the same configuration file
const DefaultWatchDebounce = 25 * time.Millisecond

// Watch monitors the configuration directory for instance config changes.
// Rapid successive writes to the same file are coalesced. The returned
// cleanup function must be called to stop the watch; cancelling ctx also
// stops it.
func (r *Runner) Watch(ctx context.Context) (<-chan ConfEvent, WatchCleanupFunc, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, nil, err
	}

	if err := watcher.Add(r.ConfDir); err != nil {
		_ = watcher.Close()
		return nil, nil, err
	}

	ch := make(chan ConfEvent, 10)

	// Fired debouncers send from their own timer goroutines, which the
	// stopper does not track. The send and the close share one lock so a
	// timer that fires during shutdown cannot send on the closed channel.
	var sendMu sync.Mutex
	chClosed := false

	sctx := stopper.WithContext(ctx)
	sctx.Defer(func() {
		_ = watcher.Close()
		sendMu.Lock()
		chClosed = true
		close(ch)
		sendMu.Unlock()
	})

	cleanup := func() error {
		sctx.Stop(100 * time.Millisecond)
		return sctx.Wait()
	}

	var mu sync.Mutex
	debouncers := make(map[string]*time.Timer)

	emit := func(ev ConfEvent) {
		sendMu.Lock()
		defer sendMu.Unlock()
		if chClosed || sctx.IsStopping() {
			return
		}
		select {
		case ch <- ev:
		case <-sctx.Stopping():
		}
	}

	sctx.Go(func(sctx *stopper.Context) error {
		sctx.Defer(func() {
			mu.Lock()
			for _, t := range debouncers {
				t.Stop()
			}
			mu.Unlock()
		})

		for !sctx.IsStopping() {
			select {
			case <-sctx.Stopping():
				return nil

			case event, ok := <-watcher.Events:
				if !ok {
					return nil
				}
				if !strings.HasSuffix(event.Name, r.ConfSuffix) {
					continue
				}

				path := event.Name
				name := strings.TrimSuffix(filepath.Base(path), r.ConfSuffix)

				if event.Has(fsnotify.Remove) || event.Has(fsnotify.Rename) {
					mu.Lock()
					if t, ok := debouncers[path]; ok {
						t.Stop()
						delete(debouncers, path)
					}
					mu.Unlock()
					emit(ConfEvent{Instance: name, Path: path, Removed: true})
					continue
				}

				mu.Lock()
				if t, ok := debouncers[path]; ok {
					t.Stop()
				}
				debouncers[path] = time.AfterFunc(DefaultWatchDebounce, func() {
					mu.Lock()
					delete(debouncers, path)
					mu.Unlock()
					emit(ConfEvent{Instance: name, Path: path})
				})
				mu.Unlock()

			case err, ok := <-watcher.Errors:
				if !ok {
					return nil
				}
				if err != nil {
					emit(ConfEvent{Err: err})
				}
			}
		}
		return nil
	})

	return ch, cleanup, nil
}
