package agent

import (
	"errors"
	"log"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// ErrNothingToWatch indicates none of the requested directories exist yet.
var ErrNothingToWatch = errors.New("no watchable agent directories")

// reloadDebounce coalesces bursts of filesystem events into one reload.
// Editors tend to fire several events per save.
const reloadDebounce = 250 * time.Millisecond

// Watcher reloads the registry when definition files change on disk.
type Watcher struct {
	registry *Registry
	watcher  *fsnotify.Watcher
	done     chan struct{}
	notify   chan struct{}

	mu     sync.Mutex
	closed bool
}

// NewWatcher watches the given directories and triggers registry reloads.
// Directories that do not exist yet are skipped. If the platform watcher
// cannot be created the registry still works, it just will not auto-reload.
func NewWatcher(registry *Registry, dirs ...string) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	w := &Watcher{
		registry: registry,
		watcher:  fsw,
		done:     make(chan struct{}),
		notify:   make(chan struct{}, 1),
	}

	watching := 0
	for _, dir := range dirs {
		if dir == "" {
			continue
		}
		if _, err := os.Stat(dir); err != nil {
			continue
		}
		if err := fsw.Add(dir); err != nil {
			log.Printf("[agent] cannot watch %s: %v", dir, err)
			continue
		}
		watching++
	}
	if watching == 0 {
		fsw.Close()
		return nil, ErrNothingToWatch
	}

	go w.loop()
	return w, nil
}

// loop debounces filesystem events and reloads the registry after each burst.
func (w *Watcher) loop() {
	var timer *time.Timer
	var timerC <-chan time.Time

	for {
		select {
		case <-w.done:
			if timer != nil {
				timer.Stop()
			}
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if !relevantEvent(event) {
				continue
			}
			if timer == nil {
				timer = time.NewTimer(reloadDebounce)
				timerC = timer.C
			} else {
				if !timer.Stop() {
					select {
					case <-timer.C:
					default:
					}
				}
				timer.Reset(reloadDebounce)
			}
		case <-timerC:
			log.Printf("[agent] definition change detected, reloading registry")
			w.registry.Reload()
			select {
			case w.notify <- struct{}{}:
			default:
			}
		case <-w.watcher.Errors:
			// Ignore errors, keep watching
		}
	}
}

// Notify returns a channel that receives after each completed reload.
// The channel is buffered; a slow receiver sees at most one pending signal.
func (w *Watcher) Notify() <-chan struct{} {
	return w.notify
}

// relevantEvent filters out events that cannot change the catalog.
func relevantEvent(event fsnotify.Event) bool {
	if !strings.HasSuffix(event.Name, ".md") {
		return false
	}
	return event.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Remove|fsnotify.Rename) != 0
}

// Close stops the watcher. Safe to call more than once.
func (w *Watcher) Close() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return
	}
	w.closed = true
	close(w.done)
	w.watcher.Close()
}
