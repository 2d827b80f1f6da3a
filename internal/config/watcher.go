package config

import (
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/jonboulle/clockwork"

	"github.com/penwyp/go-ha-timeline/internal/util"
)

// DefaultDebounce groups the burst of events an editor save produces.
const DefaultDebounce = 250 * time.Millisecond

// Watcher reloads the configuration file whenever it changes on disk and
// publishes every configuration that loads and validates.
type Watcher struct {
	path     string
	watcher  *fsnotify.Watcher
	clock    clockwork.Clock
	debounce time.Duration
	updates  chan *Config
	done     chan struct{}
	once     sync.Once
	wg       sync.WaitGroup
}

// NewWatcher watches path. A nil clock uses the real one.
func NewWatcher(path string, clock clockwork.Clock) (*Watcher, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	// Editors replace files on save, so watch the directory.
	if err := watcher.Add(filepath.Dir(abs)); err != nil {
		watcher.Close()
		return nil, err
	}
	if clock == nil {
		clock = clockwork.NewRealClock()
	}

	w := &Watcher{
		path:     abs,
		watcher:  watcher,
		clock:    clock,
		debounce: DefaultDebounce,
		updates:  make(chan *Config, 1),
		done:     make(chan struct{}),
	}
	w.wg.Add(1)
	go w.processEvents()
	return w, nil
}

// Updates delivers reloaded configurations.
func (w *Watcher) Updates() <-chan *Config {
	return w.updates
}

func (w *Watcher) processEvents() {
	defer w.wg.Done()

	var (
		timer clockwork.Timer
		fire  <-chan time.Time
	)
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case <-w.done:
			return

		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != w.path {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
				continue
			}
			if timer == nil {
				timer = w.clock.NewTimer(w.debounce)
			} else {
				timer.Reset(w.debounce)
			}
			fire = timer.Chan()

		case <-fire:
			fire = nil
			w.reload()

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			util.LogError("Config watch error: " + err.Error())
		}
	}
}

func (w *Watcher) reload() {
	cfg, err := Load(w.path)
	if err != nil {
		util.LogWarnf("ignoring config change in %s: %v", w.path, err)
		return
	}
	util.LogInfof("configuration reloaded from %s", w.path)

	// Only the newest configuration matters to a slow consumer.
	select {
	case <-w.updates:
	default:
	}
	select {
	case w.updates <- cfg:
	case <-w.done:
	}
}

// Close stops watching and waits for the event loop to exit.
func (w *Watcher) Close() error {
	var err error
	w.once.Do(func() {
		close(w.done)
		err = w.watcher.Close()
		w.wg.Wait()
	})
	return err
}
