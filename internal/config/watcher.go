package config

import (
	"fmt"
	"log"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// OnReload is invoked after a successful hot-reload so consumers can react
// to changes (e.g. reconfiguring the queue or log level).
type OnReload func(old, new *Config)

// Watcher monitors the config file for changes and reloads automatically.
type Watcher struct {
	fsWatcher *fsnotify.Watcher
	filePath  string
	callbacks []OnReload
	mu        sync.Mutex
	done      chan struct{}
}

// Watch starts watching the given config file for changes. On modification
// the config is re-loaded, re-validated, and atomically swapped; registered
// callbacks then run with the old and new config.
func Watch(filePath string) (*Watcher, error) {
	if filePath == "" {
		return nil, fmt.Errorf("config watcher: file path must not be empty")
	}

	absPath, err := filepath.Abs(filePath)
	if err != nil {
		return nil, fmt.Errorf("config watcher: resolving path: %w", err)
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("config watcher: creating fsnotify watcher: %w", err)
	}

	// Watch the containing directory, not the file itself: editors commonly
	// save atomically (write temp + rename), which changes the inode.
	dir := filepath.Dir(absPath)
	if err := fsw.Add(dir); err != nil {
		fsw.Close()
		return nil, fmt.Errorf("config watcher: watching directory %s: %w", dir, err)
	}

	w := &Watcher{
		fsWatcher: fsw,
		filePath:  absPath,
		done:      make(chan struct{}),
	}

	go w.loop()

	return w, nil
}

// OnChange registers a callback invoked after each successful reload.
func (w *Watcher) OnChange(fn OnReload) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.callbacks = append(w.callbacks, fn)
}

// Close stops the watcher and releases resources.
func (w *Watcher) Close() error {
	close(w.done)
	return w.fsWatcher.Close()
}

func (w *Watcher) loop() {
	const debounce = 100 * time.Millisecond
	var timer *time.Timer

	for {
		select {
		case <-w.done:
			if timer != nil {
				timer.Stop()
			}
			return

		case event, ok := <-w.fsWatcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != w.filePath {
				continue
			}

			isWrite := event.Op&fsnotify.Write != 0
			isCreate := event.Op&fsnotify.Create != 0
			isRename := event.Op&fsnotify.Rename != 0
			if !isWrite && !isCreate && !isRename {
				continue
			}

			if timer != nil {
				timer.Stop()
			}
			timer = time.AfterFunc(debounce, func() {
				w.reload()
			})

		case err, ok := <-w.fsWatcher.Errors:
			if !ok {
				return
			}
			log.Printf("config watcher: error: %v", err)
		}
	}
}

func (w *Watcher) reload() {
	old := Get()

	newCfg, err := Load(w.filePath)
	if err != nil {
		log.Printf("config watcher: reload failed: %v (keeping previous config)", err)
		return
	}

	log.Printf("config watcher: reloaded from %s", w.filePath)

	w.mu.Lock()
	cbs := make([]OnReload, len(w.callbacks))
	copy(cbs, w.callbacks)
	w.mu.Unlock()

	for _, cb := range cbs {
		func() {
			defer func() {
				if r := recover(); r != nil {
					log.Printf("config watcher: callback panicked: %v", r)
				}
			}()
			cb(old, newCfg)
		}()
	}
}
