package config

import (
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// reloadDebounce coalesces the burst of events editors emit on save.
const reloadDebounce = 200 * time.Millisecond

// Watch reloads path whenever it changes and hands every valid result to
// onChange. Invalid configs go to onError and the previous config stays in
// effect. The returned func stops the watcher.
func Watch(path string, onChange func(*Config), onError func(error)) (func(), error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	// Watch the directory: editors often replace the file rather than write it.
	dir := filepath.Dir(path)
	if err := watcher.Add(dir); err != nil {
		watcher.Close()
		return nil, err
	}

	target := filepath.Clean(path)
	done := make(chan struct{})

	// mu serializes callbacks with stop so none runs once stop has returned.
	var (
		mu      sync.Mutex
		stopped bool
	)

	reload := func() {
		mu.Lock()
		defer mu.Unlock()
		if stopped {
			return
		}
		cfg, err := Load(path)
		if err != nil {
			if onError != nil {
				onError(err)
			}
			return
		}
		onChange(cfg)
	}

	go func() {
		var debounceTimer *time.Timer

		for {
			select {
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if filepath.Clean(event.Name) != target {
					continue
				}
				if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
					continue
				}

				if debounceTimer != nil {
					debounceTimer.Stop()
				}
				debounceTimer = time.AfterFunc(reloadDebounce, reload)

			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				if onError != nil {
					onError(err)
				}

			case <-done:
				if debounceTimer != nil {
					debounceTimer.Stop()
				}
				return
			}
		}
	}()

	var once sync.Once
	cleanup := func() {
		once.Do(func() {
			mu.Lock()
			stopped = true
			mu.Unlock()
			close(done)
			watcher.Close()
		})
	}

	return cleanup, nil
}
