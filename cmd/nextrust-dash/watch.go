package main

import (
	"log"
	"os"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/fsnotify/fsnotify"
)

// fsChangeMsg is sent when a change is detected in the status directory.
type fsChangeMsg struct{}

// watchStatusDir creates a file system watcher for the pipeline status
// directory. Returns nil if the directory doesn't exist or watcher creation
// fails (the dashboard falls back to tick-driven polling).
func watchStatusDir(dir string) tea.Cmd {
	watcher := initWatcher(dir)
	if watcher == nil {
		return nil
	}
	return runWatcher(watcher)
}

// initWatcher creates a watcher over dir, or nil when watching is
// unavailable.
func initWatcher(dir string) *fsnotify.Watcher {
	if _, err := os.Stat(dir); err != nil {
		return nil
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		log.Printf("fsnotify: failed to create watcher: %v (falling back to polling)", err)
		return nil
	}

	if err := watcher.Add(dir); err != nil {
		_ = watcher.Close()
		log.Printf("fsnotify: failed to watch %s: %v (falling back to polling)", dir, err)
		return nil
	}

	return watcher
}

// runWatcher returns a tea.Cmd that emits one fsChangeMsg after events
// settle. Debounced: status appends come in bursts when a build phase runs.
func runWatcher(watcher *fsnotify.Watcher) tea.Cmd {
	return func() tea.Msg {
		defer watcher.Close()

		debounceTimer := newDebounceTimer()
		defer debounceTimer.Stop()

		for {
			select {
			case _, ok := <-watcher.Events:
				if !ok {
					return nil
				}
				resetDebounceTimer(debounceTimer)

			case <-debounceTimer.C:
				return fsChangeMsg{}

			case err, ok := <-watcher.Errors:
				if !ok {
					return nil
				}
				log.Printf("fsnotify: watcher error: %v", err)
				return nil
			}
		}
	}
}

// newDebounceTimer creates a stopped timer for debouncing events.
func newDebounceTimer() *time.Timer {
	timer := time.NewTimer(0)
	if !timer.Stop() {
		<-timer.C
	}
	return timer
}

// resetDebounceTimer restarts the debounce window.
func resetDebounceTimer(timer *time.Timer) {
	const debounceDuration = 100 * time.Millisecond
	if !timer.Stop() {
		select {
		case <-timer.C:
		default:
		}
	}
	timer.Reset(debounceDuration)
}
