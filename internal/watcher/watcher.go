package watcher

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/sirupsen/logrus"
)

// DefaultPollInterval is the stat interval used when Config.PollInterval is
// zero. fsnotify delivers most changes sooner.
const DefaultPollInterval = 250 * time.Millisecond

// Event represents a file size change.
type Event struct {
	// Size is the new file size.
	Size int64
	// Truncated is true if the file shrank, e.g. a restarted simulation
	// rewrote its trajectory.
	Truncated bool
}

// Watcher watches a file for changes.
type Watcher interface {
	// Watch starts watching the file and sends events on the returned channel.
	// The channel is closed when the context is cancelled.
	// Returns an error if the file cannot be accessed initially.
	Watch(ctx context.Context) (<-chan Event, error)
}

// Config holds watcher configuration.
type Config struct {
	// Path is the file to watch.
	Path string
	// PollInterval is how often the size is checked regardless of
	// notifications, for filesystems where fsnotify is silent (NFS, SMB).
	PollInterval time.Duration
	Log          *logrus.Entry
}

// notifyWatcher combines fsnotify events with periodic polling.
type notifyWatcher struct {
	config Config
	log    *logrus.Entry
}

// NewWatcher creates a file watcher.
func NewWatcher(config Config) Watcher {
	if config.PollInterval <= 0 {
		config.PollInterval = DefaultPollInterval
	}
	log := config.Log
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &notifyWatcher{config: config, log: log.WithFields(logrus.Fields{"ns": "watcher", "path": config.Path})}
}

// Watch starts watching the file and sends events on the returned channel.
func (w *notifyWatcher) Watch(ctx context.Context) (<-chan Event, error) {
	info, err := os.Stat(w.config.Path)
	if err != nil {
		return nil, fmt.Errorf("accessing %s: %w", w.config.Path, err)
	}

	// Without fsnotify the nil channels below never fire and polling alone
	// drives the loop.
	var notify <-chan fsnotify.Event
	var notifyErrs <-chan error
	fw, err := fsnotify.NewWatcher()
	if err == nil {
		if err = fw.Add(w.config.Path); err == nil {
			notify, notifyErrs = fw.Events, fw.Errors
		} else {
			fw.Close()
			fw = nil
		}
	}
	if err != nil {
		w.log.WithFields(logrus.Fields{"fn": "Watch", "error": err}).Debug("fsnotify unavailable, polling only")
	}

	events := make(chan Event)
	lastSize := info.Size()

	go func() {
		defer close(events)
		if fw != nil {
			defer fw.Close()
		}

		ticker := time.NewTicker(w.config.PollInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-notify:
				if !ok {
					notify = nil
					continue
				}
				if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) {
					continue
				}
			case err, ok := <-notifyErrs:
				if !ok {
					notifyErrs = nil
					continue
				}
				w.log.WithFields(logrus.Fields{"fn": "Watch", "error": err}).Debug("fsnotify error")
				continue
			case <-ticker.C:
			}

			info, err := os.Stat(w.config.Path)
			if err != nil {
				// the file may be briefly missing while it is replaced
				continue
			}

			currentSize := info.Size()
			if currentSize == lastSize {
				continue
			}

			evt := Event{Size: currentSize}
			if currentSize < lastSize {
				evt.Truncated = true
			}

			select {
			case events <- evt:
				lastSize = currentSize
			case <-ctx.Done():
				return
			}
		}
	}()

	return events, nil
}
