// Package follow reports matching lines of a file that is still being
// written, such as the trajectory of a running simulation.
package follow

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/jmurray2011/textparts/internal/watcher"
	"github.com/jmurray2011/textparts/pkg/marker"
	"github.com/jmurray2011/textparts/pkg/search"
	"github.com/sirupsen/logrus"
)

// Config holds configuration for a follower.
type Config struct {
	Path  string
	Query search.Query
	// PollInterval is how often the file size and PID are checked.
	PollInterval time.Duration
	// PID, if > 0, stops following once that process has exited.
	PID int
	Log *logrus.Entry
}

// Follower writes the offset of every matching line, one per line, first for
// the existing content and then for content appended later.
type Follower interface {
	// Follow blocks until ctx is cancelled, Query.MaxCount offsets have been
	// written, or the process named by PID exits.
	Follow(ctx context.Context, output io.Writer) error
}

type follower struct {
	config Config
	log    *logrus.Entry
}

// NewFollower creates a Follower.
func NewFollower(config Config) Follower {
	if config.PollInterval <= 0 {
		config.PollInterval = 100 * time.Millisecond
	}
	log := config.Log
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &follower{config: config, log: log.WithFields(logrus.Fields{"ns": "follow", "path": config.Path})}
}

// Follow implements Follower.
func (f *follower) Follow(ctx context.Context, output io.Writer) error {
	// A partial last line is left for the next scan, so only the builtin
	// searcher, which can stop on a line boundary, is used here.
	r, err := marker.Open(f.config.Path,
		marker.WithSearcher(&search.Builtin{Log: f.log}),
		marker.WithLogger(f.config.Log))
	if err != nil {
		return err
	}
	defer r.Close()

	q := f.config.Query
	q.SkipUnterminated = true
	emitted := 0
	done := func() bool { return f.config.Query.MaxCount > 0 && emitted >= f.config.Query.MaxCount }

	scan := func() error {
		if f.config.Query.MaxCount > 0 {
			q.MaxCount = f.config.Query.MaxCount - emitted
		}
		if _, err := r.MarkQuery(ctx, q); err != nil {
			return err
		}
		for _, off := range r.Markers() {
			if _, err := fmt.Fprintln(output, off); err != nil {
				return err
			}
			emitted++
		}
		_, err := r.SeekTo(r.ScanEnd())
		return err
	}

	if err := scan(); err != nil || done() {
		return err
	}

	events, err := watcher.NewWatcher(watcher.Config{
		Path:         f.config.Path,
		PollInterval: f.config.PollInterval,
		Log:          f.config.Log,
	}).Watch(ctx)
	if err != nil {
		return err
	}

	ticker := time.NewTicker(f.config.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case evt, ok := <-events:
			if !ok {
				return nil
			}
			if evt.Truncated {
				f.log.WithFields(logrus.Fields{"fn": "Follow", "size": evt.Size}).Debug("file truncated, rescanning")
				if err := r.GotoStart(); err != nil {
					return err
				}
			}
			if err := scan(); err != nil {
				if ctx.Err() != nil {
					return nil
				}
				return err
			}
			if done() {
				return nil
			}
		case <-ticker.C:
			if f.config.PID > 0 && !processExists(f.config.PID) {
				f.log.WithFields(logrus.Fields{"fn": "Follow", "pid": f.config.PID}).Debug("writer exited")
				return scan()
			}
		}
	}
}
