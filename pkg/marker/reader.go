// Package marker indexes the lines of a file that match a pattern and then
// moves between them with cheap seeks instead of rescanning.
package marker

import (
	"context"
	"errors"
	"fmt"
	"io"
	"slices"
	"strings"

	"github.com/jmurray2011/textparts/internal/filesystem"
	"github.com/jmurray2011/textparts/pkg/linesource"
	"github.com/jmurray2011/textparts/pkg/search"
	"github.com/jmurray2011/textparts/pkg/view"
	"github.com/sirupsen/logrus"
	"github.com/spf13/afero"
)

var (
	// ErrNoMoreMarkers is returned by GotoNextMarker after the last marker.
	ErrNoMoreMarkers = errors.New("no more markers")
	// ErrMarkerRange is returned for a marker index outside the marker list.
	ErrMarkerRange = errors.New("marker index out of range")
	// ErrCursorPastMarker is returned by ReadUntilNextMarker when the cursor
	// is already at or past the next marker.
	ErrCursorPastMarker = errors.New("cursor at or past next marker")
)

// Reader is a file cursor plus an ordered list of marker offsets.
type Reader struct {
	path     string
	src      *linesource.Source
	searcher search.Searcher
	log      *logrus.Entry

	markers []int64
	index   int
	scanEnd int64
}

// Option configures a Reader.
type Option func(*config)

type config struct {
	fs       afero.Fs
	searcher search.Searcher
	log      *logrus.Entry
}

// WithSearcher sets the searcher used by Mark. By default ripgrep is used
// when it is installed.
func WithSearcher(s search.Searcher) Option {
	return func(c *config) { c.searcher = s }
}

// WithFs reads the file from fs. Filesystems other than the OS one always
// use the builtin searcher, since ripgrep cannot see them.
func WithFs(fs afero.Fs) Option {
	return func(c *config) { c.fs = fs }
}

// WithLogger sets the entry debug messages are written to.
func WithLogger(log *logrus.Entry) Option {
	return func(c *config) { c.log = log }
}

// Open opens the file at path. The file must be seekable, so compressed
// files are rejected.
func Open(path string, opts ...Option) (*Reader, error) {
	var c config
	for _, opt := range opts {
		opt(&c)
	}
	if c.log == nil {
		c.log = logrus.NewEntry(logrus.StandardLogger())
	}
	log := c.log.WithField("ns", "marker")

	src, err := linesource.Open(path, linesource.WithFs(c.fs), linesource.WithLogger(c.log))
	if err != nil {
		return nil, err
	}
	if !src.Seekable() {
		src.Close()
		return nil, fmt.Errorf("%s: %w", path, linesource.ErrNotSeekable)
	}

	switch {
	case c.fs != nil && !filesystem.IsOsFs(c.fs):
		c.searcher = &search.Builtin{Log: log}
	case c.searcher == nil:
		c.searcher = search.Detect(log)
	}
	log.WithFields(logrus.Fields{"fn": "Open", "path": path, "searcher": c.searcher.Name()}).Debug("opened")

	return &Reader{path: path, src: src, searcher: c.searcher, log: log}, nil
}

// Mark finds the lines matching pattern from the cursor onwards and makes
// them the marker list. maxCount > 0 stops after that many matches. The
// cursor is left where it was. It returns the number of markers.
func (r *Reader) Mark(ctx context.Context, pattern string, maxCount int) (int, error) {
	return r.MarkQuery(ctx, search.Query{Pattern: pattern, MaxCount: maxCount})
}

// MarkLiterals is Mark for lines containing any of literals.
func (r *Reader) MarkLiterals(ctx context.Context, literals []string, maxCount int) (int, error) {
	return r.MarkQuery(ctx, search.Query{Literals: literals, MaxCount: maxCount})
}

// MarkQuery is Mark for a full query. A cursor inside a line starts the
// search at the next line. On error the previous markers are kept.
func (r *Reader) MarkQuery(ctx context.Context, q search.Query) (int, error) {
	origin := r.src.Offset()
	if _, err := r.src.SkipPartialLine(); err != nil {
		return 0, fmt.Errorf("marking %q in %s: %w", q.String(), r.path, err)
	}
	start := r.src.Offset()
	res, err := r.searcher.Search(ctx, search.Target{Path: r.path, Reader: r.src, Offset: start}, q)
	if _, serr := r.src.SeekTo(origin); serr != nil && err == nil {
		err = serr
	}
	if err != nil {
		return 0, fmt.Errorf("marking %q in %s: %w", q.String(), r.path, err)
	}

	markers := slices.Clone(res.Offsets)
	slices.Sort(markers)
	r.markers = slices.Compact(markers)
	r.index = 0
	r.scanEnd = res.End

	r.log.WithFields(logrus.Fields{
		"fn":       "MarkQuery",
		"query":    q.String(),
		"from":     start,
		"markers":  len(r.markers),
		"binary":   res.Binary,
		"searcher": r.searcher.Name(),
	}).Debug("marked")
	return len(r.markers), nil
}

// ScanEnd returns the offset, on a line boundary, where the last Mark
// stopped scanning.
func (r *Reader) ScanEnd() int64 { return r.scanEnd }

// Offset returns the cursor position.
func (r *Reader) Offset() int64 { return r.src.Offset() }

// SeekTo moves the cursor to an absolute offset.
func (r *Reader) SeekTo(offset int64) (int64, error) { return r.src.SeekTo(offset) }

// GotoStart moves the cursor to the start of the file.
func (r *Reader) GotoStart() error { return r.src.GotoStart() }

// GotoEnd moves the cursor to the end of the file.
func (r *Reader) GotoEnd() error { return r.src.GotoEnd() }

// NumMarkers returns the number of markers.
func (r *Reader) NumMarkers() int { return len(r.markers) }

// Markers returns a copy of the marker offsets.
func (r *Reader) Markers() []int64 { return slices.Clone(r.markers) }

// MarkerIndex returns the index of the next unconsumed marker.
func (r *Reader) MarkerIndex() int { return r.index }

// GotoNextMarker moves the cursor to the next unconsumed marker and consumes
// it. After the last marker it fails without moving.
func (r *Reader) GotoNextMarker() (int64, error) {
	if r.index >= len(r.markers) {
		return r.src.Offset(), ErrNoMoreMarkers
	}
	pos, err := r.src.SeekTo(r.markers[r.index])
	if err != nil {
		return pos, err
	}
	r.index++
	return pos, nil
}

// GotoMarker moves the cursor to marker i; marker i+1 becomes the next one.
func (r *Reader) GotoMarker(i int) (int64, error) {
	if i < 0 || i >= len(r.markers) {
		return r.src.Offset(), fmt.Errorf("marker %d of %d: %w", i, len(r.markers), ErrMarkerRange)
	}
	pos, err := r.src.SeekTo(r.markers[i])
	if err != nil {
		return pos, err
	}
	r.index = i + 1
	return pos, nil
}

// ReadLines appends exactly n lines to b, line endings untouched. If the
// file ends first, b keeps the lines that were read and the error wraps
// io.ErrUnexpectedEOF.
func (r *Reader) ReadLines(n int, b *strings.Builder) error {
	for i := 0; i < n; i++ {
		line, err := r.src.ReadRawLine()
		if err == io.EOF {
			return fmt.Errorf("required %d lines, read %d: %w", n, i, io.ErrUnexpectedEOF)
		}
		if err != nil {
			return err
		}
		b.WriteString(line)
	}
	return nil
}

// ReadUntilNextMarker appends whole lines to b until the cursor reaches the
// next unconsumed marker, then consumes it. With no marker left it reads to
// the end of the file.
func (r *Reader) ReadUntilNextMarker(b *strings.Builder) error {
	if r.index >= len(r.markers) {
		for {
			line, err := r.src.ReadRawLine()
			if err == io.EOF {
				return nil
			}
			if err != nil {
				return err
			}
			b.WriteString(line)
		}
	}

	next := r.markers[r.index]
	if cur := r.src.Offset(); cur >= next {
		return fmt.Errorf("cursor at %d, marker %d at %d: %w", cur, r.index, next, ErrCursorPastMarker)
	}
	for r.src.Offset() < next {
		line, err := r.src.ReadRawLine()
		if err == io.EOF {
			return fmt.Errorf("marker %d at %d is past the end: %w", r.index, next, io.ErrUnexpectedEOF)
		}
		if err != nil {
			return err
		}
		b.WriteString(line)
	}
	r.index++
	return nil
}

// ViewLines reads n lines into a Viewer. On error the Viewer holds what was
// read.
func (r *Reader) ViewLines(n int) (*view.Viewer, error) {
	var b strings.Builder
	err := r.ReadLines(n, &b)
	return view.FromString(b.String()), err
}

// ViewUntilNextMarker is ReadUntilNextMarker into a Viewer.
func (r *Reader) ViewUntilNextMarker() (*view.Viewer, error) {
	var b strings.Builder
	err := r.ReadUntilNextMarker(&b)
	return view.FromString(b.String()), err
}

// Close closes the file.
func (r *Reader) Close() error {
	return r.src.Close()
}
