// Package linesource provides buffered, line-oriented reading over files,
// strings and arbitrary readers without loading the whole input into memory.
package linesource

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"iter"
	"strings"
	"unicode/utf8"

	"github.com/jmurray2011/textparts/internal/filesystem"
	"github.com/sirupsen/logrus"
)

// Source reads lines from an underlying stream and tracks the absolute byte
// offset of the next unread byte.
type Source struct {
	under  io.Reader
	seeker io.Seeker // nil when the stream cannot really seek
	closer io.Closer // nil when the caller owns the stream
	r      *bufio.Reader
	offset int64
	log    *logrus.Entry
}

// Open opens the file at path. Files ending in .gz or .zst are decompressed
// while reading; such sources cannot seek.
func Open(path string, opts ...Option) (*Source, error) {
	o := buildOptions(opts)
	rc, c, err := filesystem.OpenDecoded(filesystem.NewFsOpener(o.fs), path)
	if err != nil {
		return nil, err
	}
	s := newSource(rc, o)
	s.closer = rc
	s.log.WithFields(logrus.Fields{
		"fn":          "Open",
		"path":        path,
		"compression": c.String(),
		"seekable":    s.Seekable(),
	}).Debug("opened source")
	return s, nil
}

// FromString returns a seekable Source over s.
func FromString(s string) *Source {
	return New(strings.NewReader(s))
}

// New wraps r. The Source can seek only if r is an io.Seeker whose
// Seek(0, io.SeekCurrent) succeeds; stdin implements Seeker but fails the
// probe. New does not take ownership of r: Close leaves it open.
func New(r io.Reader, opts ...Option) *Source {
	return newSource(r, buildOptions(opts))
}

func newSource(r io.Reader, o options) *Source {
	s := &Source{
		under: r,
		r:     bufio.NewReaderSize(r, o.bufSize),
		log:   o.log,
	}
	if seeker, ok := r.(io.Seeker); ok {
		if pos, err := seeker.Seek(0, io.SeekCurrent); err == nil {
			s.seeker = seeker
			s.offset = pos
		}
	}
	return s
}

// Seekable reports whether the Source can move its cursor backwards.
func (s *Source) Seekable() bool {
	return s.seeker != nil
}

// Offset returns the absolute byte offset of the next unread byte.
func (s *Source) Offset() int64 {
	return s.offset
}

// ReadLine reads one line. A CRLF ending is returned as "\n"; the final line
// of a stream without a trailing newline is returned as-is. It returns io.EOF
// only when nothing is left to read.
func (s *Source) ReadLine() (string, error) {
	start := s.offset
	raw, err := s.readRaw()
	if err != nil {
		return "", err
	}
	return decode(normalize(raw), start, len(raw))
}

// ReadRawLine is ReadLine without line-ending normalization, for callers that
// need to reproduce the input byte for byte.
func (s *Source) ReadRawLine() (string, error) {
	start := s.offset
	raw, err := s.readRaw()
	if err != nil {
		return "", err
	}
	return decode(raw, start, len(raw))
}

func (s *Source) readRaw() ([]byte, error) {
	line, err := s.r.ReadBytes('\n')
	s.offset += int64(len(line))
	if err != nil && err != io.EOF {
		return nil, fmt.Errorf("reading line at offset %d: %w", s.offset, err)
	}
	if len(line) == 0 {
		return nil, io.EOF
	}
	return line, nil
}

// PeekLine returns the next line like ReadLine without consuming it. Lines
// that fit in the read buffer are inspected in place; longer ones are read
// and the cursor is seeked back, which fails with ErrNotSeekable on streams.
func (s *Source) PeekLine() (string, error) {
	b, _ := s.r.Peek(s.r.Buffered())
	if i := bytes.IndexByte(b, '\n'); i >= 0 {
		return decode(normalize(b[:i+1]), s.offset, i+1)
	}

	b, err := s.r.Peek(s.r.Size())
	if i := bytes.IndexByte(b, '\n'); i >= 0 {
		return decode(normalize(b[:i+1]), s.offset, i+1)
	}
	switch err {
	case nil:
		return s.peekLong()
	case io.EOF:
		if len(b) == 0 {
			return "", io.EOF
		}
		return decode(normalize(b), s.offset, len(b))
	default:
		return "", fmt.Errorf("peeking line at offset %d: %w", s.offset, err)
	}
}

func (s *Source) peekLong() (string, error) {
	if s.seeker == nil {
		return "", fmt.Errorf("peeking line longer than %d bytes: %w", s.r.Size(), ErrNotSeekable)
	}
	start := s.offset
	raw, err := s.readRaw()
	if err != nil {
		return "", err
	}
	if _, err := s.SeekTo(start); err != nil {
		return "", err
	}
	return decode(normalize(raw), start, len(raw))
}

// SeekLine reads forward until pred accepts a line and leaves the cursor at
// the start of that line. It returns the number of bytes skipped. When the
// stream ends first the cursor is at the end and the error is ErrNotFound.
// Lines that fail to decode are skipped.
func (s *Source) SeekLine(pred func(line string) bool) (int64, error) {
	var skipped int64
	for {
		line, err := s.PeekLine()
		switch {
		case err == io.EOF:
			return skipped, ErrNotFound
		case err == nil:
			if pred(line) {
				return skipped, nil
			}
		case !isDecode(err):
			return skipped, err
		}
		raw, err := s.readRaw()
		if err != nil {
			return skipped, err
		}
		skipped += int64(len(raw))
	}
}

// SeekTo moves the cursor to the absolute byte offset.
func (s *Source) SeekTo(offset int64) (int64, error) {
	if d := offset - s.offset; d >= 0 && d <= int64(s.r.Buffered()) {
		n, _ := s.r.Discard(int(d))
		s.offset += int64(n)
		return s.offset, nil
	}
	if s.seeker == nil {
		return s.offset, ErrNotSeekable
	}
	pos, err := s.seeker.Seek(offset, io.SeekStart)
	if err != nil {
		return s.offset, fmt.Errorf("seeking to %d: %w", offset, err)
	}
	s.r.Reset(s.under)
	s.offset = pos
	return pos, nil
}

// SkipPartialLine moves a cursor that sits inside a line to the start of the
// next line and returns the number of bytes skipped. A cursor already at a
// line start does not move. It looks one byte back, so it needs a seekable
// Source unless the cursor is at offset 0.
func (s *Source) SkipPartialLine() (int64, error) {
	start := s.offset
	if start == 0 {
		return 0, nil
	}
	if _, err := s.SeekTo(start - 1); err != nil {
		return 0, err
	}
	c, err := s.r.ReadByte()
	if err != nil {
		return 0, fmt.Errorf("reading byte at offset %d: %w", start-1, err)
	}
	s.offset++
	if c == '\n' {
		return 0, nil
	}
	raw, err := s.readRaw()
	if err == io.EOF {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return int64(len(raw)), nil
}

// GotoStart rewinds to the beginning of the stream.
func (s *Source) GotoStart() error {
	_, err := s.SeekTo(0)
	return err
}

// GotoEnd moves the cursor past the last byte. Streams that cannot seek are
// drained instead.
func (s *Source) GotoEnd() error {
	if s.seeker == nil {
		_, err := io.Copy(io.Discard, s)
		return err
	}
	pos, err := s.seeker.Seek(0, io.SeekEnd)
	if err != nil {
		return fmt.Errorf("seeking to end: %w", err)
	}
	s.r.Reset(s.under)
	s.offset = pos
	return nil
}

// Read implements io.Reader over the cursor so the rest of the stream can be
// handed to other consumers.
func (s *Source) Read(p []byte) (int, error) {
	n, err := s.r.Read(p)
	s.offset += int64(n)
	return n, err
}

// ReadAll reads everything from the cursor to the end with CRLF normalized.
// The whole remainder is held in memory, so it is only suitable for small
// files or regions.
func (s *Source) ReadAll() (string, error) {
	start := s.offset
	b, err := io.ReadAll(s)
	if err != nil {
		return "", fmt.Errorf("reading to end: %w", err)
	}
	if !utf8.Valid(b) {
		return "", &DecodeError{Offset: start, Len: len(b)}
	}
	return string(bytes.ReplaceAll(b, []byte("\r\n"), []byte("\n"))), nil
}

// Lines iterates over the remaining lines without their line endings. Decode
// errors are yielded and iteration continues; any other error ends it.
func (s *Source) Lines() iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		for {
			line, err := s.ReadLine()
			if err == io.EOF {
				return
			}
			if err != nil {
				if !yield("", err) || !isDecode(err) {
					return
				}
				continue
			}
			if !yield(strings.TrimSuffix(line, "\n"), nil) {
				return
			}
		}
	}
}

// Close releases the file opened by Open. It is safe to call more than once.
func (s *Source) Close() error {
	if s.closer == nil {
		return nil
	}
	err := s.closer.Close()
	s.closer = nil
	return err
}

// normalize turns a trailing "\r\n" into "\n".
func normalize(line []byte) []byte {
	if n := len(line); n >= 2 && line[n-2] == '\r' && line[n-1] == '\n' {
		out := make([]byte, n-1)
		copy(out, line[:n-2])
		out[n-2] = '\n'
		return out
	}
	return line
}

func decode(line []byte, offset int64, rawLen int) (string, error) {
	if !utf8.Valid(line) {
		return "", &DecodeError{Offset: offset, Len: rawLen}
	}
	return string(line), nil
}

func isDecode(err error) bool {
	_, ok := err.(*DecodeError)
	return ok
}
