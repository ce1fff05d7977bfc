// Package partition splits a line stream into parts, such as trajectory
// frames, according to a Policy.
package partition

import (
	"errors"
	"fmt"
	"io"
	"iter"
	"strings"

	"github.com/jmurray2011/textparts/pkg/linesource"
	"github.com/sirupsen/logrus"
)

// ErrMalformed matches every *MalformedError.
var ErrMalformed = errors.New("malformed input")

// MalformedError is returned when a Policy fails or makes an impossible
// decision. Partitioning stops after it.
type MalformedError struct {
	// Offset is the byte offset of the first line of the failed part.
	Offset int64
	// Lines is the number of lines accumulated when the policy gave up.
	Lines int
	Msg   string
}

func (e *MalformedError) Error() string {
	return fmt.Sprintf("part at offset %d (%d lines): %s", e.Offset, e.Lines, e.Msg)
}

func (e *MalformedError) Unwrap() error { return ErrMalformed }

// Parts produces parts lazily from a Source.
type Parts struct {
	src    *linesource.Source
	policy Policy
	log    *logrus.Entry

	buf   []string // lines of the pending part
	lens  []int    // raw byte length of each buffered line
	start int64    // offset of buf[0]
	eof   bool
	err   error
}

// Option configures Parts.
type Option func(*Parts)

// WithLogger sets the entry debug messages are written to.
func WithLogger(log *logrus.Entry) Option {
	return func(p *Parts) { p.log = log }
}

// New partitions src with policy, which defaults to Whole. Parts takes
// ownership of src.
func New(src *linesource.Source, policy Policy, opts ...Option) *Parts {
	if policy == nil {
		policy = Whole()
	}
	p := &Parts{
		src:    src,
		policy: policy,
		log:    logrus.NewEntry(logrus.StandardLogger()),
	}
	for _, opt := range opts {
		opt(p)
	}
	p.log = p.log.WithField("ns", "partition")
	return p
}

// Chunks splits src into parts of n lines.
func Chunks(src *linesource.Source, n int) *Parts {
	return New(src, FixedLines(n))
}

// Terminated splits src after every line pred accepts.
func Terminated(src *linesource.Source, pred LineFunc) *Parts {
	return New(src, TerminatedBy(pred))
}

// Preceded splits src before every line pred accepts.
func Preceded(src *linesource.Source, pred LineFunc) *Parts {
	return New(src, PrecededBy(pred))
}

// Next returns the next part. It returns io.EOF once the stream is exhausted
// and any trailing partial part has been returned. A line that fails to
// decode is dropped and its error returned; calling Next again continues.
// Other errors are returned on every later call.
func (p *Parts) Next() (string, error) {
	if p.err != nil {
		return "", p.err
	}
	if p.eof {
		return "", io.EOF
	}

	want := 1
	for {
		for i := 0; i < want; i++ {
			if len(p.buf) == 0 {
				p.start = p.src.Offset()
			}
			off := p.src.Offset()
			line, err := p.src.ReadLine()
			if err == io.EOF {
				p.eof = true
				break
			}
			if err != nil {
				if errors.Is(err, linesource.ErrDecode) {
					// keep offsets of later lines exact
					if n := len(p.lens); n > 0 {
						p.lens[n-1] += int(p.src.Offset() - off)
					}
					return "", err
				}
				p.err = err
				return "", err
			}
			p.buf = append(p.buf, line)
			p.lens = append(p.lens, int(p.src.Offset()-off))
		}

		if p.eof {
			if len(p.buf) == 0 {
				return "", io.EOF
			}
			return p.take(len(p.buf)), nil
		}

		act := p.policy.Decide(Context{lines: p.buf})
		switch act.kind {
		case actNeed:
			want = max(act.n, 1)
		case actDone:
			if act.n < 1 || act.n > len(p.buf) {
				return "", p.fail(fmt.Sprintf("policy returned %v with %d lines", act, len(p.buf)))
			}
			return p.take(act.n), nil
		default:
			return "", p.fail(act.msg)
		}
	}
}

// take removes the first k buffered lines and returns them joined.
func (p *Parts) take(k int) string {
	part := strings.Join(p.buf[:k], "")
	for _, n := range p.lens[:k] {
		p.start += int64(n)
	}
	p.buf = append(p.buf[:0:0], p.buf[k:]...)
	p.lens = append(p.lens[:0:0], p.lens[k:]...)
	return part
}

func (p *Parts) fail(msg string) error {
	p.err = &MalformedError{Offset: p.start, Lines: len(p.buf), Msg: msg}
	p.log.WithFields(logrus.Fields{"fn": "Next", "offset": p.start}).Debug(msg)
	return p.err
}

// All iterates over the remaining parts. Decode errors are yielded and
// iteration continues; any other error ends it.
func (p *Parts) All() iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		for {
			part, err := p.Next()
			if err == io.EOF {
				return
			}
			if !yield(part, err) {
				return
			}
			if err != nil && !errors.Is(err, linesource.ErrDecode) {
				return
			}
		}
	}
}

// Collect reads every remaining part. It stops at the first error and
// returns the parts read before it.
func (p *Parts) Collect() ([]string, error) {
	var parts []string
	for {
		part, err := p.Next()
		if err == io.EOF {
			return parts, nil
		}
		if err != nil {
			return parts, err
		}
		parts = append(parts, part)
	}
}

// Close closes the underlying Source.
func (p *Parts) Close() error {
	return p.src.Close()
}
