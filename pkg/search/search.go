// Package search finds the byte offsets of lines matching a pattern, either
// in-process or by delegating to ripgrep.
package search

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"strings"

	"github.com/sirupsen/logrus"
)

var (
	// ErrDelegate wraps failures of an external search process.
	ErrDelegate = errors.New("search delegate failed")
	// ErrPattern wraps invalid or empty patterns.
	ErrPattern = errors.New("invalid pattern")
)

// Query describes what to look for. Literals, when set, replaces Pattern.
type Query struct {
	// Pattern is an RE2 regular expression matched against each line
	// without its line ending.
	Pattern string
	// Literals matches lines containing any of the strings.
	Literals []string
	// MaxCount stops the search after that many matches. Zero means no limit.
	MaxCount int
	// SkipUnterminated leaves a final line without a newline unmatched and
	// unscanned, for files that are still being written.
	SkipUnterminated bool
}

// LiteralQuery builds a query from an alternation of plain strings such as
// "ITEM: TIMESTEP|ITEM: ATOMS".
func LiteralQuery(alternation string) Query {
	return Query{Literals: strings.Split(alternation, "|")}
}

func (q Query) String() string {
	if len(q.Literals) > 0 {
		return strings.Join(q.Literals, "|")
	}
	return q.Pattern
}

func (q Query) validate() error {
	if len(q.Literals) > 0 {
		for _, lit := range q.Literals {
			if lit == "" {
				return fmt.Errorf("empty literal in %q: %w", q.String(), ErrPattern)
			}
		}
		return nil
	}
	if q.Pattern == "" {
		return fmt.Errorf("empty pattern: %w", ErrPattern)
	}
	return nil
}

// Target is the input of a search.
type Target struct {
	// Path names the file; external searchers need it.
	Path string
	// Reader is positioned at Offset; in-process searchers consume it.
	Reader io.Reader
	// Offset is the absolute position the search starts from.
	Offset int64
}

// Result holds the matches of one search.
type Result struct {
	// Offsets are absolute, ascending line-start offsets of matching lines.
	Offsets []int64
	// End is the absolute offset at which scanning stopped, always on a line
	// boundary.
	End int64
	// Binary is set when scanning stopped at a NUL byte.
	Binary bool
}

// Searcher finds matching lines.
type Searcher interface {
	Name() string
	Search(ctx context.Context, t Target, q Query) (Result, error)
}

// Engine names accepted by ForEngine.
const (
	EngineAuto    = "auto"
	EngineRipgrep = "rg"
	EngineBuiltin = "builtin"
)

// Detect returns a ripgrep searcher backed by the builtin one when rg is on
// PATH, and the builtin searcher alone otherwise.
func Detect(log *logrus.Entry) Searcher {
	log = orDefault(log)
	path, err := exec.LookPath("rg")
	if err != nil {
		log.WithFields(logrus.Fields{"fn": "Detect"}).Debug("rg not found, using builtin search")
		return &Builtin{Log: log}
	}
	log.WithFields(logrus.Fields{"fn": "Detect", "rg": path}).Debug("using ripgrep")
	return &Fallback{
		Primary:   &Ripgrep{Path: path, Log: log},
		Secondary: &Builtin{Log: log},
		Log:       log,
	}
}

// ForEngine returns the searcher for an engine name.
func ForEngine(engine string, log *logrus.Entry) (Searcher, error) {
	switch engine {
	case "", EngineAuto:
		return Detect(log), nil
	case EngineRipgrep, "ripgrep":
		path, err := exec.LookPath("rg")
		if err != nil {
			return nil, fmt.Errorf("locating rg: %w: %w", ErrDelegate, err)
		}
		return &Ripgrep{Path: path, Log: orDefault(log)}, nil
	case EngineBuiltin:
		return &Builtin{Log: orDefault(log)}, nil
	default:
		return nil, fmt.Errorf("unknown search engine %q", engine)
	}
}

func orDefault(log *logrus.Entry) *logrus.Entry {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return log.WithField("ns", "search")
}
