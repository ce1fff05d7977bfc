// Package view gives line-numbered, in-memory access to a small region of
// text, such as one frame read by the marker reader.
package view

import (
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strings"
)

var (
	// ErrLineRange is returned for line numbers outside [1, NumLines].
	ErrLineRange = errors.New("line number out of range")
	// ErrNotFound is returned when SearchForward finds nothing.
	ErrNotFound = errors.New("pattern not found")
)

// Viewer holds text with a cursor. Lines are numbered from 1.
type Viewer struct {
	text   string
	starts []int // byte offset of each line start
	pos    int
}

// FromString returns a Viewer over text with the cursor on line 1.
func FromString(text string) *Viewer {
	v := &Viewer{text: text}
	for i := 0; i < len(text); {
		v.starts = append(v.starts, i)
		j := strings.IndexByte(text[i:], '\n')
		if j < 0 {
			break
		}
		i += j + 1
	}
	return v
}

// Text returns the whole text.
func (v *Viewer) Text() string { return v.text }

// NumLines returns the number of lines. A trailing newline does not start a
// new line.
func (v *Viewer) NumLines() int { return len(v.starts) }

// CurrentLine returns the number of the line holding the cursor, or 0 for
// empty text.
func (v *Viewer) CurrentLine() int {
	return sort.Search(len(v.starts), func(i int) bool { return v.starts[i] > v.pos })
}

// GotoLine moves the cursor to the start of line n.
func (v *Viewer) GotoLine(n int) error {
	if err := v.check(n); err != nil {
		return err
	}
	v.pos = v.starts[n-1]
	return nil
}

// SearchForward moves the cursor to the first match of pattern at or after
// the cursor and returns its line number. ^ and $ match at line boundaries,
// so ^ does not match at a cursor inside a line.
func (v *Viewer) SearchForward(pattern string) (int, error) {
	re, err := regexp.Compile("(?m)" + pattern)
	if err != nil {
		return 0, fmt.Errorf("compiling %q: %w", pattern, err)
	}
	// matching starts at the line start so anchors see the text before the cursor
	from := 0
	if n := v.CurrentLine(); n > 0 {
		from = v.starts[n-1]
	}
	for _, loc := range re.FindAllStringIndex(v.text[from:], -1) {
		if at := from + loc[0]; at >= v.pos {
			v.pos = at
			return v.CurrentLine(), nil
		}
	}
	return 0, fmt.Errorf("%q: %w", pattern, ErrNotFound)
}

// PeekLine returns line n with its line ending.
func (v *Viewer) PeekLine(n int) (string, error) {
	return v.PeekLines(n, n)
}

// PeekLines returns lines n through m, both included.
func (v *Viewer) PeekLines(n, m int) (string, error) {
	if err := v.check(n); err != nil {
		return "", err
	}
	if err := v.check(m); err != nil {
		return "", err
	}
	if m < n {
		return "", fmt.Errorf("lines %d-%d: %w", n, m, ErrLineRange)
	}
	return v.text[v.starts[n-1]:v.end(m)], nil
}

func (v *Viewer) end(n int) int {
	if n < len(v.starts) {
		return v.starts[n]
	}
	return len(v.text)
}

func (v *Viewer) check(n int) error {
	if n < 1 || n > len(v.starts) {
		return fmt.Errorf("line %d of %d: %w", n, len(v.starts), ErrLineRange)
	}
	return nil
}
