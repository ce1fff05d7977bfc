package partition

import (
	"fmt"
	"strconv"
	"strings"
)

// Context is what a Policy sees: the lines accumulated for the current part,
// the newest one last. Lines keep their "\n" endings.
type Context struct {
	lines []string
}

// NumLines returns the number of accumulated lines.
func (c Context) NumLines() int {
	return len(c.lines)
}

// Line returns the nth accumulated line, counting from 1. Out of range
// returns "".
func (c Context) Line(n int) string {
	if n < 1 || n > len(c.lines) {
		return ""
	}
	return c.lines[n-1]
}

// Last returns the most recently read line.
func (c Context) Last() string {
	return c.Line(len(c.lines))
}

// Text joins all accumulated lines.
func (c Context) Text() string {
	return strings.Join(c.lines, "")
}

type actionKind int

const (
	actNeed actionKind = iota
	actDone
	actFail
)

// Action is a Policy decision.
type Action struct {
	kind actionKind
	n    int
	msg  string
}

// Need asks for k more lines before deciding again. k < 1 reads one line.
func Need(k int) Action { return Action{kind: actNeed, n: k} }

// Done ends the part after its first k lines; later lines start the next part.
func Done(k int) Action { return Action{kind: actDone, n: k} }

// Fail reports malformed input and stops partitioning.
func Fail(msg string) Action { return Action{kind: actFail, msg: msg} }

func (a Action) String() string {
	switch a.kind {
	case actNeed:
		return fmt.Sprintf("Need(%d)", a.n)
	case actDone:
		return fmt.Sprintf("Done(%d)", a.n)
	default:
		return fmt.Sprintf("Fail(%q)", a.msg)
	}
}

// Policy decides where one part ends.
type Policy interface {
	Decide(c Context) Action
}

// PolicyFunc adapts a function to Policy.
type PolicyFunc func(c Context) Action

// Decide calls f(c).
func (f PolicyFunc) Decide(c Context) Action { return f(c) }

// Whole never ends a part, so the stream becomes a single part.
func Whole() Policy {
	return PolicyFunc(func(Context) Action { return Need(1) })
}

// FixedLines ends a part every n lines. The last part may be shorter.
func FixedLines(n int) Policy {
	return PolicyFunc(func(c Context) Action {
		if n < 1 {
			return Fail(fmt.Sprintf("line count must be positive, got %d", n))
		}
		if got := c.NumLines(); got < n {
			return Need(n - got)
		}
		return Done(n)
	})
}

// TerminatedBy ends a part with the first line pred accepts.
func TerminatedBy(pred LineFunc) Policy {
	return PolicyFunc(func(c Context) Action {
		if pred(c.Last()) {
			return Done(c.NumLines())
		}
		return Need(1)
	})
}

// PrecededBy ends a part just before a line pred accepts, so that line opens
// the next part. The first line of a part never closes it.
func PrecededBy(pred LineFunc) Policy {
	return PolicyFunc(func(c Context) Action {
		if n := c.NumLines(); n > 1 && pred(c.Last()) {
			return Done(n - 1)
		}
		return Need(1)
	})
}

// Counted splits blocks whose first line declares how many body lines
// follow, after extra fixed lines. An XYZ frame is Counted(1): the atom
// count, one comment line, then one line per atom.
func Counted(extra int) Policy {
	return PolicyFunc(func(c Context) Action {
		header := strings.TrimSpace(c.Line(1))
		count, err := strconv.Atoi(header)
		if err != nil || count < 0 {
			return Fail(fmt.Sprintf("invalid count line %q", header))
		}
		total := 1 + extra + count
		if got := c.NumLines(); got < total {
			return Need(total - got)
		}
		return Done(total)
	})
}
