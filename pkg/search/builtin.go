package search

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"regexp"

	"github.com/sirupsen/logrus"
)

// ctxCheckEvery is how many lines are scanned between context checks.
const ctxCheckEvery = 4096

// Builtin scans the target reader in-process.
type Builtin struct {
	Log *logrus.Entry
}

func (b *Builtin) Name() string { return EngineBuiltin }

func compile(q Query) (func([]byte) bool, error) {
	if err := q.validate(); err != nil {
		return nil, err
	}
	if len(q.Literals) > 0 {
		lits := make([][]byte, len(q.Literals))
		for i, lit := range q.Literals {
			lits[i] = []byte(lit)
		}
		return func(line []byte) bool {
			for _, lit := range lits {
				if bytes.Contains(line, lit) {
					return true
				}
			}
			return false
		}, nil
	}
	re, err := regexp.Compile(q.Pattern)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrPattern, err)
	}
	return re.Match, nil
}

// Search reads t.Reader line by line. It stops at the first NUL byte, the
// way ripgrep gives up on binary files, keeping matches found before it.
func (b *Builtin) Search(ctx context.Context, t Target, q Query) (Result, error) {
	match, err := compile(q)
	if err != nil {
		return Result{}, err
	}
	if t.Reader == nil {
		return Result{}, fmt.Errorf("builtin search of %q: no reader", t.Path)
	}

	res := Result{End: t.Offset}
	r := bufio.NewReaderSize(t.Reader, 64*1024)
	for n := 0; ; n++ {
		if n%ctxCheckEvery == 0 {
			if err := ctx.Err(); err != nil {
				return res, err
			}
		}
		line, err := r.ReadBytes('\n')
		if err != nil && err != io.EOF {
			return res, fmt.Errorf("scanning at offset %d: %w", res.End, err)
		}
		if len(line) == 0 {
			return res, nil
		}
		terminated := line[len(line)-1] == '\n'
		if !terminated && q.SkipUnterminated {
			return res, nil
		}
		if bytes.IndexByte(line, 0) >= 0 {
			res.Binary = true
			logger(b.Log).WithFields(logrus.Fields{"fn": "Search", "path": t.Path, "offset": res.End}).
				Debug("binary data, stopping scan")
			return res, nil
		}

		start := res.End
		res.End += int64(len(line))
		if match(bytes.TrimRight(line, "\r\n")) {
			res.Offsets = append(res.Offsets, start)
			if q.MaxCount > 0 && len(res.Offsets) >= q.MaxCount {
				return res, nil
			}
		}
		if !terminated {
			return res, nil
		}
	}
}

func logger(log *logrus.Entry) *logrus.Entry {
	if log == nil {
		return orDefault(nil)
	}
	return log
}
