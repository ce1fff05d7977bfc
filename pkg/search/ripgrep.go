package search

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"
)

// Ripgrep delegates the search to the rg binary and reads its JSON output.
// It always scans the whole file; matches before Target.Offset are dropped.
type Ripgrep struct {
	// Path is the rg executable; empty means "rg" on PATH.
	Path string
	Log  *logrus.Entry
}

func (g *Ripgrep) Name() string { return "ripgrep" }

// rgMessage is one line of `rg --json` output. Only match and end records
// carry the fields used here.
type rgMessage struct {
	Type string `json:"type"`
	Data struct {
		AbsoluteOffset *int64 `json:"absolute_offset"`
		BinaryOffset   *int64 `json:"binary_offset"`
		Lines          struct {
			Text  *string `json:"text"`
			Bytes *string `json:"bytes"`
		} `json:"lines"`
	} `json:"data"`
}

// lineLen returns the length in bytes of the matched line. Non-UTF-8 lines
// are sent base64 encoded.
func (m *rgMessage) lineLen() int64 {
	switch {
	case m.Data.Lines.Text != nil:
		return int64(len(*m.Data.Lines.Text))
	case m.Data.Lines.Bytes != nil:
		return base64Len(*m.Data.Lines.Bytes)
	}
	return 0
}

// base64Len is the decoded length of a padded standard base64 string.
func base64Len(enc string) int64 {
	n := base64.StdEncoding.DecodedLen(len(enc))
	return int64(n - (len(enc) - len(strings.TrimRight(enc, "="))))
}

func (g *Ripgrep) args(t Target, q Query) []string {
	args := []string{"--no-line-number", "--json", "--crlf"}
	// With an offset the limit applies after dropping earlier matches.
	if q.MaxCount > 0 && t.Offset == 0 {
		args = append(args, "--max-count", strconv.Itoa(q.MaxCount))
	}
	if len(q.Literals) > 0 {
		args = append(args, "--fixed-strings")
		for _, lit := range q.Literals {
			args = append(args, "-e", lit)
		}
	} else {
		args = append(args, "-e", q.Pattern)
	}
	return append(args, "--", t.Path)
}

// Search runs rg on t.Path. Exit status 1 means no match.
func (g *Ripgrep) Search(ctx context.Context, t Target, q Query) (Result, error) {
	if err := q.validate(); err != nil {
		return Result{}, err
	}
	if t.Path == "" {
		return Result{}, fmt.Errorf("ripgrep needs a file path: %w", ErrDelegate)
	}
	if q.SkipUnterminated {
		return Result{}, fmt.Errorf("ripgrep cannot skip unterminated lines: %w", ErrDelegate)
	}
	info, err := os.Stat(t.Path)
	if err != nil {
		return Result{}, fmt.Errorf("stat %s: %w", t.Path, err)
	}

	bin := g.Path
	if bin == "" {
		bin = "rg"
	}
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	cmd := exec.CommandContext(ctx, bin, g.args(t, q)...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return Result{}, fmt.Errorf("%w: %w", ErrDelegate, err)
	}
	log := logger(g.Log).WithFields(logrus.Fields{"fn": "Search", "path": t.Path, "query": q.String()})
	log.WithField("args", cmd.Args).Debug("running rg")
	if err := cmd.Start(); err != nil {
		return Result{}, fmt.Errorf("%w: %w", ErrDelegate, err)
	}

	res := Result{End: info.Size()}
	stopped := false
	dec := json.NewDecoder(stdout)
	for {
		var m rgMessage
		if err := dec.Decode(&m); err == io.EOF {
			break
		} else if err != nil {
			cancel()
			cmd.Wait()
			return Result{}, fmt.Errorf("%w: decoding rg output: %w", ErrDelegate, err)
		}
		switch m.Type {
		case "match":
			if m.Data.AbsoluteOffset == nil || *m.Data.AbsoluteOffset < t.Offset {
				continue
			}
			res.Offsets = append(res.Offsets, *m.Data.AbsoluteOffset)
			if q.MaxCount > 0 && len(res.Offsets) >= q.MaxCount {
				res.End = *m.Data.AbsoluteOffset + m.lineLen()
				stopped = true
			}
		case "end":
			if m.Data.BinaryOffset != nil {
				res.Binary = true
			}
		}
		if stopped {
			cancel()
			break
		}
	}

	err = cmd.Wait()
	if stopped {
		return res, nil
	}
	var exitErr *exec.ExitError
	switch {
	case err == nil:
	case errors.As(err, &exitErr) && exitErr.ExitCode() == 1:
		// no match
	case ctx.Err() != nil:
		return Result{}, ctx.Err()
	default:
		msg := strings.TrimSpace(stderr.String())
		return Result{}, fmt.Errorf("%w: rg: %v: %s", ErrDelegate, err, msg)
	}
	log.WithField("matches", len(res.Offsets)).Debug("rg finished")
	return res, nil
}
