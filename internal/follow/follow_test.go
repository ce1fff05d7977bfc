package follow

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/jmurray2011/textparts/pkg/search"
)

// syncBuffer guards a bytes.Buffer written by the follower goroutine.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func appendTo(t *testing.T, path, s string) {
	t.Helper()
	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		t.Fatalf("failed to open file: %v", err)
	}
	f.WriteString(s)
	f.Close()
}

func offsets(out string) []string {
	return strings.Fields(out)
}

func TestFollower_ExistingAndAppended(t *testing.T) {
	dir := t.TempDir()
	testFile := filepath.Join(dir, "dump.lammpstrj")
	if err := os.WriteFile(testFile, []byte("ITEM: TIMESTEP\n0\n"), 0644); err != nil {
		t.Fatalf("failed to create test file: %v", err)
	}

	var out syncBuffer
	f := NewFollower(Config{
		Path:         testFile,
		Query:        search.Query{Pattern: `^ITEM: TIMESTEP`},
		PollInterval: 10 * time.Millisecond,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		done <- f.Follow(ctx, &out)
	}()

	time.Sleep(50 * time.Millisecond)
	// the second header arrives in two writes
	appendTo(t, testFile, "ITEM: TIME")
	time.Sleep(30 * time.Millisecond)
	appendTo(t, testFile, "STEP\n10\n")

	time.Sleep(100 * time.Millisecond)
	cancel()
	if err := <-done; err != nil {
		t.Fatalf("Follow() error = %v", err)
	}

	got := offsets(out.String())
	want := []string{"0", "17"}
	if strings.Join(got, ",") != strings.Join(want, ",") {
		t.Errorf("offsets = %v, want %v", got, want)
	}
}

func TestFollower_MaxCountStops(t *testing.T) {
	dir := t.TempDir()
	testFile := filepath.Join(dir, "frames.xyz")
	if err := os.WriteFile(testFile, []byte(" 1\ntitle\nH 0 0 0\n"), 0644); err != nil {
		t.Fatalf("failed to create test file: %v", err)
	}

	var out syncBuffer
	f := NewFollower(Config{
		Path:         testFile,
		Query:        search.Query{Pattern: `^\s*\d+\s*$`, MaxCount: 2},
		PollInterval: 10 * time.Millisecond,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		done <- f.Follow(ctx, &out)
	}()

	time.Sleep(50 * time.Millisecond)
	appendTo(t, testFile, " 1\ntitle\nH 0 0 1\n 1\ntitle\nH 0 0 2\n")

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Follow() error = %v", err)
		}
	case <-ctx.Done():
		t.Fatal("follower did not stop after MaxCount offsets")
	}
	if got := offsets(out.String()); len(got) != 2 {
		t.Errorf("offsets = %v, want 2", got)
	}
}

func TestFollower_Truncation(t *testing.T) {
	dir := t.TempDir()
	testFile := filepath.Join(dir, "dump.lammpstrj")
	if err := os.WriteFile(testFile, []byte("ITEM: TIMESTEP\n0\nITEM: TIMESTEP\n10\n"), 0644); err != nil {
		t.Fatalf("failed to create test file: %v", err)
	}

	var out syncBuffer
	f := NewFollower(Config{
		Path:         testFile,
		Query:        search.LiteralQuery("TIMESTEP"),
		PollInterval: 10 * time.Millisecond,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		done <- f.Follow(ctx, &out)
	}()

	time.Sleep(50 * time.Millisecond)
	// a restarted run rewrites the file from scratch
	if err := os.WriteFile(testFile, []byte("ITEM: TIMESTEP\n"), 0644); err != nil {
		t.Fatalf("failed to truncate file: %v", err)
	}

	time.Sleep(100 * time.Millisecond)
	cancel()
	<-done

	got := offsets(out.String())
	if len(got) != 3 || got[2] != "0" {
		t.Errorf("offsets = %v, want [0 17 0]", got)
	}
}

func TestFollower_PIDTerminatesWhenProcessDies(t *testing.T) {
	dir := t.TempDir()
	testFile := filepath.Join(dir, "frames.xyz")
	if err := os.WriteFile(testFile, []byte(" 1\ntitle\nH 0 0 0\n"), 0644); err != nil {
		t.Fatalf("failed to create test file: %v", err)
	}

	// Use a non-existent PID (very high number unlikely to exist)
	nonExistentPID := 999999999

	var out syncBuffer
	f := NewFollower(Config{
		Path:         testFile,
		Query:        search.Query{Pattern: `^\s*\d+\s*$`},
		PID:          nonExistentPID,
		PollInterval: 10 * time.Millisecond,
	})

	start := time.Now()
	if err := f.Follow(context.Background(), &out); err != nil {
		t.Fatalf("Follow() error = %v", err)
	}
	if elapsed := time.Since(start); elapsed > 500*time.Millisecond {
		t.Errorf("expected quick exit when PID doesn't exist, took %v", elapsed)
	}
	if got := offsets(out.String()); len(got) != 1 || got[0] != "0" {
		t.Errorf("offsets = %v, want [0]", got)
	}
}

func TestFollower_NonExistentFile(t *testing.T) {
	f := NewFollower(Config{
		Path:  filepath.Join(t.TempDir(), "missing.xyz"),
		Query: search.Query{Pattern: "x"},
	})
	if err := f.Follow(context.Background(), &bytes.Buffer{}); err == nil {
		t.Error("expected error for non-existent file")
	}
}

func TestProcessExists_Self(t *testing.T) {
	if !processExists(os.Getpid()) {
		t.Error("processExists(self) = false, want true")
	}
}
