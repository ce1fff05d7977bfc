//go:build windows

package filesystem

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestExtendedLengthPath(t *testing.T) {
	long := strings.Repeat("a", 260)
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"short local path unchanged", `C:\Users\test\frames.xyz`, `C:\Users\test\frames.xyz`},
		{"short UNC path unchanged", `\\server\share\frames.xyz`, `\\server\share\frames.xyz`},
		{"long local path gets prefix", `C:\` + long, `\\?\C:\` + long},
		{"long UNC path gets UNC prefix", `\\server\share\` + long, `\\?\UNC\server\share\` + long},
		{"already prefixed path unchanged", `\\?\C:\` + long, `\\?\C:\` + long},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := extendedLengthPath(tt.input); got != tt.want {
				t.Errorf("extendedLengthPath() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestFileOpener_WhileWriterHoldsFile(t *testing.T) {
	dir := t.TempDir()
	testFile := filepath.Join(dir, "dump.lammpstrj")

	w, err := os.Create(testFile)
	if err != nil {
		t.Fatalf("failed to create test file: %v", err)
	}
	defer w.Close()
	w.WriteString("ITEM: TIMESTEP\n0\n")

	f, err := NewFileOpener().Open(testFile)
	if err != nil {
		t.Fatalf("Open() while writer holds the file: %v", err)
	}
	defer f.Close()

	buf := make([]byte, 14)
	n, err := f.Read(buf)
	if err != nil {
		t.Fatalf("Read() error = %v", err)
	}
	if string(buf[:n]) != "ITEM: TIMESTEP" {
		t.Errorf("got %q, want %q", buf[:n], "ITEM: TIMESTEP")
	}
}
