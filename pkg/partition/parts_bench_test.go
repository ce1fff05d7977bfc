package partition

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/jmurray2011/textparts/pkg/linesource"
)

func writeFrames(b *testing.B, frames int) string {
	b.Helper()
	var content bytes.Buffer
	for i := 0; i < frames; i++ {
		fmt.Fprintf(&content, "3\nframe %d\n", i)
		content.WriteString("O 0.000 0.000 0.000\nH 0.000 0.000 0.957\nH 0.926 0.000 -0.240\n")
	}
	path := filepath.Join(b.TempDir(), "water.xyz")
	if err := os.WriteFile(path, content.Bytes(), 0644); err != nil {
		b.Fatalf("failed to create test file: %v", err)
	}
	return path
}

func benchmarkPolicy(b *testing.B, policy func() Policy) {
	path := writeFrames(b, 20000)
	b.ResetTimer()

	for i := 0; i < b.N; i++ {
		src, err := linesource.Open(path)
		if err != nil {
			b.Fatal(err)
		}
		p := New(src, policy())
		for _, err := range p.All() {
			if err != nil {
				b.Fatal(err)
			}
		}
		p.Close()
	}
}

func BenchmarkParts_Preceded(b *testing.B) {
	benchmarkPolicy(b, func() Policy { return PrecededBy(IsInteger) })
}

func BenchmarkParts_Counted(b *testing.B) {
	benchmarkPolicy(b, func() Policy { return Counted(1) })
}

func BenchmarkParts_FixedLines(b *testing.B) {
	benchmarkPolicy(b, func() Policy { return FixedLines(5) })
}
