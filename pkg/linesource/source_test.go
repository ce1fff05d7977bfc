package linesource

import (
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/klauspost/compress/gzip"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const frame = " 3\nwater\nO 0.0 0.0 0.0\nH 0.0 0.0 1.0\nH 0.0 1.0 0.0\n"

func TestReadLine(t *testing.T) {
	t.Run("LF", func(t *testing.T) {
		src := FromString("a\nb\nc\n")
		for _, want := range []string{"a\n", "b\n", "c\n"} {
			got, err := src.ReadLine()
			require.NoError(t, err)
			assert.Equal(t, want, got)
		}
		_, err := src.ReadLine()
		require.Equal(t, io.EOF, err)
		assert.Equal(t, int64(6), src.Offset())
	})

	t.Run("CRLF", func(t *testing.T) {
		src := FromString("a\r\nb\r\n")
		got, err := src.ReadLine()
		require.NoError(t, err)
		assert.Equal(t, "a\n", got)
		assert.Equal(t, int64(3), src.Offset())
	})

	t.Run("no trailing newline", func(t *testing.T) {
		src := FromString("a\nlast")
		src.ReadLine()
		got, err := src.ReadLine()
		require.NoError(t, err)
		assert.Equal(t, "last", got)
		_, err = src.ReadLine()
		assert.Equal(t, io.EOF, err)
	})

	t.Run("empty", func(t *testing.T) {
		_, err := FromString("").ReadLine()
		assert.Equal(t, io.EOF, err)
	})

	t.Run("raw keeps CRLF", func(t *testing.T) {
		src := FromString("a\r\nb\n")
		got, err := src.ReadRawLine()
		require.NoError(t, err)
		assert.Equal(t, "a\r\n", got)
	})
}

func TestReadLine_LongerThanBuffer(t *testing.T) {
	long := strings.Repeat("x", 100) + "\n"
	src := New(strings.NewReader(long+"tail\n"), WithBufferSize(16))

	got, err := src.ReadLine()
	require.NoError(t, err)
	assert.Equal(t, long, got)
	assert.Equal(t, int64(len(long)), src.Offset())
}

func TestReadLine_InvalidUTF8(t *testing.T) {
	src := FromString("ok\n\xff\xfe\nnext\n")

	_, err := src.ReadLine()
	require.NoError(t, err)

	_, err = src.ReadLine()
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrDecode))
	var de *DecodeError
	require.True(t, errors.As(err, &de))
	assert.Equal(t, int64(3), de.Offset)
	assert.Equal(t, 3, de.Len)

	got, err := src.ReadLine()
	require.NoError(t, err)
	assert.Equal(t, "next\n", got)
}

func TestPeekLine(t *testing.T) {
	src := FromString(frame)

	before := src.Offset()
	peeked, err := src.PeekLine()
	require.NoError(t, err)
	for i := 0; i < 5; i++ {
		again, err := src.PeekLine()
		require.NoError(t, err)
		assert.Equal(t, peeked, again)
		assert.Equal(t, before, src.Offset())
	}

	read, err := src.ReadLine()
	require.NoError(t, err)
	assert.Equal(t, peeked, read)
	assert.Equal(t, " 3\n", read)
}

func TestPeekLine_CRLFAndEOF(t *testing.T) {
	src := FromString("a\r\nb")
	got, err := src.PeekLine()
	require.NoError(t, err)
	assert.Equal(t, "a\n", got)

	src.ReadLine()
	got, err = src.PeekLine()
	require.NoError(t, err)
	assert.Equal(t, "b", got)

	src.ReadLine()
	_, err = src.PeekLine()
	assert.Equal(t, io.EOF, err)
}

func TestPeekLine_LongLine(t *testing.T) {
	long := strings.Repeat("y", 64) + "\r\n"

	t.Run("seekable", func(t *testing.T) {
		src := New(strings.NewReader("head\n"+long), WithBufferSize(16))
		src.ReadLine()

		got, err := src.PeekLine()
		require.NoError(t, err)
		assert.Equal(t, strings.Repeat("y", 64)+"\n", got)
		assert.Equal(t, int64(5), src.Offset())

		read, err := src.ReadLine()
		require.NoError(t, err)
		assert.Equal(t, got, read)
	})

	t.Run("stream", func(t *testing.T) {
		src := New(io.MultiReader(strings.NewReader(long)), WithBufferSize(16))
		require.False(t, src.Seekable())

		_, err := src.PeekLine()
		assert.True(t, errors.Is(err, ErrNotSeekable))
	})
}

func TestSeekLine(t *testing.T) {
	src := FromString(frame)

	skipped, err := src.SeekLine(func(line string) bool {
		return strings.HasPrefix(line, "H")
	})
	require.NoError(t, err)
	assert.Equal(t, int64(len(" 3\nwater\nO 0.0 0.0 0.0\n")), skipped)
	assert.Equal(t, skipped, src.Offset())

	line, err := src.ReadLine()
	require.NoError(t, err)
	assert.Equal(t, "H 0.0 0.0 1.0\n", line)

	_, err = src.SeekLine(func(string) bool { return false })
	assert.Equal(t, ErrNotFound, err)
	assert.Equal(t, int64(len(frame)), src.Offset())
}

func TestSeekLine_SkipsUndecodable(t *testing.T) {
	src := FromString("\xff\nwanted\n")
	skipped, err := src.SeekLine(func(line string) bool { return line == "wanted\n" })
	require.NoError(t, err)
	assert.Equal(t, int64(2), skipped)
}

func TestSeekTo(t *testing.T) {
	src := FromString(frame)

	pos, err := src.SeekTo(9)
	require.NoError(t, err)
	assert.Equal(t, int64(9), pos)

	first, err := src.ReadLine()
	require.NoError(t, err)
	assert.Equal(t, "O 0.0 0.0 0.0\n", first)

	// Seeking to the same offset twice reads the same line.
	src.SeekTo(9)
	src.SeekTo(9)
	again, err := src.ReadLine()
	require.NoError(t, err)
	assert.Equal(t, first, again)

	require.NoError(t, src.GotoStart())
	assert.Equal(t, int64(0), src.Offset())
	line, _ := src.ReadLine()
	assert.Equal(t, " 3\n", line)

	require.NoError(t, src.GotoEnd())
	assert.Equal(t, int64(len(frame)), src.Offset())
	_, err = src.ReadLine()
	assert.Equal(t, io.EOF, err)
}

func TestSkipPartialLine(t *testing.T) {
	src := FromString(frame)

	// at the start of the stream
	skipped, err := src.SkipPartialLine()
	require.NoError(t, err)
	assert.Equal(t, int64(0), skipped)

	// at a line start
	src.SeekTo(9)
	skipped, err = src.SkipPartialLine()
	require.NoError(t, err)
	assert.Equal(t, int64(0), skipped)
	assert.Equal(t, int64(9), src.Offset())

	// inside "water\n"
	src.SeekTo(5)
	skipped, err = src.SkipPartialLine()
	require.NoError(t, err)
	assert.Equal(t, int64(4), skipped)
	assert.Equal(t, int64(9), src.Offset())
	line, err := src.ReadLine()
	require.NoError(t, err)
	assert.Equal(t, "O 0.0 0.0 0.0\n", line)

	// inside an unterminated last line
	tail := FromString("a\nbcd")
	tail.SeekTo(3)
	_, err = tail.SkipPartialLine()
	require.NoError(t, err)
	assert.Equal(t, int64(5), tail.Offset())
	_, err = tail.ReadLine()
	assert.Equal(t, io.EOF, err)
}

func TestSkipPartialLine_NotSeekable(t *testing.T) {
	src := New(io.MultiReader(strings.NewReader(frame)))
	buf := make([]byte, 2)
	src.Read(buf)

	_, err := src.SkipPartialLine()
	assert.Equal(t, ErrNotSeekable, err)
}

func TestSeek_NotSeekable(t *testing.T) {
	src := New(io.MultiReader(strings.NewReader(frame)))
	src.ReadLine()
	src.ReadLine()

	_, err := src.SeekTo(0)
	assert.Equal(t, ErrNotSeekable, err)

	require.NoError(t, src.GotoEnd())
	assert.Equal(t, int64(len(frame)), src.Offset())
}

func TestNew_OffsetFromProbe(t *testing.T) {
	r := strings.NewReader(frame)
	r.Seek(3, io.SeekStart)

	src := New(r)
	assert.True(t, src.Seekable())
	assert.Equal(t, int64(3), src.Offset())
	line, _ := src.ReadLine()
	assert.Equal(t, "water\n", line)
}

func TestReadAll(t *testing.T) {
	src := FromString("a\r\nb\nc")
	src.ReadLine()
	rest, err := src.ReadAll()
	require.NoError(t, err)
	assert.Equal(t, "b\nc", rest)

	_, err = FromString("a\n\xff").ReadAll()
	assert.True(t, errors.Is(err, ErrDecode))
}

func TestLines(t *testing.T) {
	var got []string
	for line, err := range FromString("a\r\n\xff\nb").Lines() {
		if err != nil {
			assert.True(t, errors.Is(err, ErrDecode))
			continue
		}
		got = append(got, line)
	}
	assert.Equal(t, []string{"a", "b"}, got)
}

func TestOpen(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "water.xyz")
	require.NoError(t, os.WriteFile(path, []byte(frame), 0644))

	src, err := Open(path)
	require.NoError(t, err)
	defer src.Close()

	assert.True(t, src.Seekable())
	line, err := src.ReadLine()
	require.NoError(t, err)
	assert.Equal(t, " 3\n", line)
	require.NoError(t, src.Close())
	require.NoError(t, src.Close())

	_, err = Open(filepath.Join(dir, "missing.xyz"))
	assert.True(t, errors.Is(err, os.ErrNotExist))
}

func TestOpen_MemMapFsGzip(t *testing.T) {
	mem := afero.NewMemMapFs()
	f, err := mem.Create("water.xyz.gz")
	require.NoError(t, err)
	zw := gzip.NewWriter(f)
	zw.Write([]byte(frame))
	zw.Close()
	f.Close()

	src, err := Open("water.xyz.gz", WithFs(mem))
	require.NoError(t, err)
	defer src.Close()

	assert.False(t, src.Seekable())
	rest, err := src.ReadAll()
	require.NoError(t, err)
	assert.Equal(t, frame, rest)
}
