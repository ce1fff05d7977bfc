package filesystem

import (
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
)

// Compression identifies how a file's bytes are encoded on disk.
type Compression int

const (
	// None means the file is plain text.
	None Compression = iota
	// Gzip means the file is gzip (deflate) compressed.
	Gzip
	// Zstd means the file is zstandard compressed.
	Zstd
)

func (c Compression) String() string {
	switch c {
	case Gzip:
		return "gzip"
	case Zstd:
		return "zstd"
	default:
		return "none"
	}
}

// CompressionOf deduces the compression from the file extension.
func CompressionOf(name string) Compression {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".gz", ".gzip":
		return Gzip
	case ".zst", ".zstd":
		return Zstd
	default:
		return None
	}
}

// decodingReader closes the decoder and the file it reads from together.
type decodingReader struct {
	io.Reader
	closeDecoder func() error
	file         io.Closer
}

func (d *decodingReader) Close() error {
	derr := d.closeDecoder()
	ferr := d.file.Close()
	if derr != nil {
		return derr
	}
	return ferr
}

// Decompress wraps f in the decoder c calls for. Plain files are returned
// unchanged so they keep their Seek method; decoded streams are forward-only.
func Decompress(f ReadSeekCloser, c Compression) (io.ReadCloser, error) {
	switch c {
	case Gzip:
		zr, err := gzip.NewReader(f)
		if err != nil {
			return nil, fmt.Errorf("reading gzip header: %w", err)
		}
		return &decodingReader{Reader: zr, closeDecoder: zr.Close, file: f}, nil
	case Zstd:
		zr, err := zstd.NewReader(f)
		if err != nil {
			return nil, fmt.Errorf("creating zstd decoder: %w", err)
		}
		closeDecoder := func() error {
			zr.Close()
			return nil
		}
		return &decodingReader{Reader: zr, closeDecoder: closeDecoder, file: f}, nil
	default:
		return f, nil
	}
}

// OpenDecoded opens name with o and decompresses it according to its
// extension.
func OpenDecoded(o FileOpener, name string) (io.ReadCloser, Compression, error) {
	f, err := o.Open(name)
	if err != nil {
		return nil, None, err
	}
	c := CompressionOf(name)
	rc, err := Decompress(f, c)
	if err != nil {
		f.Close()
		return nil, c, fmt.Errorf("%s: %w", name, err)
	}
	return rc, c, nil
}
