package filesystem

import (
	"fmt"
	"io"

	"github.com/spf13/afero"
)

// FileOpener opens files for reading with appropriate share modes.
// On Windows, this means FILE_SHARE_READ | FILE_SHARE_WRITE | FILE_SHARE_DELETE
// so that trajectories still being written by a simulation can be read.
type FileOpener interface {
	// Open opens the named file for reading.
	// The returned ReadSeekCloser allows reading, seeking, and must be closed.
	Open(name string) (ReadSeekCloser, error)
}

// ReadSeekCloser combines io.Reader, io.Seeker, and io.Closer.
type ReadSeekCloser interface {
	io.Reader
	io.Seeker
	io.Closer
}

// fsOpener implements FileOpener on top of an afero filesystem.
type fsOpener struct {
	fs afero.Fs
}

// NewFsOpener returns a FileOpener reading from fs. An OS-backed fs gets the
// platform opener so share modes still apply.
func NewFsOpener(fs afero.Fs) FileOpener {
	if fs == nil || IsOsFs(fs) {
		return NewFileOpener()
	}
	return &fsOpener{fs: fs}
}

// Open opens the named file for reading.
func (o *fsOpener) Open(name string) (ReadSeekCloser, error) {
	f, err := o.fs.Open(name)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", name, err)
	}
	return f, nil
}

// IsOsFs reports whether fs reads the real operating system filesystem, which
// is what external tools like ripgrep see.
func IsOsFs(fs afero.Fs) bool {
	switch fs.(type) {
	case *afero.OsFs, afero.OsFs:
		return true
	}
	return false
}
