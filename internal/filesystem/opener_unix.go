//go:build !windows

package filesystem

import (
	"fmt"
	"os"
)

// defaultOpener implements FileOpener using os.Open.
// Unix lets readers and writers share a file without special flags.
type defaultOpener struct{}

// NewFileOpener returns a FileOpener appropriate for the current OS.
func NewFileOpener() FileOpener {
	return &defaultOpener{}
}

// Open opens the named file for reading.
func (o *defaultOpener) Open(name string) (ReadSeekCloser, error) {
	f, err := os.Open(name)
	if err != nil {
		return nil, fmt.Errorf("opening file: %w", err)
	}
	return f, nil
}
