package linesource

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned by SeekLine when no line satisfies the predicate.
	ErrNotFound = errors.New("no matching line")
	// ErrNotSeekable is returned when an operation needs to move the cursor
	// backwards on a stream that cannot seek (pipes, decompressed files).
	ErrNotSeekable = errors.New("source is not seekable")
	// ErrDecode matches every *DecodeError.
	ErrDecode = errors.New("invalid UTF-8")
)

// DecodeError reports a line that is not valid UTF-8. The line has already
// been consumed, so reading again continues with the next one.
type DecodeError struct {
	// Offset is the byte offset of the start of the offending line.
	Offset int64
	// Len is the raw length of the line, line ending included.
	Len int
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("line at offset %d (%d bytes): %v", e.Offset, e.Len, ErrDecode)
}

func (e *DecodeError) Unwrap() error { return ErrDecode }
