package linesource

import (
	"github.com/sirupsen/logrus"
	"github.com/spf13/afero"
)

// DefaultBufferSize is the read buffer used when WithBufferSize is not given.
const DefaultBufferSize = 64 * 1024

// minBufferSize matches the smallest buffer bufio will allocate.
const minBufferSize = 16

type options struct {
	fs      afero.Fs
	bufSize int
	log     *logrus.Entry
}

// Option configures a Source.
type Option func(*options)

// WithFs makes Open read from fs instead of the operating system.
func WithFs(fs afero.Fs) Option {
	return func(o *options) { o.fs = fs }
}

// WithBufferSize sets the size of the read buffer. Lines longer than the
// buffer are still read whole; only PeekLine needs to seek for them.
func WithBufferSize(n int) Option {
	return func(o *options) {
		if n < minBufferSize {
			n = minBufferSize
		}
		o.bufSize = n
	}
}

// WithLogger sets the entry debug messages are written to.
func WithLogger(log *logrus.Entry) Option {
	return func(o *options) { o.log = log }
}

func buildOptions(opts []Option) options {
	o := options{bufSize: DefaultBufferSize}
	for _, opt := range opts {
		opt(&o)
	}
	if o.log == nil {
		o.log = logrus.NewEntry(logrus.StandardLogger())
	}
	o.log = o.log.WithField("ns", "linesource")
	return o
}
