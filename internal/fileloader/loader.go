// Package fileloader reads served files fully into memory.
package fileloader

import (
	"errors"
	"fmt"
	"io"

	"github.com/spf13/afero"
)

// ErrAbsent is returned when a file cannot be opened at all.
var ErrAbsent = errors.New("file absent")

// Loader reads whole files from a filesystem.
type Loader struct {
	fs afero.Fs
}

// New returns a Loader over fs, or over the operating system when fs is nil.
func New(fs afero.Fs) *Loader {
	if fs == nil {
		fs = afero.NewOsFs()
	}
	return &Loader{fs: fs}
}

// Load returns the complete contents of path. An open failure wraps ErrAbsent;
// a failure after a successful open is returned as a read error. Partial
// contents are never returned.
func (l *Loader) Load(path string) ([]byte, error) {
	f, err := l.fs.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrAbsent, err)
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}

	return data, nil
}
