package engine

import (
	"fmt"
	"os"
	"path/filepath"
)

// Input is a user media file handed to Session.Segment.
type Input interface {
	Name() string
	Size() int64
}

// LocalFile is an Input backed by a file on the host filesystem.
type LocalFile struct {
	Path string
	size int64
}

// OpenLocalFile returns a LocalFile for path after checking that it is a
// regular file.
func OpenLocalFile(path string) (*LocalFile, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}
	info, err := os.Stat(abs)
	if err != nil {
		return nil, err
	}
	if !info.Mode().IsRegular() {
		return nil, fmt.Errorf("%s is not a regular file", path)
	}
	return &LocalFile{Path: abs, size: info.Size()}, nil
}

// Name returns the base name of the file.
func (f *LocalFile) Name() string { return filepath.Base(f.Path) }

// Size returns the file size recorded when it was opened.
func (f *LocalFile) Size() int64 { return f.size }

type renamed struct {
	Input
	name string
}

func (r *renamed) Name() string  { return r.name }
func (r *renamed) Unwrap() Input { return r.Input }

// Rename returns a reference to in under a different logical name. The
// underlying bytes are shared, not copied.
func Rename(in Input, name string) Input {
	return &renamed{Input: Unwrap(in), name: name}
}

// Unwrap returns the innermost Input behind any Rename wrappers.
func Unwrap(in Input) Input {
	for {
		u, ok := in.(interface{ Unwrap() Input })
		if !ok {
			return in
		}
		in = u.Unwrap()
	}
}
