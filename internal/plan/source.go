package plan

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
)

var (
	// ErrEmptySource is returned for zero-length inputs.
	ErrEmptySource = errors.New("file is empty")
	// ErrNotRegular is returned for directories, devices and the like.
	ErrNotRegular = errors.New("not a regular file")
	// ErrNotSeekable is returned for stdin, which cannot be split by offset.
	ErrNotSeekable = errors.New("stdin cannot be split into byte ranges")
	// ErrNoSources is returned when nothing was given to plan.
	ErrNoSources = errors.New("no input files were given")
)

var openSource = os.Open

// Source is one input file and its size at discovery time.
type Source struct {
	Path string
	Size int64
}

// SourceError reports why a declared input cannot be used.
type SourceError struct {
	Path string
	Err  error
}

func (e *SourceError) Error() string {
	if errors.Is(e.Err, fs.ErrNotExist) {
		return fmt.Sprintf("%s: file does not exist", e.Path)
	}
	return fmt.Sprintf("%s: %v", e.Path, e.Err)
}

func (e *SourceError) Unwrap() error { return e.Err }

// Discover stats every path and returns the usable sources in input order.
// Every unusable path is reported; the returned error joins one *SourceError
// per bad path. Repeated paths are kept once.
func Discover(paths []string) ([]Source, error) {
	if len(paths) == 0 {
		return nil, ErrNoSources
	}
	var (
		out  = make([]Source, 0, len(paths))
		errs []error
		seen = make(map[string]struct{}, len(paths))
	)
	for _, p := range paths {
		if _, dup := seen[p]; dup {
			continue
		}
		seen[p] = struct{}{}

		src, err := stat(p)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		out = append(out, src)
	}
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return out, nil
}

func stat(path string) (Source, error) {
	if path == "-" {
		return Source{}, &SourceError{Path: path, Err: ErrNotSeekable}
	}
	fi, err := os.Stat(path)
	if err != nil {
		return Source{}, &SourceError{Path: path, Err: unwrapPath(err)}
	}
	if !fi.Mode().IsRegular() {
		return Source{}, &SourceError{Path: path, Err: ErrNotRegular}
	}
	if fi.Size() == 0 {
		return Source{}, &SourceError{Path: path, Err: ErrEmptySource}
	}
	// Every worker opens the file itself; fail here rather than per chunk.
	f, err := openSource(path)
	if err != nil {
		return Source{}, &SourceError{Path: path, Err: unwrapPath(err)}
	}
	_ = f.Close()
	return Source{Path: path, Size: fi.Size()}, nil
}

func unwrapPath(err error) error {
	var pe *fs.PathError
	if errors.As(err, &pe) {
		return pe.Err
	}
	return err
}

// SourceErrors flattens an error returned by Discover.
func SourceErrors(err error) []*SourceError {
	var out []*SourceError
	var walk func(error)
	walk = func(e error) {
		if e == nil {
			return
		}
		if se, ok := e.(*SourceError); ok {
			out = append(out, se)
			return
		}
		if j, ok := e.(interface{ Unwrap() []error }); ok {
			for _, inner := range j.Unwrap() {
				walk(inner)
			}
		}
	}
	walk(err)
	return out
}
