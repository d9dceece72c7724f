package state

import (
	"errors"
	"fmt"
)

var ErrClosed = errors.New("state store closed")

// FilesystemError reports a failed directory/file (or database) operation
// while loading or saving state.
type FilesystemError struct {
	Op   string // "mkdir", "read", "write", "open", ...
	Path string
	Err  error
}

func (e *FilesystemError) Error() string {
	return fmt.Sprintf("state %s %s: %v", e.Op, e.Path, e.Err)
}

func (e *FilesystemError) Unwrap() error { return e.Err }

// ParseError reports persisted state that is not exactly one valid JSON value.
type ParseError struct {
	Path string
	Err  error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("state parse %s: %v", e.Path, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

func fsErr(op, path string, err error) error {
	return &FilesystemError{Op: op, Path: path, Err: err}
}
