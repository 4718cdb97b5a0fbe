package engine

import (
	"errors"
	"fmt"
)

// ErrBusy is returned when a segmentation job is already running on the
// session.
var ErrBusy = errors.New("a segmentation job is already running")

// LoadError reports a failed engine bootstrap. Op names the failing step:
// fetch-worker, fetch-core, fetch-wasm, publish or load.
type LoadError struct {
	Op  string
	Err error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("engine load failed (%s): %v", e.Op, e.Err)
}

func (e *LoadError) Unwrap() error { return e.Err }

// SegmentError reports a failed segmentation job. Op names the failing
// step: validate, busy, mkdir, mount, exec, list, read or delete.
type SegmentError struct {
	Op  string
	Err error
}

func (e *SegmentError) Error() string {
	return fmt.Sprintf("segmentation failed (%s): %v", e.Op, e.Err)
}

func (e *SegmentError) Unwrap() error { return e.Err }
