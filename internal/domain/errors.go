package domain

import (
	"errors"
	"fmt"
	"io/fs"
)

var (
	// ErrMissingVariable is returned when a gridded file lacks a variable the
	// builder cannot do without (t2m locally, sst in the teleconnection file).
	ErrMissingVariable = errors.New("missing required variable")

	// ErrTimeAxisMismatch is returned when variables read from the same file
	// do not share a time axis.
	ErrTimeAxisMismatch = errors.New("time axis mismatch")

	// ErrEmptyTimeAxis is returned for a grid with no timesteps.
	ErrEmptyTimeAxis = errors.New("empty time axis")

	// ErrEmptyDataset is returned by the encoder when no rows survived the build.
	ErrEmptyDataset = errors.New("dataset has no rows")
)

// MissingInputError reports an input path that does not exist. It is raised
// before any parse attempt.
type MissingInputError struct {
	Path string
}

func (e *MissingInputError) Error() string {
	return fmt.Sprintf("missing input file: %s", e.Path)
}

// Unwrap lets callers match with errors.Is(err, fs.ErrNotExist).
func (e *MissingInputError) Unwrap() error {
	return fs.ErrNotExist
}

// DegenerateColumnError reports a feature column whose min equals its max,
// which makes min-max rescaling undefined.
type DegenerateColumnError struct {
	Column string
	Value  float64
}

func (e *DegenerateColumnError) Error() string {
	return fmt.Sprintf("degenerate feature column %q: constant value %g", e.Column, e.Value)
}
