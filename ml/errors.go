package ml

import (
	"errors"
	"fmt"
)

var (
	ErrEmptyFrame     = errors.New("frame is empty")
	ErrSchemaMismatch = errors.New("schema mismatch")
	ErrNonNumeric     = errors.New("non-numeric value")
	ErrPipelineFrozen = errors.New("pipeline is frozen")
)

// NotFittedError is returned when a stage is asked to transform before it was fitted.
type NotFittedError struct {
	Stage string
}

func (e *NotFittedError) Error() string {
	return fmt.Sprintf("%s: transform called before fit", e.Stage)
}

// MissingFeatureError names a feature that was required but absent from the input.
type MissingFeatureError struct {
	Feature string
}

func (e *MissingFeatureError) Error() string {
	return fmt.Sprintf("missing feature %q", e.Feature)
}

// DegenerateColumnError is returned by the scaler under the fail policy when a
// column has the same value in every fit row.
type DegenerateColumnError struct {
	Column string
	Value  float64
}

func (e *DegenerateColumnError) Error() string {
	return fmt.Sprintf("column %q is constant (%g) and cannot be scaled", e.Column, e.Value)
}

type ArtifactNotFoundError struct {
	Path string
	Err  error
}

func (e *ArtifactNotFoundError) Error() string {
	return fmt.Sprintf("model artifact not found at %s", e.Path)
}

func (e *ArtifactNotFoundError) Unwrap() error { return e.Err }

type ArtifactCorruptError struct {
	Path   string
	Reason string
	Err    error
}

func (e *ArtifactCorruptError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("model artifact %s is corrupt: %s: %v", e.Path, e.Reason, e.Err)
	}
	return fmt.Sprintf("model artifact %s is corrupt: %s", e.Path, e.Reason)
}

func (e *ArtifactCorruptError) Unwrap() error { return e.Err }
