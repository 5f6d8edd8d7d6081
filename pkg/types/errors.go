// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import (
	"errors"
	"fmt"
	"time"
)

// DataSourceError reports a failed search against one source. It is never
// fatal: the gatherer masks it to an empty contribution.
type DataSourceError struct {
	Source string
	Query  string
	Err    error
}

func (e *DataSourceError) Error() string {
	return fmt.Sprintf("source %s (query %q): %v", e.Source, e.Query, e.Err)
}

func (e *DataSourceError) Unwrap() error { return e.Err }

// GenerationError reports a failed or unparsable text generation. It is fatal
// to the current run.
type GenerationError struct {
	Reason string
	Err    error
}

func (e *GenerationError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("generation failed: %s: %v", e.Reason, e.Err)
	}
	return "generation failed: " + e.Reason
}

func (e *GenerationError) Unwrap() error { return e.Err }

// NewGenerationError wraps err with reason. A nil err yields a reason-only error.
func NewGenerationError(reason string, err error) error {
	return &GenerationError{Reason: reason, Err: err}
}

// StorageError reports a failed store operation. The run cannot continue
// without durable state.
type StorageError struct {
	Reason string
	Err    error
}

func (e *StorageError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("storage: %s: %v", e.Reason, e.Err)
	}
	return "storage: " + e.Reason
}

func (e *StorageError) Unwrap() error { return e.Err }

// NewStorageError wraps err with reason.
func NewStorageError(reason string, err error) error {
	return &StorageError{Reason: reason, Err: err}
}

// TimeoutError reports that the run-level deadline expired.
type TimeoutError struct {
	After time.Duration
	Stage TaskStatus
	Err   error
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("run timed out after %s during %s", e.After, e.Stage)
}

func (e *TimeoutError) Unwrap() error { return e.Err }

// IsGenerationError reports whether err wraps a *GenerationError.
func IsGenerationError(err error) bool {
	var target *GenerationError
	return errors.As(err, &target)
}

// IsStorageError reports whether err wraps a *StorageError.
func IsStorageError(err error) bool {
	var target *StorageError
	return errors.As(err, &target)
}

// IsTimeoutError reports whether err wraps a *TimeoutError.
func IsTimeoutError(err error) bool {
	var target *TimeoutError
	return errors.As(err, &target)
}
