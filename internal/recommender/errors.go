package recommender

import (
	"errors"
	"fmt"
)

// ErrNotFound reports an id that is structurally invalid or references a
// movie outside the fitted catalog. Unknown users are not a NotFound
// condition; they degrade through the per-scorer cold-start fallbacks.
var ErrNotFound = errors.New("recommender: not found in catalog")

// ErrNotFitted reports use of a model before Fit or Load completed.
var ErrNotFitted = errors.New("recommender: model not fitted")

// FitDataError reports empty, too-sparse, or malformed training data.
// It is fatal at fit time and never produced by the scoring path.
type FitDataError struct {
	Reason string
}

func (e *FitDataError) Error() string {
	return "recommender: invalid training data: " + e.Reason
}

func fitDataErrorf(format string, args ...interface{}) error {
	return &FitDataError{Reason: fmt.Sprintf(format, args...)}
}

// SerializationError reports a bundle version/schema mismatch or a
// corrupt bundle on load. Loading is all-or-nothing: no partially
// reconstructed model is ever published behind this error.
type SerializationError struct {
	Reason string
	Err    error
}

func (e *SerializationError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("recommender: bundle: %s: %v", e.Reason, e.Err)
	}
	return "recommender: bundle: " + e.Reason
}

func (e *SerializationError) Unwrap() error {
	return e.Err
}

func serializationErrorf(err error, format string, args ...interface{}) error {
	return &SerializationError{Reason: fmt.Sprintf(format, args...), Err: err}
}
