package engine

import (
	"errors"
	"fmt"
)

// ErrInferenceFailed matches every *InferenceError.
var ErrInferenceFailed = errors.New("engine: inference failed")

// Reasons attached to an InferenceError, also used as metric labels.
const (
	ReasonClassifier   = "classifier_error"
	ReasonPanic        = "panic"
	ReasonShape        = "output_shape"
	ReasonProbability  = "invalid_probability"
	ReasonFeatureCount = "feature_count"
	ReasonCanceled     = "canceled"
)

// InferenceError reports a failed classification of a well-formed vector.
// The handle stays ready; the next call may succeed.
type InferenceError struct {
	Reason string
	Cause  error
}

func (e *InferenceError) Error() string {
	return fmt.Sprintf("engine: inference failed (%s): %v", e.Reason, e.Cause)
}

func (e *InferenceError) Unwrap() error {
	return e.Cause
}

// Is makes errors.Is(err, ErrInferenceFailed) hold for any InferenceError.
func (e *InferenceError) Is(target error) bool {
	return target == ErrInferenceFailed
}

// IsInferenceError reports whether err is an inference failure.
func IsInferenceError(err error) bool {
	return errors.Is(err, ErrInferenceFailed)
}

func inferenceError(reason string, cause error) *InferenceError {
	return &InferenceError{Reason: reason, Cause: cause}
}
