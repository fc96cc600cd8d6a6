package ml

import "errors"

var (
	// ErrModelUnavailable is returned by the predictor when its artifacts
	// did not load at startup.
	ErrModelUnavailable = errors.New("ml: model not available")

	// ErrFeatureMismatch is returned when a persisted feature list does not
	// match the encoder's column order.
	ErrFeatureMismatch = errors.New("ml: feature list does not match encoder")

	// ErrUnsupportedModel is returned for a model file of an unknown type.
	ErrUnsupportedModel = errors.New("ml: unsupported model type")
)

// PredictionError wraps a failure inside model invocation.
type PredictionError struct {
	Err error
}

func (e *PredictionError) Error() string {
	return "ml: prediction failed: " + e.Err.Error()
}

func (e *PredictionError) Unwrap() error {
	return e.Err
}
