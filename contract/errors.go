package contract

import (
	"errors"
)

// Common errors
var (
	// ErrMissingFields is the only error reported to callers as their fault.
	ErrMissingFields = errors.New("missing required fields")
	// ErrTemplateParse wraps template reader failures.
	ErrTemplateParse = errors.New("failed to parse template")
	// ErrGenerationFailed is the opaque failure every other error maps to.
	ErrGenerationFailed = errors.New("generation failed")
)

// Stage names a pipeline step.
type Stage string

const (
	StageValidate  Stage = "validate"
	StageTemplate  Stage = "template"
	StageFonts     Stage = "fonts"
	StageSignature Stage = "signature"
	StageGeometry  Stage = "geometry"
	StageLateral   Stage = "lateral"
	StageFill      Stage = "fill"
	StageFlatten   Stage = "flatten"
	StagePlace     Stage = "place"
	StageFinalize  Stage = "finalize"
)

// GenerationError is returned for any failure after validation. Its message
// never carries the cause; use Cause for logging.
type GenerationError struct {
	Stage Stage
	Err   error
}

func (e *GenerationError) Error() string {
	return ErrGenerationFailed.Error()
}

// Is matches ErrGenerationFailed.
func (e *GenerationError) Is(target error) bool {
	return target == ErrGenerationFailed
}

func (e *GenerationError) Unwrap() error {
	return e.Err
}

// Cause returns the underlying error.
func (e *GenerationError) Cause() error {
	return e.Err
}
