package dispatch

import (
	"errors"
	"fmt"
)

type PromptKind int

const (
	TextOnly PromptKind = iota
	ImageOnly
	Combined
)

func (k PromptKind) String() string {
	switch k {
	case TextOnly:
		return "text"
	case ImageOnly:
		return "image"
	case Combined:
		return "combined"
	default:
		return fmt.Sprintf("PromptKind(%d)", int(k))
	}
}

type ErrorKind int

const (
	NoError ErrorKind = iota
	OpenFailure
	InferenceFailure
	MissingInput
)

func (k ErrorKind) String() string {
	switch k {
	case NoError:
		return "none"
	case OpenFailure:
		return "open_failure"
	case InferenceFailure:
		return "inference_failure"
	case MissingInput:
		return "missing_input"
	default:
		return fmt.Sprintf("ErrorKind(%d)", int(k))
	}
}

// UnitError is the failure of one dispatched unit. errors.Is matches it against the
// sentinel for its kind.
type UnitError struct {
	Kind ErrorKind
	Err  error
}

func (e *UnitError) Error() string {
	return e.Kind.String() + ": " + e.Err.Error()
}

func (e *UnitError) Unwrap() error { return e.Err }

func (e *UnitError) Is(target error) bool {
	switch e.Kind {
	case OpenFailure:
		return target == ErrOpenFailure
	case InferenceFailure:
		return target == ErrInferenceFailure
	case MissingInput:
		return target == ErrMissingInput
	}
	return false
}

// Result is the outcome of one unit. Source names the artifact for image-bearing kinds.
type Result struct {
	Kind   PromptKind
	Text   string
	Err    error
	Source string
	Unit   string
}

func (r Result) ErrorKind() ErrorKind {
	if r.Err == nil {
		return NoError
	}
	var ue *UnitError
	if errors.As(r.Err, &ue) {
		return ue.Kind
	}
	switch {
	case errors.Is(r.Err, ErrOpenFailure):
		return OpenFailure
	case errors.Is(r.Err, ErrMissingInput):
		return MissingInput
	default:
		return InferenceFailure
	}
}

// Message is the text shown to the user for this result.
func (r Result) Message() string {
	if r.Err == nil {
		return r.Text
	}
	cause := r.Err
	var ue *UnitError
	if errors.As(r.Err, &ue) {
		cause = ue.Err
	}
	if r.ErrorKind() == OpenFailure {
		return fmt.Sprintf("Error opening image %s: %v", r.Source, cause)
	}
	return fmt.Sprintf("Error processing query: %v", cause)
}
