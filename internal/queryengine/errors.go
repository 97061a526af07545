package queryengine

import "fmt"

// TemplateErrorKind classifies a caller-facing template failure.
type TemplateErrorKind string

const (
	// ErrUnresolvedPlaceholder means the rendered query references a
	// parameter no supplied value covers.
	ErrUnresolvedPlaceholder TemplateErrorKind = "unresolved_placeholder"
	// ErrCoercionFailure means a numeric filter value could not be parsed
	// as an int or a float.
	ErrCoercionFailure TemplateErrorKind = "coercion_failure"
)

// TemplateError is a fatal, caller-visible template or parameter failure.
// It is never silently defaulted.
type TemplateError struct {
	Kind  TemplateErrorKind
	Param string
	Value string
}

func (e *TemplateError) Error() string {
	switch e.Kind {
	case ErrCoercionFailure:
		return fmt.Sprintf("parameter %q: value %q is not numeric", e.Param, e.Value)
	default:
		return fmt.Sprintf("parameter %q has no bound value", e.Param)
	}
}
