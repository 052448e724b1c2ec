package pipeline

import "errors"

var (
	// ErrEmptyQuestion is returned when the question is blank.
	ErrEmptyQuestion = errors.New("question is required")

	// ErrNoVersesResolved is returned when none of the proposed references
	// could be fetched. The turn ends before composition.
	ErrNoVersesResolved = errors.New("could not fetch Bible verses")

	// ErrCompositionFailed is returned when the summary could not be generated.
	ErrCompositionFailed = errors.New("error generating answer")
)

// CompositionError wraps the generator failure behind ErrCompositionFailed
type CompositionError struct {
	Err error
}

func (e *CompositionError) Error() string {
	return ErrCompositionFailed.Error() + ": " + e.Err.Error()
}

// Unwrap exposes both the sentinel and the cause to errors.Is
func (e *CompositionError) Unwrap() []error {
	return []error{ErrCompositionFailed, e.Err}
}
