package pricing

import (
	"fmt"

	"github.com/pkg/errors"
)

// ErrInvalidInput is the only error kind the engine produces. Every
// *InputError matches it through errors.Is.
var ErrInvalidInput = errors.New("invalid input")

// InputError names the offending argument.
type InputError struct {
	Field  string
	Reason string
}

func (e *InputError) Error() string {
	return fmt.Sprintf("invalid input: %s %s", e.Field, e.Reason)
}

func (e *InputError) Is(target error) bool {
	return target == ErrInvalidInput
}

func invalid(field, reason string) error {
	return &InputError{Field: field, Reason: reason}
}
