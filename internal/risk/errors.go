package risk

import (
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidTable is returned when a scale table fails validation.
var ErrInvalidTable = errors.New("invalid scale table")

// ValidationError reports a numeric input that is not a finite number.
type ValidationError struct {
	Field string
	Value float64
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s must be a finite number, got %v", e.Field, e.Value)
}

// InvalidEnumError reports a categorical input outside its allowed set.
type InvalidEnumError struct {
	Field   string
	Value   string
	Allowed []string
}

func (e *InvalidEnumError) Error() string {
	return fmt.Sprintf("%s has invalid value %q (allowed: %s)", e.Field, e.Value, strings.Join(e.Allowed, ", "))
}

// IsInputError reports whether err was caused by invalid caller input,
// as opposed to an internal failure.
func IsInputError(err error) bool {
	var ve *ValidationError
	var ee *InvalidEnumError
	return errors.As(err, &ve) || errors.As(err, &ee)
}

func tableErrorf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidTable, fmt.Sprintf(format, args...))
}

func allowedStrings[T ~string](values []T) []string {
	out := make([]string, len(values))
	for i, v := range values {
		out[i] = string(v)
	}
	return out
}
