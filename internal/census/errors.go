package census

import (
	"errors"
	"fmt"
)

// APIError reports a request that cannot be satisfied by the Census API as
// asked: an unknown variable, an unsupported geography, misaligned chunked
// downloads and the like. It is the error a user is expected to act on.
type APIError struct {
	Msg string
}

func (e *APIError) Error() string {
	return e.Msg
}

// NewAPIError formats an APIError.
func NewAPIError(format string, args ...any) *APIError {
	return &APIError{Msg: fmt.Sprintf(format, args...)}
}

// IsAPIError reports whether err, or any error it wraps, is an APIError.
func IsAPIError(err error) bool {
	var ae *APIError
	return errors.As(err, &ae)
}
