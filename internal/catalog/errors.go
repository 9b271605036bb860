package catalog

import (
	"errors"
	"fmt"
)

var (
	// ErrAuth reports missing, malformed, expired or rejected catalog credentials.
	ErrAuth = errors.New("catalog authentication failed")
	// ErrRateLimit reports an exhausted call budget or a provider throttle response.
	ErrRateLimit = errors.New("catalog rate limit exceeded")
)

// ExternalDataError is a provider-side or validation failure whose message is safe to show.
type ExternalDataError struct {
	Msg string
	Err error
}

func (e *ExternalDataError) Error() string {
	if e.Err == nil {
		return e.Msg
	}
	return fmt.Sprintf("%s: %v", e.Msg, e.Err)
}

func (e *ExternalDataError) Unwrap() error {
	return e.Err
}

func dataError(msg string, err error) error {
	return &ExternalDataError{Msg: msg, Err: err}
}

// authError carries a displayable message while matching ErrAuth.
func authError(msg string) error {
	return &ExternalDataError{Msg: msg, Err: ErrAuth}
}
