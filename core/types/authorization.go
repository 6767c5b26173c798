package types

import (
	"errors"
	"fmt"
)

// AuthorizationError reports that a capability or component rejected the
// caller's credentials. It is recognized across the library: value
// resolution and failure translation surface it unchanged instead of
// wrapping it, and every operation recognizes it without declaring it.
type AuthorizationError struct {
	Op     string // operation or resource that was denied, optional
	Reason string
	Err    error // underlying transport failure, optional
}

func (e *AuthorizationError) Error() string {
	msg := "authorization denied"
	if e.Op != "" {
		msg = fmt.Sprintf("%s: %s", msg, e.Op)
	}

	if e.Reason != "" {
		msg = fmt.Sprintf("%s: %s", msg, e.Reason)
	}

	return msg
}

func (e *AuthorizationError) Unwrap() error {
	return e.Err
}

// IsAuthorization reports whether err carries an AuthorizationError
// anywhere in its chain.
func IsAuthorization(err error) bool {
	var authErr *AuthorizationError
	return errors.As(err, &authErr)
}
