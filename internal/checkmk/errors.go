package checkmk

import (
	"errors"
	"fmt"
)

// ErrUnreachable indicates a network-level failure talking to Checkmk
var ErrUnreachable = errors.New("checkmk is unreachable")

// ErrNoCredentials indicates the client was constructed without auth
var ErrNoCredentials = errors.New("no checkmk credentials configured")

// BadResponseError is a non-success HTTP response from the Checkmk API
type BadResponseError struct {
	StatusCode int
	Body       string
}

func (e *BadResponseError) Error() string {
	return fmt.Sprintf("checkmk returned status %d: %s", e.StatusCode, e.Body)
}
