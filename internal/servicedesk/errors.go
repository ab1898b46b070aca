package servicedesk

import (
	"errors"
	"fmt"
)

// ErrUnreachable indicates a network-level failure talking to ServiceDesk Plus
var ErrUnreachable = errors.New("servicedesk is unreachable")

// ErrNoCredentials indicates the client was constructed without an auth token
var ErrNoCredentials = errors.New("no servicedesk credentials configured")

// ErrAlreadyClosed is returned when closing a request that is already closed
var ErrAlreadyClosed = errors.New("request is already closed")

// RequestRejectedError means ServiceDesk Plus understood the call but refused
// the payload, typically because a template field failed validation.
type RequestRejectedError struct {
	StatusCode int
	Body       string
}

func (e *RequestRejectedError) Error() string {
	return fmt.Sprintf("servicedesk rejected the request with status %d: %s", e.StatusCode, e.Body)
}

// BadResponseError is any other non-success HTTP response from the API
type BadResponseError struct {
	StatusCode int
	Body       string
}

func (e *BadResponseError) Error() string {
	return fmt.Sprintf("servicedesk returned status %d: %s", e.StatusCode, e.Body)
}
