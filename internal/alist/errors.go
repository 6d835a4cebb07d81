package alist

import (
	"errors"
	"fmt"
)

// ErrRateLimitTimeout is returned when no request token became available
// within the limiter's bounded wait.
var ErrRateLimitTimeout = errors.New("rate limiter timeout")

// HTTPError is a transport-level failure: the request completed with a
// non-2xx status before the response envelope could be interpreted.
type HTTPError struct {
	Op     string
	Status int
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("%s: http status %d", e.Op, e.Status)
}

// APIError is a service-reported failure: the envelope decoded cleanly but
// carried a non-success code.
type APIError struct {
	Code    int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error code %d: %s", e.Code, e.Message)
}

// ProtocolError means the response body did not match the expected shape.
type ProtocolError struct {
	Op  string
	Err error
}

func (e *ProtocolError) Error() string {
	return fmt.Sprintf("%s: malformed response: %v", e.Op, e.Err)
}

func (e *ProtocolError) Unwrap() error {
	return e.Err
}
