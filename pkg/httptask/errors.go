package httptask

import (
	"errors"
	"fmt"
)

// ErrNilTransport is returned by a request created without a transport.
var ErrNilTransport = errors.New("httptask: request has no transport")

// StatusError is returned by PerformOperation for responses with a status
// code of 400 or above.
type StatusError struct {
	Method     string
	URL        string
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("httptask: %s %s: unexpected status %d", e.Method, e.URL, e.StatusCode)
}
