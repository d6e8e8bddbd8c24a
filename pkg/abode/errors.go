package abode

import (
	"context"
	"errors"
	"fmt"
	"net"
)

var (
	ErrUnknownDriver = errors.New("abode: unknown driver")

	// ErrConnectTimeout is returned by drivers when the cloud does not
	// answer the login in time.
	ErrConnectTimeout = errors.New("abode: connect timeout")
)

// Error is an error reported by the Abode service itself, such as bad
// credentials or an invalid setting value.
type Error struct {
	Code    int
	Message string
}

func (e *Error) Error() string {
	return fmt.Sprintf("abode error %d: %s", e.Code, e.Message)
}

// HTTPError is a non-2xx answer from the Abode API.
type HTTPError struct {
	StatusCode int
	Status     string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("abode http error: %s", e.Status)
}

// IsConnectionError reports whether err is the kind of failure that makes a
// session unusable but may go away on its own: a vendor error, a timeout or
// an HTTP error.
func IsConnectionError(err error) bool {
	if err == nil {
		return false
	}

	var abodeErr *Error
	if errors.As(err, &abodeErr) {
		return true
	}

	var httpErr *HTTPError
	if errors.As(err, &httpErr) {
		return true
	}

	if errors.Is(err, ErrConnectTimeout) || errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
