package abode

import (
	"context"
	"errors"
	"fmt"
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
)

type timeoutError struct{}

func (timeoutError) Error() string   { return "i/o timeout" }
func (timeoutError) Timeout() bool   { return true }
func (timeoutError) Temporary() bool { return true }

var _ net.Error = timeoutError{}

func TestIsConnectionError(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected bool
	}{
		{"nil", nil, false},
		{"vendor error", &Error{Code: 400, Message: "bad credentials"}, true},
		{"wrapped vendor error", fmt.Errorf("login: %w", &Error{Code: 400}), true},
		{"http error", &HTTPError{StatusCode: 503, Status: "503 Service Unavailable"}, true},
		{"connect timeout", fmt.Errorf("dial: %w", ErrConnectTimeout), true},
		{"deadline", context.DeadlineExceeded, true},
		{"net timeout", &net.OpError{Op: "dial", Err: timeoutError{}}, true},
		{"other", errors.New("cache file corrupt"), false},
		{"canceled", context.Canceled, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, IsConnectionError(tt.err))
		})
	}
}

func TestErrorMessages(t *testing.T) {
	assert.Equal(t, "abode error 400: invalid setting", (&Error{Code: 400, Message: "invalid setting"}).Error())
	assert.Equal(t, "abode http error: 502 Bad Gateway", (&HTTPError{StatusCode: 502, Status: "502 Bad Gateway"}).Error())
}
