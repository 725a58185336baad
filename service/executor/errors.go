package executor

import (
	"fmt"
	"strings"
	"time"
)

// ConnectionError indicates the channel to the host could not be established.
type ConnectionError struct {
	Host string
	Err  error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("failed to connect to %v: %v", e.Host, e.Err)
}

func (e *ConnectionError) Unwrap() error {
	return e.Err
}

// AuthenticationError indicates invalid or expired credentials for the host.
type AuthenticationError struct {
	Host string
	Err  error
}

func (e *AuthenticationError) Error() string {
	return fmt.Sprintf("authentication failed for %v: %v", e.Host, e.Err)
}

func (e *AuthenticationError) Unwrap() error {
	return e.Err
}

// TimeoutError indicates the command exceeded its deadline; the in-flight
// remote process was signalled to terminate.
type TimeoutError struct {
	Command string
	Timeout time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("command %q timed out after %s", e.Command, e.Timeout)
}

var authFailurePatterns = []string{
	"unable to authenticate",
	"no supported methods remain",
	"handshake failed",
	"permission denied",
	"invalid credentials",
}

// connectError labels a channel establishment failure, separating credential
// problems from plain connectivity ones.
func connectError(host string, err error) error {
	message := strings.ToLower(err.Error())
	for _, pattern := range authFailurePatterns {
		if strings.Contains(message, pattern) {
			return &AuthenticationError{Host: host, Err: err}
		}
	}
	return &ConnectionError{Host: host, Err: err}
}
