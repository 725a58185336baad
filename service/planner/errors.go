package planner

import "fmt"

// ProtocolError indicates the NL service returned a proposal outside the
// recognized step protocol: an unknown kind or a malformed payload. Such
// proposals are never passed through to remote execution.
type ProtocolError struct {
	Kind   string
	Reason string
	Err    error
}

func (e *ProtocolError) Error() string {
	if e.Kind != "" {
		return fmt.Sprintf("planner protocol violation for kind %q: %v", e.Kind, e.Reason)
	}
	return fmt.Sprintf("planner protocol violation: %v", e.Reason)
}

func (e *ProtocolError) Unwrap() error {
	return e.Err
}
