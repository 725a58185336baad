package store

import (
	"errors"
	"fmt"

	"github.com/viant/opsly/model/session"
)

// SessionBusyError indicates the key is already checked out by another
// in-flight request.
type SessionBusyError struct {
	Key session.Key
}

func (e *SessionBusyError) Error() string {
	return fmt.Sprintf("session %v is busy with another request", e.Key.String())
}

// IsBusy reports whether err carries a SessionBusyError.
func IsBusy(err error) bool {
	var busy *SessionBusyError
	return errors.As(err, &busy)
}
