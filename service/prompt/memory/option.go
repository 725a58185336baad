package memory

import (
	"github.com/viant/opsly/service/messaging"
	"github.com/viant/opsly/service/prompt"
)

type Option func(*service)

// WithQueue replaces the default event queue so callers can share a single
// broker across services.
func WithQueue(queue messaging.Queue[prompt.Event]) Option {
	return func(s *service) { s.events = queue }
}
