package dispatcher

import (
	"github.com/viant/opsly/service/messaging"
)

// Option customises the dispatcher service.
type Option func(*Service)

// WithHandler sets the turn handler driven by the workers
func WithHandler(handler Handler) Option {
	return func(s *Service) {
		s.handler = handler
	}
}

// WithQueue sets the inbound turn queue implementation
func WithQueue(queue messaging.Queue[Delivery]) Option {
	return func(s *Service) {
		s.queue = queue
	}
}

// WithWorkers sets the number of worker goroutines
func WithWorkers(count int) Option {
	return func(s *Service) {
		if count > 0 {
			s.config.WorkerCount = count
		}
	}
}

// WithConfig sets the configuration for the service
func WithConfig(config Config) Option {
	return func(s *Service) {
		s.config = config
	}
}
