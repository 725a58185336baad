package store

import "github.com/viant/opsly/service/prompt"

// Option configures the session store.
type Option func(*Service)

// WithDefaultHost sets the host assigned to newly created sessions.
func WithDefaultHost(host string) Option {
	return func(s *Service) { s.defaultHost = host }
}

// WithHistoryLimit caps how many history entries a session retains.
func WithHistoryLimit(limit int) Option {
	return func(s *Service) {
		if limit > 0 {
			s.historyLimit = limit
		}
	}
}

// WithPrompt attaches the pending question registry so reset or evicted keys
// drop their parked questions.
func WithPrompt(questions prompt.Service) Option {
	return func(s *Service) { s.questions = questions }
}
