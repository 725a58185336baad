package controller

import (
	"time"

	"github.com/viant/opsly/policy"
	"github.com/viant/opsly/service/classifier"
	"github.com/viant/opsly/service/event"
	"github.com/viant/opsly/service/executor"
	"github.com/viant/opsly/service/planner"
	"github.com/viant/opsly/service/prompt"
	"github.com/viant/opsly/service/store"
)

// Option configures the controller service.
type Option func(*Service)

// WithStore sets the session store (required).
func WithStore(sessions *store.Service) Option {
	return func(s *Service) { s.store = sessions }
}

// WithPlanner sets the step sequencer (required).
func WithPlanner(sequencer *planner.Service) Option {
	return func(s *Service) { s.planner = sequencer }
}

// WithExecutor sets the remote executor (required).
func WithExecutor(remote *executor.Service) Option {
	return func(s *Service) { s.executor = remote }
}

// WithClassifier replaces the default rule set.
func WithClassifier(rules *classifier.Service) Option {
	return func(s *Service) { s.classifier = rules }
}

// WithPrompt attaches the pending question registry.
func WithPrompt(questions prompt.Service) Option {
	return func(s *Service) { s.questions = questions }
}

// WithEvents attaches the progress event bus.
func WithEvents(events *event.Service) Option {
	return func(s *Service) { s.events = events }
}

// WithPolicy sets the execution policy gate.
func WithPolicy(aPolicy *policy.Policy) Option {
	return func(s *Service) { s.policy = aPolicy }
}

// WithHost pins the remote host commands run on; nil uses the executor
// default.
func WithHost(host *executor.Host) Option {
	return func(s *Service) { s.host = host }
}

// WithRetryDelay sets the wait before the single transient retry.
func WithRetryDelay(delay time.Duration) Option {
	return func(s *Service) {
		if delay > 0 {
			s.retryDelay = delay
		}
	}
}

// WithSummaryTail sets how many recent steps the final summary lists.
func WithSummaryTail(tail int) Option {
	return func(s *Service) {
		if tail > 0 {
			s.summaryTail = tail
		}
	}
}
