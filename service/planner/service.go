// Package planner owns step sequencing for the execution loop. Step content
// comes from the NL client; the planner owns the stopping policy, proposal
// validation and the tie-break that keeps a twice-failed command from being
// submitted a third time.
package planner

import (
	"context"
	"fmt"

	"github.com/viant/opsly/extension"
	"github.com/viant/opsly/internal/clock"
	"github.com/viant/opsly/internal/idgen"
	"github.com/viant/opsly/model"
	"github.com/viant/opsly/model/session"
)

const (
	defaultMaxSteps      = 16
	defaultRecentHistory = 10
	excerptLimit         = 2000
)

// Input carries the turn-scoped planning context.
type Input struct {
	Session     *session.Session
	Intent      string
	StepsTaken  int
	LastFailure *model.Failure
}

// Service sequences steps for one turn at a time.
type Service struct {
	client   Client
	payloads *extension.Payloads
	maxSteps int
	recent   int
}

// Option customises the planner.
type Option func(*Service)

// WithMaxSteps bounds how many steps one turn may plan before failing closed.
func WithMaxSteps(limit int) Option {
	return func(s *Service) {
		if limit > 0 {
			s.maxSteps = limit
		}
	}
}

// WithRecentHistory sets how many history entries the NL request carries.
func WithRecentHistory(limit int) Option {
	return func(s *Service) {
		if limit > 0 {
			s.recent = limit
		}
	}
}

// WithPayloads overrides the payload parser, e.g. to admit custom step kinds.
func WithPayloads(payloads *extension.Payloads) Option {
	return func(s *Service) {
		s.payloads = payloads
	}
}

// New creates a planner backed by the supplied NL client.
func New(client Client, opts ...Option) *Service {
	ret := &Service{
		client:   client,
		payloads: extension.NewPayloads(),
		maxSteps: defaultMaxSteps,
		recent:   defaultRecentHistory,
	}
	for _, o := range opts {
		o(ret)
	}
	return ret
}

// Payloads returns the payload parser validating proposals.
func (s *Service) Payloads() *extension.Payloads {
	return s.payloads
}

// NextStep returns the next planned step. It terminates the turn when the NL
// service signals completion, when the step budget is exhausted or when the
// last failure was classified fatal; a proposal resubmitting a twice-failed
// command is replaced with an AskUser step.
func (s *Service) NextStep(ctx context.Context, input *Input) (*model.Step, error) {
	if failure := input.LastFailure; failure != nil && failure.Classification == model.ClassFatal {
		return s.terminateStep(model.OutcomeFailed, fmt.Sprintf("stopping: %v", failure.Description)), nil
	}
	if input.StepsTaken >= s.maxSteps {
		return s.terminateStep(model.OutcomeAborted, fmt.Sprintf("stopped after reaching the %d step limit", s.maxSteps)), nil
	}

	proposal, err := s.client.ProposeStep(ctx, s.buildRequest(input))
	if err != nil {
		return nil, fmt.Errorf("failed to propose step: %w", err)
	}
	if proposal == nil {
		return nil, &ProtocolError{Reason: "empty proposal"}
	}
	if proposal.Done {
		reason := proposal.Reason
		if reason == "" {
			reason = "done"
		}
		return s.terminateStep(model.OutcomeCompleted, reason), nil
	}

	kind := model.StepKind(proposal.Kind)
	payload, err := s.payloads.Parse(kind, proposal.Payload)
	if err != nil {
		return nil, &ProtocolError{Kind: proposal.Kind, Reason: err.Error(), Err: err}
	}

	step := &model.Step{
		ID:        idgen.New(),
		Kind:      kind,
		Payload:   payload,
		CreatedAt: clock.Now(),
	}
	if kind == model.KindShellCommand || kind == model.KindCloneRepository {
		if input.Session.FailureCount(step.Fingerprint()) >= 2 {
			question := fmt.Sprintf("`%s` failed twice already; how should I proceed?", step.Describe())
			return s.askStep(question), nil
		}
	}
	return step, nil
}

func (s *Service) buildRequest(input *Input) *Request {
	aSession := input.Session
	recent := aSession.Recent(s.recent)
	return &Request{
		Intent:           input.Intent,
		Host:             aSession.Host,
		WorkingDirectory: aSession.WorkingDirectory,
		RecentHistory:    historyEntries(recent),
		LastObservation:  lastObservation(recent),
		StepsTaken:       input.StepsTaken,
	}
}

func (s *Service) terminateStep(outcome model.Outcome, reason string) *model.Step {
	return &model.Step{
		ID:        idgen.New(),
		Kind:      model.KindTerminate,
		Payload:   &model.Terminate{Reason: reason, Outcome: outcome},
		CreatedAt: clock.Now(),
	}
}

func (s *Service) askStep(question string) *model.Step {
	return &model.Step{
		ID:        idgen.New(),
		Kind:      model.KindAskUser,
		Payload:   &model.AskUser{Question: question},
		CreatedAt: clock.Now(),
	}
}

func historyEntries(steps []*model.Step) []*HistoryEntry {
	if len(steps) == 0 {
		return nil
	}
	ret := make([]*HistoryEntry, 0, len(steps))
	for _, step := range steps {
		entry := &HistoryEntry{
			Kind:        string(step.Kind),
			Description: step.Describe(),
			Answer:      step.Answer,
		}
		if step.Result != nil {
			entry.ExitCode = step.Result.ExitCode
			entry.Excerpt = clip(step.Result.Excerpt(), excerptLimit)
		}
		if step.Classification != "" {
			entry.Classification = string(step.Classification)
		}
		ret = append(ret, entry)
	}
	return ret
}

func lastObservation(steps []*model.Step) string {
	if len(steps) == 0 {
		return ""
	}
	last := steps[len(steps)-1]
	if last.Answer != "" {
		return fmt.Sprintf("user replied: %s", last.Answer)
	}
	if last.Result == nil {
		return ""
	}
	excerpt := clip(last.Result.Excerpt(), excerptLimit)
	if last.Result.Success() {
		return fmt.Sprintf("%q succeeded: %s", last.Describe(), excerpt)
	}
	return fmt.Sprintf("%q failed with exit %d: %s", last.Describe(), last.Result.ExitCode, excerpt)
}

// clip bounds text to its last max bytes, matching the executor's
// keep-the-tail truncation.
func clip(text string, max int) string {
	if len(text) <= max {
		return text
	}
	return text[len(text)-max:]
}
