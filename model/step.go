package model

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"
)

// StepKind identifies one of the recognized step variants. The set is closed:
// planner proposals that do not map to one of these kinds are rejected before
// execution.
type StepKind string

const (
	KindShellCommand    StepKind = "ShellCommand"
	KindCloneRepository StepKind = "CloneRepository"
	KindAskUser         StepKind = "AskUser"
	KindTerminate       StepKind = "Terminate"
)

// Known reports whether kind belongs to the recognized step set.
func (k StepKind) Known() bool {
	switch k {
	case KindShellCommand, KindCloneRepository, KindAskUser, KindTerminate:
		return true
	}
	return false
}

// ShellCommand runs a single command line on the remote host.
type ShellCommand struct {
	Command   string `json:"command" yaml:"command"`
	TimeoutMs int    `json:"timeoutMs,omitempty" yaml:"timeoutMs,omitempty"`
}

// Validate checks required fields.
func (c *ShellCommand) Validate() error {
	if strings.TrimSpace(c.Command) == "" {
		return fmt.Errorf("command was empty")
	}
	if c.TimeoutMs < 0 {
		return fmt.Errorf("timeoutMs was negative: %v", c.TimeoutMs)
	}
	return nil
}

// CloneRepository clones a git repository on the remote host and enters it.
type CloneRepository struct {
	URL         string `json:"url" yaml:"url"`
	Destination string `json:"destination,omitempty" yaml:"destination,omitempty"`
}

// Validate checks required fields.
func (c *CloneRepository) Validate() error {
	if strings.TrimSpace(c.URL) == "" {
		return fmt.Errorf("url was empty")
	}
	return nil
}

// AskUser suspends the conversation with a question for the user.
type AskUser struct {
	Question string `json:"question" yaml:"question"`
}

// Validate checks required fields.
func (a *AskUser) Validate() error {
	if strings.TrimSpace(a.Question) == "" {
		return fmt.Errorf("question was empty")
	}
	return nil
}

// Terminate ends the current request with the given outcome.
type Terminate struct {
	Reason  string  `json:"reason,omitempty" yaml:"reason,omitempty"`
	Outcome Outcome `json:"outcome,omitempty" yaml:"outcome,omitempty"`
}

// Validate checks the outcome value when present.
func (t *Terminate) Validate() error {
	switch t.Outcome {
	case "", OutcomeCompleted, OutcomeFailed, OutcomeCancelled, OutcomeAborted:
		return nil
	}
	return fmt.Errorf("unsupported outcome: %q", t.Outcome)
}

// Step represents one planned or executed action within a session.
type Step struct {
	ID             string         `json:"id"`
	Kind           StepKind       `json:"kind"`
	Payload        interface{}    `json:"payload,omitempty"`
	Result         *Result        `json:"result,omitempty"`
	Classification Classification `json:"classification,omitempty"`
	Answer         string         `json:"answer,omitempty"`
	Attempt        int            `json:"attempt,omitempty"`
	CreatedAt      time.Time      `json:"createdAt"`
}

// Shell returns the shell payload or nil.
func (s *Step) Shell() *ShellCommand {
	ret, _ := s.Payload.(*ShellCommand)
	return ret
}

// Clone returns the clone payload or nil.
func (s *Step) Clone() *CloneRepository {
	ret, _ := s.Payload.(*CloneRepository)
	return ret
}

// Ask returns the ask payload or nil.
func (s *Step) Ask() *AskUser {
	ret, _ := s.Payload.(*AskUser)
	return ret
}

// Termination returns the terminate payload or nil.
func (s *Step) Termination() *Terminate {
	ret, _ := s.Payload.(*Terminate)
	return ret
}

// Failed reports whether the step executed and did not succeed.
func (s *Step) Failed() bool {
	if s.Result == nil {
		return false
	}
	return !s.Result.Success()
}

// Fingerprint returns a canonical identity for kind+payload, used to detect
// resubmission of an action that already failed. Field order and whitespace
// do not affect the result.
func (s *Step) Fingerprint() string {
	data, err := json.Marshal(s.Payload)
	if err != nil {
		return string(s.Kind)
	}
	var flat map[string]interface{}
	if err = json.Unmarshal(data, &flat); err != nil {
		return string(s.Kind) + ":" + string(data)
	}
	keys := make([]string, 0, len(flat))
	for k := range flat {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	builder := strings.Builder{}
	builder.WriteString(string(s.Kind))
	for _, k := range keys {
		builder.WriteString("|")
		builder.WriteString(k)
		builder.WriteString("=")
		builder.WriteString(fmt.Sprintf("%v", flat[k]))
	}
	return builder.String()
}

// Describe returns a short user-facing description of the step.
func (s *Step) Describe() string {
	switch s.Kind {
	case KindShellCommand:
		if payload := s.Shell(); payload != nil {
			return payload.Command
		}
	case KindCloneRepository:
		if payload := s.Clone(); payload != nil {
			return "clone " + payload.URL
		}
	case KindAskUser:
		if payload := s.Ask(); payload != nil {
			return payload.Question
		}
	case KindTerminate:
		if payload := s.Termination(); payload != nil && payload.Reason != "" {
			return payload.Reason
		}
		return "done"
	}
	return string(s.Kind)
}

// stepEnvelope is the persisted form of a step; payload stays raw until the
// kind is known so that snapshots keep the closed-set guarantee on load.
type stepEnvelope struct {
	ID             string          `json:"id"`
	Kind           StepKind        `json:"kind"`
	Payload        json.RawMessage `json:"payload,omitempty"`
	Result         *Result         `json:"result,omitempty"`
	Classification Classification  `json:"classification,omitempty"`
	Answer         string          `json:"answer,omitempty"`
	Attempt        int             `json:"attempt,omitempty"`
	CreatedAt      time.Time       `json:"createdAt"`
}

// UnmarshalJSON decodes a step envelope, selecting the payload type by kind.
func (s *Step) UnmarshalJSON(data []byte) error {
	envelope := stepEnvelope{}
	if err := json.Unmarshal(data, &envelope); err != nil {
		return err
	}
	s.ID = envelope.ID
	s.Kind = envelope.Kind
	s.Result = envelope.Result
	s.Classification = envelope.Classification
	s.Answer = envelope.Answer
	s.Attempt = envelope.Attempt
	s.CreatedAt = envelope.CreatedAt
	if len(envelope.Payload) == 0 {
		return nil
	}
	payload, err := NewPayload(envelope.Kind)
	if err != nil {
		return err
	}
	if err = json.Unmarshal(envelope.Payload, payload); err != nil {
		return fmt.Errorf("failed to decode %v payload: %w", envelope.Kind, err)
	}
	s.Payload = payload
	return nil
}

// NewPayload returns a zero payload value for the given kind.
func NewPayload(kind StepKind) (interface{}, error) {
	switch kind {
	case KindShellCommand:
		return &ShellCommand{}, nil
	case KindCloneRepository:
		return &CloneRepository{}, nil
	case KindAskUser:
		return &AskUser{}, nil
	case KindTerminate:
		return &Terminate{}, nil
	}
	return nil, fmt.Errorf("unknown step kind: %q", kind)
}
