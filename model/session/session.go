package session

import (
	"fmt"
	"time"

	"github.com/viant/opsly/internal/clock"
	"github.com/viant/opsly/internal/idgen"
	"github.com/viant/opsly/model"
)

// Session status constants
const (
	StatusIdle         = "idle"
	StatusPlanning     = "planning"
	StatusExecuting    = "executing"
	StatusAwaitingUser = "awaitingUser"
)

// Key identifies one conversation: one user within one channel.
type Key struct {
	UserID    string `json:"userId" yaml:"userId"`
	ChannelID string `json:"channelId" yaml:"channelId"`
}

// String returns the canonical key form used for storage and logging.
func (k Key) String() string {
	return k.UserID + "@" + k.ChannelID
}

// Validate checks the key carries both components.
func (k Key) Validate() error {
	if k.UserID == "" || k.ChannelID == "" {
		return fmt.Errorf("invalid session key: %q", k.String())
	}
	return nil
}

// PendingOrigin distinguishes why a question was asked.
type PendingOrigin string

const (
	// OriginClarify resumes planning with the user's reply in context.
	OriginClarify PendingOrigin = "clarify"
	// OriginConfirm holds a step awaiting an explicit go-ahead.
	OriginConfirm PendingOrigin = "confirm"
)

// Pending snapshots an outstanding question so an AwaitingUser session can
// survive restarts. Confirm-origin questions carry the held step.
type Pending struct {
	ID       string        `json:"id"`
	Origin   PendingOrigin `json:"origin"`
	Question string        `json:"question"`
	Step     *model.Step   `json:"step,omitempty"`
	AskedAt  time.Time     `json:"askedAt"`
}

// Session holds one conversation's remote-operation state. It is mutated only
// by the execution loop holding the store's exclusive lease for its key, so
// the struct itself carries no locking.
type Session struct {
	ID               string            `json:"id"`
	Key              Key               `json:"sessionKey"`
	Host             string            `json:"host,omitempty"`
	WorkingDirectory string            `json:"workingDirectory,omitempty"`
	Env              map[string]string `json:"environment,omitempty"`
	History          []*model.Step     `json:"history,omitempty"`
	LastError        *model.Failure    `json:"lastError,omitempty"`
	Status           string            `json:"status"`
	Intent           string            `json:"intent,omitempty"`
	Pending          *Pending          `json:"pending,omitempty"`
	HistoryLimit     int               `json:"historyLimit,omitempty"`
	CreatedAt        time.Time         `json:"createdAt"`
	LastActiveAt     time.Time         `json:"lastActiveAt"`
}

// New creates a session for the given key.
func New(key Key, host string, historyLimit int) *Session {
	now := clock.Now()
	return &Session{
		ID:           idgen.New(),
		Key:          key,
		Host:         host,
		Env:          make(map[string]string),
		Status:       StatusIdle,
		HistoryLimit: historyLimit,
		CreatedAt:    now,
		LastActiveAt: now,
	}
}

// Touch refreshes the activity timestamp used by idle eviction.
func (s *Session) Touch() {
	s.LastActiveAt = clock.Now()
}

// Append records an executed step, evicting the oldest entries beyond the
// configured cap. Appends are monotonic; eviction never drops the entry just
// added.
func (s *Session) Append(step *model.Step) {
	s.History = append(s.History, step)
	if limit := s.HistoryLimit; limit > 0 && len(s.History) > limit {
		overflow := len(s.History) - limit
		s.History = append([]*model.Step{}, s.History[overflow:]...)
	}
	s.Touch()
}

// Recent returns up to limit most recent history entries, oldest first.
func (s *Session) Recent(limit int) []*model.Step {
	if limit <= 0 || len(s.History) <= limit {
		return s.History
	}
	return s.History[len(s.History)-limit:]
}

// FailureCount returns how many failed history entries share the fingerprint.
// Retries of one step count individually.
func (s *Session) FailureCount(fingerprint string) int {
	count := 0
	for _, step := range s.History {
		if step.Failed() && step.Fingerprint() == fingerprint {
			count++
		}
	}
	return count
}

// SetEnv records an environment override applied to subsequent commands.
func (s *Session) SetEnv(name, value string) {
	if s.Env == nil {
		s.Env = make(map[string]string)
	}
	s.Env[name] = value
}

// Idle reports whether the session saw no activity for at least maxAge.
func (s *Session) Idle(maxAge time.Duration) bool {
	return clock.Now().Sub(s.LastActiveAt) >= maxAge
}

// Clone returns a deep enough copy for handing across goroutine boundaries:
// history steps stay shared (append-only), maps are copied.
func (s *Session) Clone() *Session {
	if s == nil {
		return nil
	}
	ret := *s
	if s.Env != nil {
		ret.Env = make(map[string]string, len(s.Env))
		for k, v := range s.Env {
			ret.Env[k] = v
		}
	}
	if s.History != nil {
		ret.History = append([]*model.Step{}, s.History...)
	}
	return &ret
}

// Suspend parks the session behind a question.
func (s *Session) Suspend(pending *Pending) {
	s.Pending = pending
	s.Status = StatusAwaitingUser
	s.Touch()
}

// Resume clears the suspension and returns the pending question, if any.
func (s *Session) Resume() *Pending {
	pending := s.Pending
	s.Pending = nil
	s.Status = StatusIdle
	s.Touch()
	return pending
}
