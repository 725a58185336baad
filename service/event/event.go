// Package event carries typed progress notifications (step lifecycle,
// questions, turn completion) over messaging queues so platform adapters can
// stream execution progress into the conversation.
package event

import (
	"time"

	"github.com/viant/opsly/internal/clock"
	"github.com/viant/opsly/model"
)

// Context identifies where in a conversation an event happened.
type Context struct {
	SessionKey string `json:"sessionKey"`
	TurnID     string `json:"turnId"`
	EventType  string `json:"eventType"`
	StepKind   string `json:"stepKind,omitempty"`
	ElapsedMs  int    `json:"elapsedMs,omitempty"`
}

// Event wraps a typed payload with its conversational context.
type Event[T any] struct {
	Context   *Context               `json:"context"`
	CreatedAt time.Time              `json:"createdAt"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
	Data      T                      `json:"data"`
}

// NewEvent creates an event for the given context and payload.
func NewEvent[T any](context *Context, data T) *Event[T] {
	return &Event[T]{
		Context:   context,
		CreatedAt: clock.Now(),
		Metadata:  make(map[string]interface{}),
		Data:      data,
	}
}

// StepStarted signals that a step began executing.
type StepStarted struct {
	Step *model.Step `json:"step"`
}

// StepCompleted signals that a step finished, successfully or not.
type StepCompleted struct {
	Step *model.Step `json:"step"`
}

// QuestionAsked signals that the conversation suspended on a question.
type QuestionAsked struct {
	Question string `json:"question"`
	Origin   string `json:"origin,omitempty"`
}

// TurnCompleted signals that a request reached its terminal state.
type TurnCompleted struct {
	Outcome model.Outcome `json:"outcome"`
	Summary string        `json:"summary,omitempty"`
	Steps   int           `json:"steps,omitempty"`
}
