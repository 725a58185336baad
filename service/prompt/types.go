package prompt

import (
	"time"

	"github.com/viant/opsly/model"
	"github.com/viant/opsly/model/session"
)

// Event carries a question lifecycle notification.
type Event struct {
	Topic   string            // see topic constants below
	Data    interface{}       // *Question | *Reply
	Headers map[string]string `json:"headers,omitempty"`
}

// Standard event topics.
const (
	TopicQuestionAsked    = "question.asked"
	TopicQuestionAnswered = "question.answered"
	TopicQuestionExpired  = "question.expired"
)

// Question represents a parked question awaiting the user's reply. A session
// has at most one pending question at a time; asking again replaces it.
type Question struct {
	ID         string                `json:"id"` // same as the recorded step ID
	SessionKey string                `json:"sessionKey"`
	Origin     session.PendingOrigin `json:"origin"`
	Text       string                `json:"text"`
	Step       *model.Step           `json:"step,omitempty"` // confirm origin holds the gated step
	AskedAt    time.Time             `json:"askedAt"`
}

// Reply represents the user's answer to a question.
type Reply struct {
	ID         string    `json:"id"` // same as question.ID
	SessionKey string    `json:"sessionKey"`
	Text       string    `json:"text"`
	AnsweredAt time.Time `json:"answeredAt"`
}

// FromPending builds the registry entry for a suspended session.
func FromPending(key session.Key, pending *session.Pending) *Question {
	if pending == nil {
		return nil
	}
	return &Question{
		ID:         pending.ID,
		SessionKey: key.String(),
		Origin:     pending.Origin,
		Text:       pending.Question,
		Step:       pending.Step,
		AskedAt:    pending.AskedAt,
	}
}
