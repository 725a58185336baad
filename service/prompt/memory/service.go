package memory

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/viant/opsly/internal/clock"
	"github.com/viant/opsly/internal/idgen"
	"github.com/viant/opsly/service/dao"
	"github.com/viant/opsly/service/dao/store"
	"github.com/viant/opsly/service/messaging"
	qmem "github.com/viant/opsly/service/messaging/memory"
	"github.com/viant/opsly/service/prompt"
)

// publishWait bounds how long a lifecycle event may wait for queue room;
// events are advisory and must never stall the asking side.
const publishWait = 50 * time.Millisecond

type service struct {
	// DAO-backed stores
	questionDAO dao.Service[string, prompt.Question]
	replyDAO    dao.Service[string, prompt.Reply]

	// fan-out queue
	events messaging.Queue[prompt.Event]
}

func (s *service) publish(ctx context.Context, event *prompt.Event) {
	ctx, cancel := context.WithTimeout(ctx, publishWait)
	defer cancel()
	_ = s.events.Publish(ctx, event)
}

// key selectors
func questionKey(q *prompt.Question) string { return q.SessionKey }
func replyKey(r *prompt.Reply) string       { return r.ID }

// New creates an in-memory pending question registry.
func New(options ...Option) prompt.Service {
	ret := &service{
		questionDAO: store.NewMemoryStore[string, prompt.Question](questionKey),
		replyDAO:    store.NewMemoryStore[string, prompt.Reply](replyKey),
		events:      qmem.NewQueue[prompt.Event](qmem.DefaultConfig()),
	}
	for _, option := range options {
		option(ret)
	}
	return ret
}

func (s *service) Ask(ctx context.Context, question *prompt.Question) error {
	if question == nil || question.SessionKey == "" {
		return errors.New("invalid question")
	}
	if question.ID == "" {
		question.ID = idgen.New()
	}
	if question.AskedAt.IsZero() {
		question.AskedAt = clock.Now()
	}

	// Idempotent save, re-asking replaces any previous question for the
	// same session.
	if err := s.questionDAO.Save(ctx, question); err != nil {
		return err
	}
	s.publish(ctx, &prompt.Event{Topic: prompt.TopicQuestionAsked, Data: question})
	return nil
}

func (s *service) ListPending(ctx context.Context) ([]*prompt.Question, error) {
	return s.questionDAO.List(ctx)
}

func (s *service) Answer(ctx context.Context, sessionKey, text string) (*prompt.Reply, error) {
	if sessionKey == "" {
		return nil, errors.New("empty session key")
	}
	question, err := s.questionDAO.Load(ctx, sessionKey)
	if err != nil {
		if errors.Is(err, dao.ErrNotFound) {
			return nil, fmt.Errorf("no pending question for session %s", sessionKey)
		}
		return nil, err
	}

	reply := &prompt.Reply{
		ID:         question.ID,
		SessionKey: sessionKey,
		Text:       text,
		AnsweredAt: clock.Now(),
	}
	if err := s.replyDAO.Save(ctx, reply); err != nil {
		return nil, err
	}
	_ = s.questionDAO.Delete(ctx, sessionKey)
	s.publish(ctx, &prompt.Event{Topic: prompt.TopicQuestionAnswered, Data: reply})
	return reply, nil
}

func (s *service) Discard(ctx context.Context, sessionKey string) error {
	question, err := s.questionDAO.Load(ctx, sessionKey)
	if err != nil {
		if errors.Is(err, dao.ErrNotFound) {
			return nil
		}
		return err
	}
	if err := s.questionDAO.Delete(ctx, sessionKey); err != nil {
		return err
	}
	s.publish(ctx, &prompt.Event{Topic: prompt.TopicQuestionExpired, Data: question})
	return nil
}

func (s *service) Expire(ctx context.Context, maxAge time.Duration) ([]*prompt.Question, error) {
	if maxAge <= 0 {
		return nil, nil
	}
	all, err := s.questionDAO.List(ctx)
	if err != nil {
		return nil, err
	}
	var expired []*prompt.Question
	now := clock.Now()
	for _, question := range all {
		if now.Sub(question.AskedAt) < maxAge {
			continue
		}
		if err := s.questionDAO.Delete(ctx, question.SessionKey); err != nil {
			return expired, err
		}
		s.publish(ctx, &prompt.Event{Topic: prompt.TopicQuestionExpired, Data: question})
		expired = append(expired, question)
	}
	return expired, nil
}

func (s *service) Queue() messaging.Queue[prompt.Event] { return s.events }

var _ prompt.Service = (*service)(nil)
