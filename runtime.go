package opsly

import (
	"context"
	"errors"
	"time"

	"github.com/viant/opsly/model/session"
	"github.com/viant/opsly/model/turn"
	"github.com/viant/opsly/service/controller"
	"github.com/viant/opsly/service/dispatcher"
	"github.com/viant/opsly/service/event"
	"github.com/viant/opsly/service/executor"
	"github.com/viant/opsly/service/prompt"
	"github.com/viant/opsly/service/store"
)

// Reset waits for a cancelled turn to wind down before wiping the session;
// the retry budget bounds that wait.
const (
	resetRetries    = 20
	resetRetryDelay = 100 * time.Millisecond
)

// Message is one inbound chat message addressed to a session.
type Message struct {
	UserID    string `json:"userId" yaml:"userId"`
	ChannelID string `json:"channelId" yaml:"channelId"`
	Text      string `json:"text" yaml:"text"`
}

// Key returns the session key the message addresses.
func (m *Message) Key() session.Key {
	return session.Key{UserID: m.UserID, ChannelID: m.ChannelID}
}

// Runtime is the operational surface of the service: it accepts messages,
// exposes cancellation and reset, and streams progress events.
type Runtime struct {
	sessions   *store.Service
	questions  prompt.Service
	controller *controller.Service
	dispatcher *dispatcher.Service
	sweeper    *store.Sweeper
	remote     *executor.Service
	events     *event.Service
}

// Start launches the background workers: the dispatcher pool and the idle
// session sweeper.
func (r *Runtime) Start(ctx context.Context) error {
	if err := r.dispatcher.Start(ctx); err != nil {
		return err
	}
	go r.sweeper.Start(ctx)
	return nil
}

// Handle processes one message synchronously and returns the reply: either a
// final summary or a question awaiting the user's next message. A concurrent
// turn on the same session surfaces as *store.SessionBusyError.
func (r *Runtime) Handle(ctx context.Context, message *Message) (*turn.Reply, error) {
	aTurn := turn.New(message.Key(), message.Text)
	aTurn.Start()
	reply, err := r.controller.Handle(ctx, aTurn)
	aTurn.Finish(reply, err)
	return reply, err
}

// Submit queues the message for asynchronous processing and returns the turn
// together with a wait future for its reply. A busy session is redelivered
// with a delay until the dispatcher's retry budget runs out.
func (r *Runtime) Submit(ctx context.Context, message *Message) (*turn.Turn, turn.Wait, error) {
	aTurn := turn.New(message.Key(), message.Text)
	wait, err := r.dispatcher.Submit(ctx, aTurn)
	if err != nil {
		return nil, nil, err
	}
	return aTurn, wait, nil
}

// Cancel interrupts the in-flight turn for the user's session, reporting
// whether one was running. The interrupted turn ends with a Cancelled outcome
// and its lease is released.
func (r *Runtime) Cancel(ctx context.Context, userID, channelID string) bool {
	return r.sessions.Cancel(session.Key{UserID: userID, ChannelID: channelID})
}

// Reset discards the session: its snapshot, any pending question and the
// in-flight turn. While a cancelled turn is still winding down the store
// reports busy, so Reset retries briefly before giving up.
func (r *Runtime) Reset(ctx context.Context, userID, channelID string) error {
	key := session.Key{UserID: userID, ChannelID: channelID}
	var err error
	for attempt := 0; attempt < resetRetries; attempt++ {
		if err = r.sessions.Reset(ctx, key); err == nil {
			return nil
		}
		var busy *store.SessionBusyError
		if !errors.As(err, &busy) {
			return err
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(resetRetryDelay):
		}
	}
	return err
}

// Session returns the current session snapshot without holding the lease.
func (r *Runtime) Session(ctx context.Context, userID, channelID string) (*session.Session, error) {
	key := session.Key{UserID: userID, ChannelID: channelID}
	sess, err := r.sessions.Checkout(ctx, key)
	if err != nil {
		return nil, err
	}
	_ = r.sessions.Release(ctx, key, nil)
	return sess, nil
}

// Subscribe replaces the progress listener; the handler receives step and
// turn lifecycle events as they are published.
func (r *Runtime) Subscribe(handler func(*event.Event[any])) {
	r.events.SetListener(handler)
}

// Questions exposes the pending-question service so platform adapters can
// list or expire outstanding prompts.
func (r *Runtime) Questions() prompt.Service {
	return r.questions
}

// Shutdown stops the background workers and closes the remote channels.
func (r *Runtime) Shutdown(ctx context.Context) error {
	r.dispatcher.Shutdown()
	r.sweeper.Shutdown()
	r.events.Shutdown()
	return r.remote.Close(ctx)
}
