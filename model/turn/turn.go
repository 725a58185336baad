package turn

import (
	"context"
	"sync"
	"time"

	"github.com/viant/opsly/internal/clock"
	"github.com/viant/opsly/internal/idgen"
	"github.com/viant/opsly/model"
	"github.com/viant/opsly/model/session"
)

// Turn state constants
const (
	StatePending      = "pending"
	StatePlanning     = "planning"
	StateExecuting    = "executing"
	StateObserving    = "observing"
	StateAwaitingUser = "awaitingUser"
	StateTerminal     = "terminal"
)

// Reply is the user-facing result of one turn. Final marks that the request
// reached a terminal state; a non-final reply is a question awaiting an
// answer on the next inbound message.
type Reply struct {
	Text  string        `json:"text"`
	Final bool          `json:"final"`
	Asked bool          `json:"asked,omitempty"`
	Steps int           `json:"steps,omitempty"`
	Took  time.Duration `json:"took,omitempty"`
}

// Wait blocks until the turn finishes or ctx/timeout expires; zero timeout
// waits indefinitely.
type Wait func(ctx context.Context, timeout time.Duration) (*Reply, error)

// Turn represents one inbound user request travelling through the execution
// loop.
type Turn struct {
	ID          string        `json:"id"`
	Key         session.Key   `json:"sessionKey"`
	Text        string        `json:"text"`
	State       string        `json:"state"`
	Outcome     model.Outcome `json:"outcome,omitempty"`
	Attempts    int           `json:"attempts,omitempty"`
	SubmittedAt time.Time     `json:"submittedAt"`
	StartedAt   *time.Time    `json:"startedAt,omitempty"`
	FinishedAt  *time.Time    `json:"finishedAt,omitempty"`

	once  sync.Once
	done  chan struct{}
	reply *Reply
	err   error
}

// New creates a pending turn for the given key and message text.
func New(key session.Key, text string) *Turn {
	return &Turn{
		ID:          idgen.New(),
		Key:         key,
		Text:        text,
		State:       StatePending,
		SubmittedAt: clock.Now(),
		done:        make(chan struct{}),
	}
}

// Start marks the turn as picked up by a worker.
func (t *Turn) Start() {
	now := clock.Now()
	t.StartedAt = &now
	t.State = StatePlanning
}

// Finish completes the turn future exactly once.
func (t *Turn) Finish(reply *Reply, err error) {
	t.once.Do(func() {
		now := clock.Now()
		t.FinishedAt = &now
		t.State = StateTerminal
		t.reply = reply
		t.err = err
		close(t.done)
	})
}

// Elapsed returns time since submission, or the total duration once finished.
func (t *Turn) Elapsed() time.Duration {
	if t.FinishedAt != nil {
		return t.FinishedAt.Sub(t.SubmittedAt)
	}
	return clock.Now().Sub(t.SubmittedAt)
}

// Wait returns a future resolving to the turn's reply.
func (t *Turn) Wait() Wait {
	return func(ctx context.Context, timeout time.Duration) (*Reply, error) {
		var expire <-chan time.Time
		if timeout > 0 {
			timer := time.NewTimer(timeout)
			defer timer.Stop()
			expire = timer.C
		}
		select {
		case <-t.done:
			return t.reply, t.err
		case <-expire:
			return nil, context.DeadlineExceeded
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}
