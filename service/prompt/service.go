package prompt

import (
	"context"
	"time"

	"github.com/viant/opsly/service/messaging"
)

// Service defines the pending question registry interface.
type Service interface {
	Ask(ctx context.Context, question *Question) error
	ListPending(ctx context.Context) ([]*Question, error)
	Answer(ctx context.Context, sessionKey, text string) (*Reply, error)
	Discard(ctx context.Context, sessionKey string) error
	Expire(ctx context.Context, maxAge time.Duration) ([]*Question, error)
	Queue() messaging.Queue[Event]
}
