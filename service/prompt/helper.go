package prompt

import (
	"context"
	"time"
)

// ReplyFunc produces an answer for a pending question.
// Return (text, true) to answer,
//
//	(_, false) to leave the question pending.
type ReplyFunc func(question *Question) (text string, ok bool)

// AutoReplier starts a goroutine that polls ListPending and applies fn to
// every question. It returns stop(), call it (or cancel ctx) to exit.
func AutoReplier(ctx context.Context,
	svc Service,
	fn ReplyFunc,
	interval time.Duration) (stop func()) {

	if interval <= 0 {
		interval = 20 * time.Millisecond
	}
	done := make(chan struct{})

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-done:
				return
			case <-ticker.C:
				questions, _ := svc.ListPending(ctx)
				for _, question := range questions {
					if text, ok := fn(question); ok {
						_, _ = svc.Answer(ctx, question.SessionKey, text)
					}
				}
			}
		}
	}()
	return func() { close(done) }
}

// AutoAnswer automatically answers all pending questions with the given text
func AutoAnswer(ctx context.Context,
	svc Service,
	text string,
	interval time.Duration) func() {
	return AutoReplier(ctx, svc,
		func(*Question) (string, bool) { return text, true }, interval)
}
