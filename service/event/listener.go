package event

import (
	"context"
	"log"
	"time"
)

// Listener pumps events from a publisher's queue into a handler on its own
// goroutine until stopped.
type Listener[T any] struct {
	publisher *Publisher[T]
	handler   func(*Event[T])
	ctx       context.Context
	cancel    context.CancelFunc
}

// NewListener creates a listener delivering to handler.
func NewListener[T any](publisher *Publisher[T], handler func(*Event[T])) *Listener[T] {
	ctx, cancel := context.WithCancel(context.Background())
	return &Listener[T]{
		publisher: publisher,
		handler:   handler,
		ctx:       ctx,
		cancel:    cancel,
	}
}

// Stop terminates the delivery loop.
func (l *Listener[T]) Stop() {
	l.cancel()
}

// Start launches the delivery loop.
func (l *Listener[T]) Start() {
	go func() {
		for {
			select {
			case <-l.ctx.Done():
				return
			default:
				event, err := l.publisher.Consume(l.ctx)
				if err != nil {
					if l.ctx.Err() != nil {
						return
					}
					log.Printf("event listener: consume failed: %v", err)
					continue
				}
				if event == nil {
					// spool vendors return nil when empty, back off briefly
					time.Sleep(50 * time.Millisecond)
					continue
				}
				l.handler(event)
			}
		}
	}()
}
