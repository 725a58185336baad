package dispatcher

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/viant/opsly/model/turn"
	"github.com/viant/opsly/service/messaging"
	"github.com/viant/opsly/service/messaging/memory"
	"github.com/viant/opsly/service/store"
)

// Config represents dispatcher service configuration
type Config struct {
	// WorkerCount is the number of workers processing turns
	WorkerCount int

	// MaxBusyRetries is how many times a busy turn is requeued before it is
	// finished with a busy reply
	MaxBusyRetries int

	// BusyRetryDelay is the delay before a busy turn is redelivered
	BusyRetryDelay time.Duration
}

// DefaultConfig returns the default dispatcher configuration
func DefaultConfig() Config {
	return Config{
		WorkerCount:    8,
		MaxBusyRetries: 3,
		BusyRetryDelay: 100 * time.Millisecond,
	}
}

// Handler runs one turn to completion; *controller.Service satisfies it.
type Handler interface {
	Handle(ctx context.Context, aTurn *turn.Turn) (*turn.Reply, error)
}

// Delivery is the queue payload: a reference to the in-flight turn future.
// Turn futures carry channel state, so the queue moves the pointer, never a
// copy.
type Delivery struct {
	Turn *turn.Turn
}

// Service distributes inbound turns across workers.
type Service struct {
	config  Config
	handler Handler
	queue   messaging.Queue[Delivery]

	workers      []*worker
	workerWg     sync.WaitGroup
	shutdownCh   chan struct{}
	shutdownOnce sync.Once
}

type worker struct {
	id       int
	service  *Service
	ctx      context.Context
	cancelFn context.CancelFunc
}

// New creates a dispatcher service
func New(options ...Option) (*Service, error) {
	s := &Service{
		config:     DefaultConfig(),
		shutdownCh: make(chan struct{}),
	}
	for _, opt := range options {
		opt(s)
	}
	if s.handler == nil {
		return nil, fmt.Errorf("turn handler is required")
	}
	if s.queue == nil {
		s.queue = memory.NewQueue[Delivery](memory.Config{
			MaxRetries: s.config.MaxBusyRetries,
			RetryDelay: s.config.BusyRetryDelay,
			Buffer:     memory.DefaultConfig().Buffer,
		})
	}
	return s, nil
}

// Submit queues a turn and returns its reply future.
func (s *Service) Submit(ctx context.Context, aTurn *turn.Turn) (turn.Wait, error) {
	if aTurn == nil {
		return nil, fmt.Errorf("turn was nil")
	}
	if err := aTurn.Key.Validate(); err != nil {
		return nil, err
	}
	if err := s.queue.Publish(ctx, &Delivery{Turn: aTurn}); err != nil {
		return nil, fmt.Errorf("failed to queue turn %v: %w", aTurn.ID, err)
	}
	return aTurn.Wait(), nil
}

// Start begins the turn dispatch service
func (s *Service) Start(ctx context.Context) error {
	for i := 0; i < s.config.WorkerCount; i++ {
		workerCtx, cancel := context.WithCancel(ctx)
		worker := &worker{
			id:       i,
			service:  s,
			ctx:      workerCtx,
			cancelFn: cancel,
		}
		s.workers = append(s.workers, worker)
		s.workerWg.Add(1)
		go worker.run()
	}
	return nil
}

// run processes turns from the queue
func (w *worker) run() {
	defer w.service.workerWg.Done()

	for {
		// Block until we either get a message or the context is cancelled.
		msg, err := w.service.queue.Consume(w.ctx)
		if err != nil {
			// Context was cancelled – graceful shutdown.
			if errors.Is(err, context.Canceled) {
				return
			}
			// Transient error (e.g. queue closed); back off a bit.
			time.Sleep(100 * time.Millisecond)
			continue
		}
		if msg == nil {
			continue
		}
		if pErr := w.service.processMessage(w.ctx, msg); pErr != nil {
			log.Printf("worker %d: failed to process turn: %v", w.id, pErr)
		}
	}
}

// processMessage drives a single queued turn through the handler. A busy
// rejection is requeued until the retry budget runs out; every other outcome
// resolves the turn future.
func (s *Service) processMessage(ctx context.Context, message messaging.Message[Delivery]) error {
	aTurn := message.T().Turn
	if aTurn == nil {
		return message.Ack()
	}
	aTurn.Start()

	reply, err := s.handler.Handle(ctx, aTurn)
	if err != nil && store.IsBusy(err) {
		if aTurn.Attempts < s.config.MaxBusyRetries {
			aTurn.Attempts++
			return message.Nack(err)
		}
		reply = &turn.Reply{
			Text:  "The session is busy with another request; please try again shortly.",
			Final: true,
		}
		err = nil
	}
	aTurn.Finish(reply, err)
	return message.Ack()
}

// Shutdown stops the dispatcher workers
func (s *Service) Shutdown() {
	s.shutdownOnce.Do(func() {
		close(s.shutdownCh)
		for _, worker := range s.workers {
			worker.cancelFn()
		}
		s.workerWg.Wait()
	})
}
