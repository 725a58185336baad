// Package fs implements a file spool messaging.Queue on top of afs. A message
// lives as a JSON file moving between pending, processing and dlq folders, so
// queued work survives restarts and can be inspected with plain file tools.
package fs

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"path"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/viant/afs"
	"github.com/viant/afs/file"
	"github.com/viant/afs/storage"
	"github.com/viant/opsly/internal/clock"
	"github.com/viant/opsly/internal/idgen"
	"github.com/viant/opsly/service/messaging"
)

// Config holds the spool queue settings.
type Config struct {
	BaseURL    string
	MaxRetries int
}

// DefaultConfig returns the standard spool configuration.
func DefaultConfig() Config {
	return Config{
		BaseURL:    "/tmp/opsly/queue",
		MaxRetries: 3,
	}
}

// Message is one spooled delivery.
type Message[T any] struct {
	ID        string    `json:"id"`
	Data      T         `json:"data"`
	Error     string    `json:"error,omitempty"`
	Retries   int       `json:"retries"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`

	queue   *Queue[T]
	name    string
	mu      sync.Mutex
	settled bool
}

// T returns the message payload.
func (m *Message[T]) T() *T {
	return &m.Data
}

// Ack removes the processed message from the spool.
func (m *Message[T]) Ack() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.settled {
		return fmt.Errorf("message %v already settled", m.ID)
	}
	m.settled = true
	return m.queue.remove(context.Background(), m)
}

// Nack returns the message to pending while under the retry limit, otherwise
// moves it to the dead letter folder.
func (m *Message[T]) Nack(err error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.settled {
		return fmt.Errorf("message %v already settled", m.ID)
	}
	m.settled = true
	if err != nil {
		m.Error = err.Error()
	}
	m.Retries++
	m.UpdatedAt = clock.Now()
	return m.queue.requeue(context.Background(), m)
}

// Queue implements an afs backed messaging.Queue.
type Queue[T any] struct {
	fs            afs.Service
	config        Config
	pendingURL    string
	processingURL string
	dlqURL        string
	mu            sync.Mutex
}

// NewQueue creates a spool queue rooted at config.BaseURL.
func NewQueue[T any](fs afs.Service, config Config) (*Queue[T], error) {
	if config.BaseURL == "" {
		return nil, fmt.Errorf("base URL cannot be empty")
	}
	q := &Queue[T]{
		fs:            fs,
		config:        config,
		pendingURL:    path.Join(config.BaseURL, "pending"),
		processingURL: path.Join(config.BaseURL, "processing"),
		dlqURL:        path.Join(config.BaseURL, "dlq"),
	}
	ctx := context.Background()
	for _, dir := range []string{q.pendingURL, q.processingURL, q.dlqURL} {
		if exists, _ := fs.Exists(ctx, dir); exists {
			continue
		}
		if err := fs.Create(ctx, dir, file.DefaultDirOsMode, true); err != nil {
			return nil, fmt.Errorf("failed to create spool folder %s: %w", dir, err)
		}
	}
	return q, nil
}

// Publish spools a new payload into the pending folder.
func (q *Queue[T]) Publish(ctx context.Context, t *T) error {
	now := clock.Now()
	message := &Message[T]{
		ID:        idgen.New(),
		Data:      *t,
		CreatedAt: now,
		UpdatedAt: now,
	}
	data, err := json.Marshal(message)
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}
	name := fmt.Sprintf("%020d-%s.json", now.UnixNano(), message.ID)
	return q.upload(ctx, path.Join(q.pendingURL, name), data)
}

// Consume takes the oldest pending message and moves it to processing.
// It returns nil when the spool is empty.
func (q *Queue[T]) Consume(ctx context.Context) (messaging.Message[T], error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	object, err := q.oldestPending(ctx)
	if err != nil || object == nil {
		return nil, err
	}
	message, err := q.read(ctx, object.URL())
	if err != nil {
		// spool entry is unreadable, park it in dlq
		_ = q.fs.Move(ctx, object.URL(), path.Join(q.dlqURL, "invalid-"+object.Name()))
		return nil, err
	}
	message.queue = q
	message.name = object.Name()
	message.UpdatedAt = clock.Now()

	data, err := json.Marshal(message)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal message: %w", err)
	}
	if err = q.upload(ctx, path.Join(q.processingURL, object.Name()), data); err != nil {
		return nil, fmt.Errorf("failed to move message to processing: %w", err)
	}
	if err = q.fs.Delete(ctx, object.URL()); err != nil {
		return nil, fmt.Errorf("failed to remove pending message: %w", err)
	}
	return message, nil
}

func (q *Queue[T]) oldestPending(ctx context.Context) (storage.Object, error) {
	objects, err := q.fs.List(ctx, q.pendingURL)
	if err != nil {
		return nil, fmt.Errorf("failed to list pending messages: %w", err)
	}
	var pending []storage.Object
	for _, object := range objects {
		if !object.IsDir() && strings.HasSuffix(object.Name(), ".json") {
			pending = append(pending, object)
		}
	}
	if len(pending) == 0 {
		return nil, nil
	}
	sort.Slice(pending, func(i, j int) bool {
		return pending[i].Name() < pending[j].Name()
	})
	return pending[0], nil
}

func (q *Queue[T]) remove(ctx context.Context, m *Message[T]) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	processing := path.Join(q.processingURL, m.name)
	if exists, _ := q.fs.Exists(ctx, processing); exists {
		return q.fs.Delete(ctx, processing)
	}
	return nil
}

func (q *Queue[T]) requeue(ctx context.Context, m *Message[T]) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	data, err := json.Marshal(m)
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}
	target := path.Join(q.pendingURL, m.name)
	if m.Retries > q.config.MaxRetries {
		target = path.Join(q.dlqURL, m.name)
	}
	if err = q.upload(ctx, target, data); err != nil {
		return err
	}
	processing := path.Join(q.processingURL, m.name)
	if exists, _ := q.fs.Exists(ctx, processing); exists {
		return q.fs.Delete(ctx, processing)
	}
	return nil
}

func (q *Queue[T]) upload(ctx context.Context, URL string, data []byte) error {
	return q.fs.Upload(ctx, URL, file.DefaultFileOsMode, bytes.NewBuffer(data))
}

func (q *Queue[T]) read(ctx context.Context, URL string) (*Message[T], error) {
	data, err := q.fs.DownloadWithURL(ctx, URL)
	if err != nil {
		return nil, fmt.Errorf("failed to read message %s: %w", URL, err)
	}
	message := &Message[T]{}
	if err = json.Unmarshal(data, message); err != nil {
		return nil, fmt.Errorf("failed to decode message %s: %w", URL, err)
	}
	return message, nil
}

// ensure Queue implements messaging.Queue interface
var _ messaging.Queue[any] = (*Queue[any])(nil)
