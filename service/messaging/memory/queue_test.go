package memory

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type testEvent struct {
	SessionKey string
	Step       string
	Sequence   int
}

func TestQueue(t *testing.T) {
	config := DefaultConfig()
	config.RetryDelay = 10 * time.Millisecond
	queue := NewQueue[testEvent](config)

	ctx := context.Background()
	payload := testEvent{SessionKey: "alice@ops", Step: "ls -la", Sequence: 1}

	err := queue.Publish(ctx, &payload)
	assert.NoError(t, err)
	assert.Equal(t, 1, queue.Size())

	message, err := queue.Consume(ctx)
	assert.NoError(t, err)
	assert.NotNil(t, message)
	assert.Equal(t, 0, queue.Size())
	assert.EqualValues(t, payload, *message.T())

	err = message.Ack()
	assert.NoError(t, err)

	// settling twice must fail
	err = message.Ack()
	assert.Error(t, err)
	err = message.Nack(nil)
	assert.Error(t, err)
}

func TestQueueRedelivery(t *testing.T) {
	config := DefaultConfig()
	config.MaxRetries = 1
	config.RetryDelay = 10 * time.Millisecond
	queue := NewQueue[testEvent](config)

	ctx := context.Background()
	payload := testEvent{SessionKey: "bob@ops", Step: "make test"}
	err := queue.Publish(ctx, &payload)
	assert.NoError(t, err)

	message, err := queue.Consume(ctx)
	assert.NoError(t, err)
	err = message.Nack(fmt.Errorf("session busy"))
	assert.NoError(t, err)

	// redelivered copy arrives after the retry delay
	waitCtx, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()
	message, err = queue.Consume(waitCtx)
	assert.NoError(t, err)
	assert.NotNil(t, message)

	// second nack exceeds the limit and dead-letters
	err = message.Nack(fmt.Errorf("session busy"))
	assert.NoError(t, err)
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, 0, queue.Size())
	assert.Equal(t, 1, queue.DLQSize())
}

func TestQueueConcurrency(t *testing.T) {
	config := DefaultConfig()
	config.RetryDelay = 10 * time.Millisecond
	queue := NewQueue[testEvent](config)

	ctx := context.Background()
	producers := 8
	perProducer := 10

	var wg sync.WaitGroup
	wg.Add(producers * 2)

	var consumed int
	var mu sync.Mutex

	for i := 0; i < producers; i++ {
		go func() {
			defer wg.Done()
			for j := 0; j < perProducer; j++ {
				message, err := queue.Consume(ctx)
				if err != nil {
					t.Errorf("consume: %v", err)
					continue
				}
				assert.NoError(t, message.Ack())
				mu.Lock()
				consumed++
				mu.Unlock()
			}
		}()
	}

	for i := 0; i < producers; i++ {
		go func(producer int) {
			defer wg.Done()
			for j := 0; j < perProducer; j++ {
				payload := testEvent{
					SessionKey: fmt.Sprintf("user%d@ops", producer),
					Sequence:   j,
				}
				if err := queue.Publish(ctx, &payload); err != nil {
					t.Errorf("publish: %v", err)
				}
			}
		}(i)
	}

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("test timed out")
	}

	assert.Equal(t, producers*perProducer, consumed)
	assert.Equal(t, 0, queue.Size())
}

func TestQueueContextCancellation(t *testing.T) {
	queue := NewQueue[testEvent](DefaultConfig())

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := queue.Consume(ctx)
	assert.Error(t, err)

	// queue stays usable after a cancelled consume
	payload := testEvent{SessionKey: "carol@ops"}
	err = queue.Publish(context.Background(), &payload)
	assert.NoError(t, err)
	message, err := queue.Consume(context.Background())
	assert.NoError(t, err)
	assert.NotNil(t, message)
}
