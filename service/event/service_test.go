package event

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/viant/opsly/service/messaging"
)

type stepNote struct {
	Name string `json:"name"`
}

func TestService_UntypedPublish(t *testing.T) {
	service, err := New(messaging.VendorMemory)
	require.NoError(t, err)
	defer service.Shutdown()

	var mu sync.Mutex
	var seen []string
	service.SetListener(func(e *Event[any]) {
		mu.Lock()
		seen = append(seen, e.Context.EventType)
		mu.Unlock()
	})

	err = service.Publish(context.Background(), NewEvent[any](&Context{EventType: "stepStarted"}, nil))
	require.NoError(t, err)

	assert.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(seen) == 1 && seen[0] == "stepStarted"
	}, time.Second, 5*time.Millisecond)
}

func TestService_TypedPublishMirrorsToAny(t *testing.T) {
	service, err := New(messaging.VendorMemory)
	require.NoError(t, err)
	defer service.Shutdown()

	var mu sync.Mutex
	var typed, all int
	require.NoError(t, SetListenerOf[stepNote](service, func(e *Event[stepNote]) {
		mu.Lock()
		typed++
		mu.Unlock()
	}))
	service.SetListener(func(e *Event[any]) {
		mu.Lock()
		all++
		mu.Unlock()
	})

	publisher, err := PublisherOf[stepNote](service)
	require.NoError(t, err)
	require.NoError(t, publisher.Publish(context.Background(), NewEvent(&Context{EventType: "note"}, stepNote{Name: "n1"})))

	assert.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return typed == 1 && all == 1
	}, time.Second, 5*time.Millisecond)
}

func TestService_ListenerReplaced(t *testing.T) {
	service, err := New(messaging.VendorMemory)
	require.NoError(t, err)
	defer service.Shutdown()

	var mu sync.Mutex
	var got []string
	service.SetListener(func(*Event[any]) {})
	service.SetListener(func(e *Event[any]) {
		mu.Lock()
		got = append(got, e.Context.EventType)
		mu.Unlock()
	})

	for i := 0; i < 2; i++ {
		require.NoError(t, service.Publish(context.Background(), NewEvent[any](&Context{EventType: "replaced"}, nil)))
	}
	assert.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(got) > 0 && got[0] == "replaced"
	}, time.Second, 5*time.Millisecond)
}

func TestNew_FsVendorRequiresConfig(t *testing.T) {
	_, err := New(messaging.VendorFs)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "fsNewQueueConfig")
}
