package store_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/viant/opsly/model"
	"github.com/viant/opsly/model/session"
	daomem "github.com/viant/opsly/service/dao/session/memory"
	"github.com/viant/opsly/service/prompt"
	memprompt "github.com/viant/opsly/service/prompt/memory"
	"github.com/viant/opsly/service/store"
)

func TestService_CheckoutRoundTrip(t *testing.T) {
	ctx := context.Background()
	svc := store.New(daomem.New(), store.WithDefaultHost("bash://localhost/"), store.WithHistoryLimit(3))

	key := session.Key{UserID: "alice", ChannelID: "dm"}
	sess, err := svc.Checkout(ctx, key)
	require.NoError(t, err)
	assert.EqualValues(t, "bash://localhost/", sess.Host)
	assert.EqualValues(t, session.StatusIdle, sess.Status)

	sess.WorkingDirectory = "/srv/app"
	sess.Append(&model.Step{ID: "s1", Kind: model.KindShellCommand, Payload: &model.ShellCommand{Command: "ls"}})
	require.NoError(t, svc.Release(ctx, key, sess))

	restored, err := svc.Checkout(ctx, key)
	require.NoError(t, err)
	assert.EqualValues(t, "/srv/app", restored.WorkingDirectory)
	if assert.Len(t, restored.History, 1) {
		assert.EqualValues(t, "ls", restored.History[0].Shell().Command)
	}
	require.NoError(t, svc.Release(ctx, key, restored))

	_, err = svc.Checkout(ctx, session.Key{UserID: "alice"})
	assert.Error(t, err)
}

func TestService_BusyRejection(t *testing.T) {
	ctx := context.Background()
	svc := store.New(daomem.New())
	key := session.Key{UserID: "alice", ChannelID: "dm"}

	sess, err := svc.Checkout(ctx, key)
	require.NoError(t, err)

	_, err = svc.Checkout(ctx, key)
	var busy *store.SessionBusyError
	require.ErrorAs(t, err, &busy)
	assert.EqualValues(t, key, busy.Key)
	assert.True(t, store.IsBusy(err))

	// other keys are unaffected
	other := session.Key{UserID: "bob", ChannelID: "dm"}
	otherSess, err := svc.Checkout(ctx, other)
	require.NoError(t, err)
	require.NoError(t, svc.Release(ctx, other, otherSess))

	require.NoError(t, svc.Release(ctx, key, sess))
	sess, err = svc.Checkout(ctx, key)
	require.NoError(t, err)
	require.NoError(t, svc.Release(ctx, key, sess))
}

func TestService_ConcurrentCheckout(t *testing.T) {
	ctx := context.Background()
	svc := store.New(daomem.New())
	key := session.Key{UserID: "carol", ChannelID: "ops"}

	const attempts = 16
	var wg sync.WaitGroup
	var mux sync.Mutex
	granted, busy := 0, 0

	wg.Add(attempts)
	for i := 0; i < attempts; i++ {
		go func() {
			defer wg.Done()
			if _, err := svc.Checkout(ctx, key); err == nil {
				mux.Lock()
				granted++
				mux.Unlock()
				return
			} else if store.IsBusy(err) {
				mux.Lock()
				busy++
				mux.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.EqualValues(t, 1, granted)
	assert.EqualValues(t, attempts-1, busy)
}

func TestService_ReleaseWithoutSave(t *testing.T) {
	ctx := context.Background()
	svc := store.New(daomem.New())
	key := session.Key{UserID: "dave", ChannelID: "dm"}

	sess, err := svc.Checkout(ctx, key)
	require.NoError(t, err)
	sess.WorkingDirectory = "/tmp/scratch"
	require.NoError(t, svc.Release(ctx, key, nil))
	assert.False(t, svc.Leased(key))

	again, err := svc.Checkout(ctx, key)
	require.NoError(t, err)
	assert.Empty(t, again.WorkingDirectory)
	require.NoError(t, svc.Release(ctx, key, nil))
}

func TestService_CancelRegistry(t *testing.T) {
	ctx := context.Background()
	svc := store.New(daomem.New())
	key := session.Key{UserID: "erin", ChannelID: "dm"}

	_, err := svc.Checkout(ctx, key)
	require.NoError(t, err)

	turnCtx, cancel := context.WithCancel(ctx)
	svc.RegisterCancel(key, cancel)

	assert.True(t, svc.Cancel(key))
	<-turnCtx.Done()
	assert.ErrorIs(t, turnCtx.Err(), context.Canceled)
	assert.False(t, svc.Cancel(key))

	require.NoError(t, svc.Release(ctx, key, nil))
	assert.False(t, svc.Cancel(key))
}

func TestService_Reset(t *testing.T) {
	ctx := context.Background()
	questions := memprompt.New()
	svc := store.New(daomem.New(), store.WithPrompt(questions))
	key := session.Key{UserID: "frank", ChannelID: "dm"}

	sess, err := svc.Checkout(ctx, key)
	require.NoError(t, err)
	sess.WorkingDirectory = "/srv/app"
	sess.Suspend(&session.Pending{ID: "q1", Origin: session.OriginClarify, Question: "which env?"})
	require.NoError(t, questions.Ask(ctx, &prompt.Question{ID: "q1", SessionKey: key.String(), Text: "which env?"}))

	// a leased key cannot be reset yet
	err = svc.Reset(ctx, key)
	assert.True(t, store.IsBusy(err))

	require.NoError(t, svc.Release(ctx, key, sess))
	require.NoError(t, svc.Reset(ctx, key))

	pending, err := questions.ListPending(ctx)
	require.NoError(t, err)
	assert.Empty(t, pending)

	fresh, err := svc.Checkout(ctx, key)
	require.NoError(t, err)
	assert.Empty(t, fresh.WorkingDirectory)
	assert.Nil(t, fresh.Pending)
	require.NoError(t, svc.Release(ctx, key, nil))

	// resetting an absent key is a no-op
	require.NoError(t, svc.Reset(ctx, session.Key{UserID: "ghost", ChannelID: "dm"}))
}

func TestService_EvictIdle(t *testing.T) {
	ctx := context.Background()
	snapshots := daomem.New()
	questions := memprompt.New()
	svc := store.New(snapshots, store.WithPrompt(questions))

	stale := session.Key{UserID: "old", ChannelID: "dm"}
	fresh := session.Key{UserID: "new", ChannelID: "dm"}
	leased := session.Key{UserID: "busy", ChannelID: "dm"}

	// stale: inactive for two hours with a parked question
	sess, err := svc.Checkout(ctx, stale)
	require.NoError(t, err)
	sess.LastActiveAt = time.Now().Add(-2 * time.Hour)
	require.NoError(t, svc.Release(ctx, stale, sess))
	require.NoError(t, questions.Ask(ctx, &prompt.Question{SessionKey: stale.String(), Text: "still there?"}))

	// fresh: recently active
	sess, err = svc.Checkout(ctx, fresh)
	require.NoError(t, err)
	require.NoError(t, svc.Release(ctx, fresh, sess))

	// leased: stale snapshot but currently checked out
	sess, err = svc.Checkout(ctx, leased)
	require.NoError(t, err)
	aged := sess.Clone()
	aged.LastActiveAt = time.Now().Add(-2 * time.Hour)
	require.NoError(t, snapshots.Save(ctx, aged))

	evicted, err := svc.EvictIdle(ctx, 0)
	require.NoError(t, err)
	assert.EqualValues(t, 0, evicted)

	evicted, err = svc.EvictIdle(ctx, time.Hour)
	require.NoError(t, err)
	assert.EqualValues(t, 1, evicted)

	pending, err := questions.ListPending(ctx)
	require.NoError(t, err)
	assert.Empty(t, pending)

	remaining, err := snapshots.List(ctx)
	require.NoError(t, err)
	require.Len(t, remaining, 2)
	for _, kept := range remaining {
		assert.NotEqualValues(t, stale, kept.Key)
	}
}

func TestSweeper(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	snapshots := daomem.New()
	svc := store.New(snapshots)
	key := session.Key{UserID: "old", ChannelID: "dm"}
	sess, err := svc.Checkout(ctx, key)
	require.NoError(t, err)
	sess.LastActiveAt = time.Now().Add(-2 * time.Hour)
	require.NoError(t, svc.Release(ctx, key, sess))

	sweeper := store.NewSweeper(svc, store.SweeperConfig{SweepInterval: 5 * time.Millisecond, IdleTimeout: time.Hour})
	done := make(chan error, 1)
	go func() { done <- sweeper.Start(ctx) }()

	deadline := time.After(time.Second)
	for {
		remaining, listErr := snapshots.List(ctx)
		require.NoError(t, listErr)
		if len(remaining) == 0 {
			break
		}
		select {
		case <-deadline:
			t.Fatal("sweeper did not evict the idle session")
		case <-time.After(5 * time.Millisecond):
		}
	}

	sweeper.Shutdown()
	sweeper.Shutdown()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("sweeper did not stop")
	}
}
