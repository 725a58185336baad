package memory

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/viant/opsly/model"
	"github.com/viant/opsly/model/session"
	"github.com/viant/opsly/service/dao"
)

func TestService_CopySemantics(t *testing.T) {
	service := New()
	ctx := context.Background()
	key := session.Key{UserID: "alice", ChannelID: "ops"}

	sess := session.New(key, "", 10)
	sess.WorkingDirectory = "/tmp"
	require.NoError(t, service.Save(ctx, sess))

	// mutating the original must not leak into the stored copy
	sess.WorkingDirectory = "/opt"
	sess.SetEnv("X", "1")

	loaded, err := service.Load(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, "/tmp", loaded.WorkingDirectory)
	assert.Empty(t, loaded.Env)

	// and mutating a loaded copy must not change the store
	loaded.Append(&model.Step{ID: "s1", Kind: model.KindShellCommand})
	again, err := service.Load(ctx, key)
	require.NoError(t, err)
	assert.Empty(t, again.History)
}

func TestService_Errors(t *testing.T) {
	service := New()
	ctx := context.Background()

	assert.True(t, errors.Is(service.Save(ctx, nil), dao.ErrNilEntity))
	assert.True(t, errors.Is(service.Save(ctx, &session.Session{}), dao.ErrInvalidKey))

	_, err := service.Load(ctx, session.Key{UserID: "ghost", ChannelID: "ops"})
	assert.True(t, errors.Is(err, dao.ErrNotFound))
	err = service.Delete(ctx, session.Key{UserID: "ghost", ChannelID: "ops"})
	assert.True(t, errors.Is(err, dao.ErrNotFound))
}

func TestService_ListByStatus(t *testing.T) {
	service := New()
	ctx := context.Background()

	first := session.New(session.Key{UserID: "alice", ChannelID: "ops"}, "", 10)
	second := session.New(session.Key{UserID: "bob", ChannelID: "ops"}, "", 10)
	second.Status = session.StatusExecuting
	require.NoError(t, service.Save(ctx, first))
	require.NoError(t, service.Save(ctx, second))

	executing, err := service.List(ctx, dao.NewParameter("Status", session.StatusExecuting))
	require.NoError(t, err)
	require.Len(t, executing, 1)
	assert.Equal(t, "bob", executing[0].Key.UserID)
}
