package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/viant/opsly/service/dao"
)

type record struct {
	ID   string
	Note string
}

func TestMemoryStore(t *testing.T) {
	store := NewMemoryStore[string, record](func(r *record) string { return r.ID })
	ctx := context.Background()

	first := &record{ID: "r1", Note: "one"}
	assert.NoError(t, store.Save(ctx, first))

	loaded, err := store.Load(ctx, "r1")
	assert.NoError(t, err)
	assert.Equal(t, first, loaded)

	_, err = store.Load(ctx, "missing")
	assert.ErrorIs(t, err, dao.ErrNotFound)

	assert.ErrorIs(t, store.Save(ctx, nil), dao.ErrNilEntity)

	assert.NoError(t, store.Save(ctx, &record{ID: "r2", Note: "two"}))
	list, err := store.List(ctx)
	assert.NoError(t, err)
	assert.Len(t, list, 2)

	assert.NoError(t, store.Delete(ctx, "r1"))
	_, err = store.Load(ctx, "r1")
	assert.ErrorIs(t, err, dao.ErrNotFound)

	assert.NoError(t, store.Delete(ctx, "r1"))
}
