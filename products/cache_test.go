package products

import (
	"context"
	"errors"
	"testing"
	"time"

	"papeleria/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mapCache struct {
	data map[string]string
	gets int
	down bool
}

func (m *mapCache) Get(_ context.Context, key string) (string, bool, error) {
	m.gets++
	if m.down {
		return "", false, errors.New("redis down")
	}
	v, ok := m.data[key]
	return v, ok, nil
}

func (m *mapCache) Set(_ context.Context, key, value string, _ time.Duration) error {
	if m.down {
		return errors.New("redis down")
	}
	m.data[key] = value
	return nil
}

func (m *mapCache) Del(_ context.Context, keys ...string) error {
	for _, k := range keys {
		delete(m.data, k)
	}
	return nil
}

type countingStore struct {
	*MemoryStore
	lists int
}

func (c *countingStore) List(ctx context.Context) ([]models.Product, error) {
	c.lists++
	return c.MemoryStore.List(ctx)
}

func TestCachedStoreReadThrough(t *testing.T) {
	inner := &countingStore{MemoryStore: NewMemoryStore(models.Product{ProductID: "p1", Name: "Cuaderno"})}
	cache := &mapCache{data: map[string]string{}}
	s := NewCachedStore(inner, cache)
	ctx := t.Context()

	for i := 0; i < 3; i++ {
		list, err := s.List(ctx)
		require.NoError(t, err)
		require.Len(t, list, 1)
	}
	assert.Equal(t, 1, inner.lists)

	require.NoError(t, s.Create(ctx, models.Product{ProductID: "p2", Name: "Lápiz"}))
	list, err := s.List(ctx)
	require.NoError(t, err)
	assert.Len(t, list, 2, "write invalidates the cached list")
	assert.Equal(t, 2, inner.lists)
}

func TestCachedStoreFallsBackWhenCacheDown(t *testing.T) {
	inner := &countingStore{MemoryStore: NewMemoryStore(models.Product{ProductID: "p1"})}
	s := NewCachedStore(inner, &mapCache{data: map[string]string{}, down: true})

	list, err := s.List(t.Context())
	require.NoError(t, err)
	assert.Len(t, list, 1)
}
