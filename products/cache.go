package products

import (
	"context"
	"encoding/json"
	"time"

	"papeleria/globals"
	"papeleria/models"
)

const (
	listCacheKey = "products"
	listCacheTTL = 5 * time.Minute
)

type Cache interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string, ttl time.Duration) error
	Del(ctx context.Context, keys ...string) error
}

// CachedStore serves List from the cache and drops the cached list on every
// write. Cache failures fall back to the underlying store.
type CachedStore struct {
	Store
	cache Cache
}

func NewCachedStore(store Store, cache Cache) *CachedStore {
	return &CachedStore{Store: store, cache: cache}
}

func (c *CachedStore) List(ctx context.Context) ([]models.Product, error) {
	if cached, ok, err := c.cache.Get(ctx, listCacheKey); err == nil && ok {
		var list []models.Product
		if json.Unmarshal([]byte(cached), &list) == nil {
			return list, nil
		}
	} else if err != nil {
		globals.Log.Warn().Err(err).Msg("product cache get")
	}

	list, err := c.Store.List(ctx)
	if err != nil {
		return nil, err
	}
	if data, err := json.Marshal(list); err == nil {
		if err := c.cache.Set(ctx, listCacheKey, string(data), listCacheTTL); err != nil {
			globals.Log.Warn().Err(err).Msg("product cache set")
		}
	}
	return list, nil
}

func (c *CachedStore) Create(ctx context.Context, p models.Product) error {
	defer c.invalidate(ctx)
	return c.Store.Create(ctx, p)
}

func (c *CachedStore) Replace(ctx context.Context, p models.Product) error {
	defer c.invalidate(ctx)
	return c.Store.Replace(ctx, p)
}

func (c *CachedStore) Delete(ctx context.Context, id string) error {
	defer c.invalidate(ctx)
	return c.Store.Delete(ctx, id)
}

func (c *CachedStore) invalidate(ctx context.Context) {
	if err := c.cache.Del(ctx, listCacheKey); err != nil {
		globals.Log.Warn().Err(err).Msg("product cache invalidate")
	}
}
