package localcache

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/mrlokans/tastier/internal/entities"
	"github.com/mrlokans/tastier/internal/logger"
)

// Cache stores FavoriteRecipe snapshots on a Backend. When the backend
// returns an error the cache switches to an in-memory copy for the rest of
// the session, so callers keep a working list.
type Cache struct {
	log *zap.Logger

	mu       sync.Mutex
	backend  Backend
	degraded bool
}

func NewCache(backend Backend, log *zap.Logger) *Cache {
	return &Cache{backend: backend, log: logger.OrNop(log).Named("localcache")}
}

// Degraded reports whether the cache has fallen back to memory.
func (c *Cache) Degraded() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.degraded
}

// Put stores r under r.ID. It reports whether the stored snapshot changed;
// writing an identical snapshot is skipped.
func (c *Cache) Put(ctx context.Context, r entities.FavoriteRecipe) (bool, error) {
	blob, err := json.Marshal(r)
	if err != nil {
		return false, fmt.Errorf("encode %s: %w", r.ID, err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	existing, err := c.backend.Get(ctx, r.ID)
	switch {
	case err == nil && bytes.Equal(existing, blob):
		return false, nil
	case err != nil && !errors.Is(err, ErrNotFound):
		if !c.degradeLocked(ctx, err) {
			return false, err
		}
	}

	if err := c.backend.Upsert(ctx, r.ID, blob); err != nil {
		if !c.degradeLocked(ctx, err) {
			return false, err
		}
		if err := c.backend.Upsert(ctx, r.ID, blob); err != nil {
			return false, err
		}
	}
	return true, nil
}

// Get returns the snapshot stored under id.
func (c *Cache) Get(ctx context.Context, id string) (entities.FavoriteRecipe, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	blob, err := c.backend.Get(ctx, id)
	if err != nil {
		return entities.FavoriteRecipe{}, err
	}
	var r entities.FavoriteRecipe
	if err := json.Unmarshal(blob, &r); err != nil {
		return entities.FavoriteRecipe{}, fmt.Errorf("decode %s: %w", id, err)
	}
	return r, nil
}

// Remove deletes the snapshot stored under id.
func (c *Cache) Remove(ctx context.Context, id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.backend.Delete(ctx, id); err != nil {
		if !c.degradeLocked(ctx, err) {
			return err
		}
		return c.backend.Delete(ctx, id)
	}
	return nil
}

// Keys returns the ids of every stored snapshot.
func (c *Cache) Keys(ctx context.Context) ([]string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	recs, err := c.selectAllLocked(ctx)
	if err != nil {
		return nil, err
	}
	keys := make([]string, 0, len(recs))
	for _, r := range recs {
		keys = append(keys, r.ID)
	}
	return keys, nil
}

// Load decodes every stored snapshot. Rows that fail to decode are logged
// and skipped.
func (c *Cache) Load(ctx context.Context) ([]entities.FavoriteRecipe, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	recs, err := c.selectAllLocked(ctx)
	if err != nil {
		return nil, err
	}

	out := make([]entities.FavoriteRecipe, 0, len(recs))
	for _, rec := range recs {
		var r entities.FavoriteRecipe
		if err := json.Unmarshal([]byte(rec.Data), &r); err != nil {
			c.log.Warn("skipping unreadable cache entry", zap.String("id", rec.ID), zap.Error(err))
			continue
		}
		out = append(out, r)
	}
	return out, nil
}

func (c *Cache) selectAllLocked(ctx context.Context) ([]Record, error) {
	recs, err := c.backend.SelectAll(ctx)
	if err == nil {
		return recs, nil
	}
	if !c.degradeLocked(ctx, err) {
		return nil, err
	}
	return c.backend.SelectAll(ctx)
}

// degradeLocked swaps the backend for memory after a storage error. It
// returns false when already degraded or when the context is done, in which
// case the caller should surface err.
func (c *Cache) degradeLocked(ctx context.Context, cause error) bool {
	if c.degraded || ctx.Err() != nil {
		return false
	}

	mem := NewMemory()
	// Carry over whatever is still readable.
	if recs, err := c.backend.SelectAll(ctx); err == nil {
		for _, r := range recs {
			_ = mem.Upsert(ctx, r.ID, []byte(r.Data))
		}
	}

	c.backend = mem
	c.degraded = true
	c.log.Error("local cache unavailable, keeping favorites in memory for this session", zap.Error(cause))
	return true
}
