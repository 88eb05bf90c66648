package favsync

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mrlokans/tastier/internal/connectivity"
	"github.com/mrlokans/tastier/internal/entities"
	"github.com/mrlokans/tastier/internal/images"
	"github.com/mrlokans/tastier/internal/localcache"
	"github.com/mrlokans/tastier/internal/remote"
	"github.com/mrlokans/tastier/internal/remote/docstore"
)

const waitFor = 5 * time.Second

// countingCache records writes that actually changed the local store.
type countingCache struct {
	*localcache.Cache

	mu      sync.Mutex
	changes int
}

func (c *countingCache) Put(ctx context.Context, r entities.FavoriteRecipe) (bool, error) {
	changed, err := c.Cache.Put(ctx, r)
	if changed {
		c.mu.Lock()
		c.changes++
		c.mu.Unlock()
	}
	return changed, err
}

func (c *countingCache) Remove(ctx context.Context, id string) error {
	c.mu.Lock()
	c.changes++
	c.mu.Unlock()
	return c.Cache.Remove(ctx, id)
}

func (c *countingCache) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.changes
}

type harness struct {
	t      *testing.T
	ctx    context.Context
	store  *docstore.Store
	remote remote.Store
	mon    *connectivity.Monitor
	cache  *countingCache
	images *images.Manager
	fs     afero.Fs
	pool   *images.Pool
	engine *Engine
	url    string
}

type harnessOption func(*harness)

func withRemote(wrap func(*docstore.Store) remote.Store) harnessOption {
	return func(h *harness) { h.remote = wrap(h.store) }
}

func startOffline() harnessOption {
	return func(h *harness) { h.mon.Set(false) }
}

func withCached(items ...entities.FavoriteRecipe) harnessOption {
	return func(h *harness) {
		for _, it := range items {
			_, err := h.cache.Put(h.ctx, it)
			require.NoError(h.t, err)
		}
	}
}

// withRemoteFavorites marks recipeIDs as favorites of userID before the
// engine starts.
func withRemoteFavorites(userID string, recipeIDs ...string) harnessOption {
	return func(h *harness) {
		for _, id := range recipeIDs {
			_, err := h.store.ToggleFavorite(h.ctx, userID, id, true)
			require.NoError(h.t, err)
		}
	}
}

func withBackend(b localcache.Backend) harnessOption {
	return func(h *harness) { h.cache = &countingCache{Cache: localcache.NewCache(b, nil)} }
}

func newHarness(t *testing.T, userID string, opts ...harnessOption) *harness {
	t.Helper()
	ctx := context.Background()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/broken.jpg" {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		_, _ = w.Write([]byte("image:" + r.URL.Path))
	}))
	t.Cleanup(server.Close)

	store, err := docstore.Open(docstore.Options{
		Driver:       docstore.DriverSQLite,
		DSN:          filepath.Join(t.TempDir(), "remote.db"),
		PollInterval: 50 * time.Millisecond,
		MaxRetries:   5,
		RetryDelay:   5 * time.Millisecond,
	}, nil)
	require.NoError(t, err)
	require.NoError(t, store.Migrate(ctx))
	t.Cleanup(func() { _ = store.Close() })

	fs := afero.NewMemMapFs()
	mgr, err := images.NewManager(fs, "/images", time.Second, nil)
	require.NoError(t, err)

	h := &harness{
		t:      t,
		ctx:    ctx,
		store:  store,
		remote: store,
		mon:    connectivity.NewMonitor(nil, time.Second, nil),
		cache:  &countingCache{Cache: localcache.NewCache(localcache.NewMemory(), nil)},
		images: mgr,
		fs:     fs,
		pool:   images.NewPool(mgr, 2, nil),
		url:    server.URL,
	}
	t.Cleanup(func() { _ = h.pool.Close() })

	require.NoError(t, store.UpsertUser(ctx, &entities.User{ID: "chef", Name: "Alice"}))
	require.NoError(t, store.SeedRecipes(ctx, []entities.Recipe{
		{ID: "r1", Name: "Pancakes", Category: "Breakfast", OwnerID: "chef", Image: server.URL + "/r1.jpg"},
		{ID: "r2", Name: "Stew", Category: "Dinner", OwnerID: "chef", Image: server.URL + "/r2.jpg"},
		{ID: "r3", Name: "Toast", Category: "Breakfast", OwnerID: "ghost", Image: server.URL + "/broken.jpg"},
		{ID: "r4", Name: "Salad", Category: "Lunch", OwnerID: "chef"},
	}))

	for _, opt := range opts {
		opt(h)
	}

	h.engine = New(Deps{
		Remote:       h.remote,
		Connectivity: h.mon,
		Cache:        h.cache,
		Images:       mgr,
		Scheduler:    h.pool,
	}, userID)
	h.engine.Start()
	t.Cleanup(h.engine.Stop)

	return h
}

func snapshotIDs(s Snapshot) []string {
	ids := make([]string, 0, len(s.Items))
	for _, it := range s.Items {
		ids = append(ids, it.ID)
	}
	sort.Strings(ids)
	return ids
}

func (h *harness) localKeys() []string {
	keys, err := h.cache.Keys(h.ctx)
	require.NoError(h.t, err)
	return keys
}

func (h *harness) item(id string) (entities.FavoriteRecipe, bool) {
	for _, it := range h.engine.Current().Items {
		if it.ID == id {
			return it, true
		}
	}
	return entities.FavoriteRecipe{}, false
}

// waitSettled waits until the published set is ids and every image has
// either been cached or failed.
func (h *harness) waitSettled(ids ...string) Snapshot {
	h.t.Helper()
	if ids == nil {
		ids = []string{}
	}
	require.Eventually(h.t, func() bool {
		snap := h.engine.Current()
		if !assert.ObjectsAreEqual(ids, snapshotIDs(snap)) {
			return false
		}
		for _, it := range snap.Items {
			if it.ImageURI != "" && it.ImageURI == it.ImageSource {
				return false
			}
		}
		return true
	}, waitFor, 10*time.Millisecond)
	return h.engine.Current()
}

func (h *harness) isFavorite(recipeID string) bool {
	ok, err := h.store.IsFavorite(h.ctx, "u1", recipeID)
	require.NoError(h.t, err)
	return ok
}
