package tasks

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mrlokans/tastier/internal/images"
)

type stubCacher struct {
	err error
}

func (s stubCacher) Cache(ctx context.Context, recipeID, ref string) (string, error) {
	if s.err != nil {
		return "", s.err
	}
	return "/images/" + recipeID + ".jpg", nil
}

func TestCacheImageTaskConfig(t *testing.T) {
	cfg := CacheImageTask{RecipeID: "r1"}.Config()

	assert.Equal(t, "cache_image", cfg.Name)
	assert.Equal(t, 1, cfg.MaxAttempts)
	assert.Equal(t, 2*time.Minute, cfg.Timeout)
	assert.NotNil(t, cfg.Retention)
}

func TestCacheImageProcessor(t *testing.T) {
	var got []images.Result
	report := func(_ context.Context, r images.Result) { got = append(got, r) }

	err := CacheImageProcessor(stubCacher{}, report)(context.Background(), CacheImageTask{RecipeID: "r1", Source: "https://x/r1.jpg"})
	require.NoError(t, err)

	err = CacheImageProcessor(stubCacher{err: errors.New("status 404")}, report)(context.Background(), CacheImageTask{RecipeID: "r2", Source: "https://x/r2.jpg"})
	assert.Error(t, err)

	require.Len(t, got, 2)
	assert.Equal(t, "/images/r1.jpg", got[0].Path)
	assert.NoError(t, got[0].Err)
	assert.Equal(t, "https://x/r2.jpg", got[1].Source)
	assert.Error(t, got[1].Err)

	err = CacheImageProcessor(nil, report)(context.Background(), CacheImageTask{RecipeID: "r3"})
	assert.Error(t, err)
}

func TestImageQueue_ReportsResults(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Workers = 1

	client, err := NewClient(filepath.Join(t.TempDir(), "favorites.sqlite"), cfg, nil)
	require.NoError(t, err)
	defer client.Close()

	queue := NewImageQueue(client, stubCacher{}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go client.Start(ctx)

	require.NoError(t, queue.Schedule(ctx, images.Job{RecipeID: "r1", Source: "https://x/r1.jpg"}))

	select {
	case res := <-queue.Results():
		assert.Equal(t, "r1", res.RecipeID)
		assert.Equal(t, "https://x/r1.jpg", res.Source)
		assert.Equal(t, "/images/r1.jpg", res.Path)
		assert.NoError(t, res.Err)
	case <-time.After(5 * time.Second):
		t.Fatal("image task was not executed within timeout")
	}
}
