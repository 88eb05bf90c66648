package docstore

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mrlokans/tastier/internal/entities"
)

func TestSubscribeFavorites_DeliversOnOpenAndChange(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()
	seedRecipe(t, s, "r1", "Pancakes")
	seedRecipe(t, s, "r2", "Waffles")

	rec := newRecorder[entities.Favorite]()
	sub, err := s.SubscribeFavorites(ctx, "u1", rec.fn)
	require.NoError(t, err)
	defer sub.Cancel()

	rec.wait(t)
	assert.Empty(t, rec.last())

	_, err = s.ToggleFavorite(ctx, "u1", "r2", true)
	require.NoError(t, err)
	rec.wait(t)
	require.Len(t, rec.last(), 1)
	assert.Equal(t, "r2", rec.last()[0].RecipeID)

	// Another user's favorite does not change this result set.
	before := rec.count()
	_, err = s.ToggleFavorite(ctx, "u2", "r1", true)
	require.NoError(t, err)
	time.Sleep(200 * time.Millisecond)
	assert.Equal(t, before, rec.count())
}

func TestSubscribeRecipes_ScopedToIDs(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()
	seedRecipe(t, s, "r1", "Pancakes")
	seedRecipe(t, s, "r2", "Waffles")

	rec := newRecorder[entities.Recipe]()
	sub, err := s.SubscribeRecipes(ctx, []string{"r2", "r1", "r2"}, rec.fn)
	require.NoError(t, err)
	defer sub.Cancel()

	rec.wait(t)
	require.Len(t, rec.last(), 2)
	assert.Equal(t, "r1", rec.last()[0].ID)
	assert.Equal(t, "r2", rec.last()[1].ID)

	// A counter change made by another writer is picked up.
	_, err = s.ToggleFavorite(ctx, "u9", "r1", true)
	require.NoError(t, err)
	rec.wait(t)
	assert.Equal(t, int64(1), rec.last()[0].FavoriteCount)

	seedRecipe(t, s, "r3", "Toast")
	time.Sleep(200 * time.Millisecond)
	for _, r := range rec.last() {
		assert.NotEqual(t, "r3", r.ID)
	}
}

func TestSubscribeRecipes_PicksUpExternalWrites(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()
	seedRecipe(t, s, "r1", "Pancakes")

	rec := newRecorder[entities.Recipe]()
	sub, err := s.SubscribeRecipes(ctx, []string{"r1"}, rec.fn)
	require.NoError(t, err)
	defer sub.Cancel()
	rec.wait(t)

	// Written behind the store's back; only the poll interval sees it.
	require.NoError(t, s.db.Model(&entities.Recipe{}).Where("id = ?", "r1").Update("name", "Crepes").Error)

	rec.wait(t)
	assert.Equal(t, "Crepes", rec.last()[0].Name)
}

func TestSubscription_Cancel(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()
	seedRecipe(t, s, "r1", "Pancakes")

	rec := newRecorder[entities.Favorite]()
	sub, err := s.SubscribeFavorites(ctx, "u1", rec.fn)
	require.NoError(t, err)
	rec.wait(t)

	sub.Cancel()
	sub.Cancel()

	_, err = s.ToggleFavorite(ctx, "u1", "r1", true)
	require.NoError(t, err)
	time.Sleep(200 * time.Millisecond)
	assert.Equal(t, 1, rec.count())

	s.mu.Lock()
	defer s.mu.Unlock()
	assert.Empty(t, s.watchers)
}
