package docstore

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mrlokans/tastier/internal/entities"
	"github.com/mrlokans/tastier/internal/remote"
)

func membershipCount(t *testing.T, s *Store, recipeID string) int64 {
	t.Helper()
	var n int64
	require.NoError(t, s.db.Model(&entities.Favorite{}).Where("recipe_id = ?", recipeID).Count(&n).Error)
	return n
}

func TestToggleFavorite(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()
	seedRecipe(t, s, "r1", "Pancakes")

	r, err := s.ToggleFavorite(ctx, "u1", "r1", true)
	require.NoError(t, err)
	assert.Equal(t, int64(1), r.FavoriteCount)
	assert.Equal(t, int64(1), membershipCount(t, s, "r1"))

	r, err = s.ToggleFavorite(ctx, "u1", "r1", false)
	require.NoError(t, err)
	assert.Equal(t, int64(0), r.FavoriteCount)
	assert.Equal(t, int64(0), membershipCount(t, s, "r1"))
}

func TestToggleFavorite_Idempotent(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()
	seedRecipe(t, s, "r1", "Pancakes")

	for i := 0; i < 3; i++ {
		r, err := s.ToggleFavorite(ctx, "u1", "r1", true)
		require.NoError(t, err)
		assert.Equal(t, int64(1), r.FavoriteCount)
	}
	for i := 0; i < 3; i++ {
		r, err := s.ToggleFavorite(ctx, "u1", "r1", false)
		require.NoError(t, err)
		assert.Equal(t, int64(0), r.FavoriteCount)
	}
}

func TestToggleFavorite_NeverNegative(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()
	seedRecipe(t, s, "r1", "Pancakes")

	// Membership present but counter already at zero, as a drifted document would be.
	require.NoError(t, s.db.Create(&entities.Favorite{UserID: "u1", RecipeID: "r1"}).Error)

	r, err := s.ToggleFavorite(ctx, "u1", "r1", false)
	require.NoError(t, err)
	assert.Equal(t, int64(0), r.FavoriteCount)
}

func TestToggleFavorite_RecipeNotFound(t *testing.T) {
	s := setupTestStore(t)

	_, err := s.ToggleFavorite(context.Background(), "u1", "missing", true)
	assert.ErrorIs(t, err, remote.ErrNotFound)
	assert.Equal(t, int64(0), membershipCount(t, s, "missing"))
}

func TestToggleFavorite_ConcurrentUsers(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()
	seedRecipe(t, s, "r1", "Pancakes")

	const users = 10
	var wg sync.WaitGroup
	errs := make(chan error, users*2)

	for i := 0; i < users; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			user := fmt.Sprintf("u%d", i)
			_, err := s.ToggleFavorite(ctx, user, "r1", true)
			errs <- err
			if i%2 == 0 {
				_, err = s.ToggleFavorite(ctx, user, "r1", false)
				errs <- err
			}
		}(i)
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		require.NoError(t, err)
	}

	r, err := s.GetRecipe(ctx, "r1")
	require.NoError(t, err)
	assert.Equal(t, int64(users/2), r.FavoriteCount)
	assert.Equal(t, r.FavoriteCount, membershipCount(t, s, "r1"))
}

func TestToggleFavorite_SameUserRace(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()
	seedRecipe(t, s, "r1", "Pancakes")

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.ToggleFavorite(ctx, "u1", "r1", true)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	r, err := s.GetRecipe(ctx, "r1")
	require.NoError(t, err)
	assert.Equal(t, int64(1), r.FavoriteCount)
	assert.Equal(t, int64(1), membershipCount(t, s, "r1"))
}
