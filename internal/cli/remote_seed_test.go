package cli

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mrlokans/tastier/internal/remote/docstore"
)

const seedJSON = `{
  "users": [{"id": "u1", "name": "Alice"}, {"id": "u2", "name": "Bob"}],
  "recipes": [
    {"id": "r1", "name": "Beef Stew", "category": "Dinner", "owner_id": "u1", "ingredients": ["beef", "carrots"]},
    {"id": "r2", "name": "Pancakes", "category": "Breakfast", "owner_id": "u2"}
  ],
  "favorites": [
    {"user_id": "u1", "recipe_id": "r2"},
    {"user_id": "u2", "recipe_id": "r2"}
  ]
}`

func writeSeed(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "seed.json")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestRemoteSeedCommand_ParseFlags(t *testing.T) {
	t.Run("requires file argument", func(t *testing.T) {
		cmd := NewRemoteSeedCommand()
		assert.Error(t, cmd.ParseFlags([]string{}))
	})

	t.Run("reads flags and file", func(t *testing.T) {
		cmd := NewRemoteSeedCommand()
		require.NoError(t, cmd.ParseFlags([]string{"-driver", "sqlite", "-dsn", "remote.db", "seed.json"}))
		assert.Equal(t, "sqlite", cmd.Driver)
		assert.Equal(t, "remote.db", cmd.DSN)
		assert.Equal(t, "seed.json", cmd.File)
		assert.True(t, cmd.Migrate)
	})
}

func TestRemoteSeedCommand_Run(t *testing.T) {
	dsn := filepath.Join(t.TempDir(), "remote.sqlite")
	path := writeSeed(t, seedJSON)

	run := func() string {
		var out bytes.Buffer
		cmd := NewRemoteSeedCommand()
		cmd.Out = &out
		require.NoError(t, cmd.ParseFlags([]string{"-driver", "sqlite", "-dsn", dsn, path}))
		require.NoError(t, cmd.Run())
		return out.String()
	}

	assert.Contains(t, run(), "Seeded 2 users, 2 recipes, 2 favorites.")
	// Re-running must not double count favorites.
	run()

	store, err := docstore.Open(docstore.Options{Driver: docstore.DriverSQLite, DSN: dsn}, nil)
	require.NoError(t, err)
	defer store.Close()

	ctx := context.Background()
	recipe, err := store.GetRecipe(ctx, "r2")
	require.NoError(t, err)
	assert.Equal(t, int64(2), recipe.FavoriteCount)

	recipe, err = store.GetRecipe(ctx, "r1")
	require.NoError(t, err)
	assert.Equal(t, int64(0), recipe.FavoriteCount)
	assert.Equal(t, []string{"beef", "carrots"}, []string(recipe.Ingredients))

	fav, err := store.IsFavorite(ctx, "u1", "r2")
	require.NoError(t, err)
	assert.True(t, fav)
}

func TestReadSeedFile_Invalid(t *testing.T) {
	_, err := ReadSeedFile(writeSeed(t, `{"users": [`))
	assert.Error(t, err)

	_, err = ReadSeedFile(filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)
}

func TestApplySeed_FavoriteForMissingRecipe(t *testing.T) {
	dsn := filepath.Join(t.TempDir(), "remote.sqlite")
	store, err := docstore.Open(docstore.Options{Driver: docstore.DriverSQLite, DSN: dsn}, nil)
	require.NoError(t, err)
	defer store.Close()

	ctx := context.Background()
	require.NoError(t, store.Migrate(ctx))

	seed, err := ReadSeedFile(writeSeed(t, `{"favorites": [{"user_id": "u1", "recipe_id": "nope"}]}`))
	require.NoError(t, err)

	_, err = ApplySeed(ctx, store, seed)
	assert.Error(t, err)
}
