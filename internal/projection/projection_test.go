package projection

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mrlokans/tastier/internal/entities"
)

var base = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

func fixture() []entities.FavoriteRecipe {
	return []entities.FavoriteRecipe{
		{ID: "a", Name: "Apple Pie", Category: "Dessert", Rating: 4.5, FavoriteCount: 3, CreatedAt: base},
		{ID: "b", Name: "Beef Stew", Category: "Dinner", Rating: 4.0, FavoriteCount: 10, CreatedAt: base.Add(2 * time.Hour)},
		{ID: "c", Name: "Crème Brûlée", Category: "Dessert", Rating: 4.5, FavoriteCount: 1, CreatedAt: base.Add(time.Hour)},
		{ID: "d", Name: "PANCAKES", Category: "Breakfast", Rating: 3.0, FavoriteCount: 3, CreatedAt: base.Add(-time.Hour)},
	}
}

func ids(items []entities.FavoriteRecipe) []string {
	out := make([]string, len(items))
	for i, item := range items {
		out[i] = item.ID
	}
	return out
}

func TestProject_NoFilterKeepsOrder(t *testing.T) {
	assert.Equal(t, []string{"a", "b", "c", "d"}, ids(Project(fixture(), Filter{})))
}

func TestProject_Category(t *testing.T) {
	assert.Equal(t, []string{"a", "c"}, ids(Project(fixture(), Filter{Category: "Dessert"})))
	assert.Equal(t, []string{"a", "b", "c", "d"}, ids(Project(fixture(), Filter{Category: AllCategories})))
	assert.Empty(t, Project(fixture(), Filter{Category: "Lunch"}))
}

func TestProject_SearchIsCaseInsensitive(t *testing.T) {
	assert.Equal(t, []string{"d"}, ids(Project(fixture(), Filter{Search: "pancake"})))
	assert.Equal(t, []string{"c"}, ids(Project(fixture(), Filter{Search: "BRÛLÉE"})))
	assert.Equal(t, []string{"b"}, ids(Project(fixture(), Filter{Search: "STEW"})))
	assert.Len(t, Project(fixture(), Filter{Search: "  "}), 4)
}

func TestProject_Sorts(t *testing.T) {
	tests := []struct {
		key  SortKey
		want []string
	}{
		{SortLatest, []string{"b", "c", "a", "d"}},
		{SortEarliest, []string{"d", "a", "c", "b"}},
		{SortRating, []string{"a", "c", "b", "d"}},
		{SortFavoriteCount, []string{"b", "a", "d", "c"}},
	}

	for _, tt := range tests {
		t.Run(string(tt.key), func(t *testing.T) {
			assert.Equal(t, tt.want, ids(Project(fixture(), Filter{Sort: tt.key})))
		})
	}
}

func TestProject_CombinedAndDoesNotMutate(t *testing.T) {
	items := fixture()
	got := Project(items, Filter{Category: "Dessert", Sort: SortLatest})

	assert.Equal(t, []string{"c", "a"}, ids(got))
	assert.Equal(t, []string{"a", "b", "c", "d"}, ids(items))
}

func TestParseSortKey(t *testing.T) {
	k, err := ParseSortKey("favouriteCount")
	require.NoError(t, err)
	assert.Equal(t, SortFavoriteCount, k)

	k, err = ParseSortKey("")
	require.NoError(t, err)
	assert.Equal(t, SortNone, k)

	_, err = ParseSortKey("alphabetical")
	assert.Error(t, err)
}

func TestCategories(t *testing.T) {
	assert.Equal(t, []string{"All", "Dessert", "Dinner", "Breakfast"}, Categories(fixture()))
	assert.Equal(t, []string{"All"}, Categories(nil))
}
