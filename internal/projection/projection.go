// Package projection filters and orders favorite lists for display.
package projection

import (
	"fmt"
	"sort"
	"strings"

	"golang.org/x/text/cases"

	"github.com/mrlokans/tastier/internal/entities"
)

// AllCategories disables the category filter.
const AllCategories = "All"

type SortKey string

const (
	SortNone          SortKey = ""
	SortLatest        SortKey = "latest"
	SortEarliest      SortKey = "earliest"
	SortRating        SortKey = "rating"
	SortFavoriteCount SortKey = "favoriteCount"
)

// ParseSortKey accepts the known keys plus the "favouriteCount" spelling.
func ParseSortKey(s string) (SortKey, error) {
	switch SortKey(s) {
	case SortNone, SortLatest, SortEarliest, SortRating, SortFavoriteCount:
		return SortKey(s), nil
	case "favouriteCount":
		return SortFavoriteCount, nil
	}
	return SortNone, fmt.Errorf("unknown sort key %q", s)
}

type Filter struct {
	Category string
	Search   string
	Sort     SortKey
}

// Project returns the items that match f, ordered by f.Sort. Ties keep their
// input order. The input slice is not modified.
func Project(items []entities.FavoriteRecipe, f Filter) []entities.FavoriteRecipe {
	folder := cases.Fold()
	needle := folder.String(strings.TrimSpace(f.Search))
	category := strings.TrimSpace(f.Category)
	if category == AllCategories {
		category = ""
	}

	out := make([]entities.FavoriteRecipe, 0, len(items))
	for _, item := range items {
		if category != "" && item.Category != category {
			continue
		}
		if needle != "" && !strings.Contains(folder.String(item.Name), needle) {
			continue
		}
		out = append(out, item)
	}

	if less := lessFunc(f.Sort, out); less != nil {
		sort.SliceStable(out, less)
	}
	return out
}

func lessFunc(key SortKey, s []entities.FavoriteRecipe) func(i, j int) bool {
	switch key {
	case SortLatest:
		return func(i, j int) bool { return s[i].CreatedAt.After(s[j].CreatedAt) }
	case SortEarliest:
		return func(i, j int) bool { return s[i].CreatedAt.Before(s[j].CreatedAt) }
	case SortRating:
		return func(i, j int) bool { return s[i].Rating > s[j].Rating }
	case SortFavoriteCount:
		return func(i, j int) bool { return s[i].FavoriteCount > s[j].FavoriteCount }
	}
	return nil
}

// Categories returns the distinct categories of items in first-seen order,
// preceded by AllCategories.
func Categories(items []entities.FavoriteRecipe) []string {
	out := []string{AllCategories}
	seen := map[string]bool{AllCategories: true}
	for _, item := range items {
		if item.Category == "" || seen[item.Category] {
			continue
		}
		seen[item.Category] = true
		out = append(out, item.Category)
	}
	return out
}
