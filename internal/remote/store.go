// Package remote defines the contract of the shared recipe document store.
//
// The store is multi-writer: other devices add favorites, edit recipes and
// bump counters concurrently. Readers observe it through subscriptions that
// deliver the full result set whenever it changes.
package remote

import (
	"context"
	"errors"

	"github.com/mrlokans/tastier/internal/entities"
)

var (
	// ErrNotFound is returned when a point read or toggle targets a missing document.
	ErrNotFound = errors.New("remote: not found")
	// ErrConflict is returned when a transaction kept conflicting with
	// concurrent writers until the retry budget ran out.
	ErrConflict = errors.New("remote: write conflict")
)

// Subscription is a live query. Cancel stops further deliveries and may be
// called more than once. A delivery already in progress when Cancel is
// called can still complete.
type Subscription interface {
	Cancel()
}

type Store interface {
	// SubscribeFavorites delivers every membership record of userID, on open
	// and after each change.
	SubscribeFavorites(ctx context.Context, userID string, fn func([]entities.Favorite)) (Subscription, error)
	// SubscribeRecipes delivers the recipes whose id is in ids. The id list is
	// fixed for the lifetime of the subscription.
	SubscribeRecipes(ctx context.Context, ids []string, fn func([]entities.Recipe)) (Subscription, error)
	// ToggleFavorite atomically sets the membership record and adjusts the
	// recipe's favorite count, returning the recipe as committed.
	ToggleFavorite(ctx context.Context, userID, recipeID string, favorite bool) (*entities.Recipe, error)
	GetUser(ctx context.Context, id string) (*entities.User, error)
	GetRecipe(ctx context.Context, id string) (*entities.Recipe, error)
}

// SubscriptionFunc adapts a function to Subscription.
type SubscriptionFunc func()

func (f SubscriptionFunc) Cancel() { f() }
