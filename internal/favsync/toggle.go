package favsync

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/mrlokans/tastier/internal/entities"
	"github.com/mrlokans/tastier/internal/remote"
)

type session struct {
	userID string
	online bool
}

func (e *Engine) session(ctx context.Context) (session, error) {
	var s session
	err := e.do(ctx, func() {
		s = session{userID: e.userID, online: e.mode == ModeLive}
	})
	return s, err
}

// ToggleFavorite sets the favorite state of recipeID for the active user.
// It is refused while offline. On success the local cache reflects the new
// state before ToggleFavorite returns, without waiting for the next
// subscription delivery.
func (e *Engine) ToggleFavorite(ctx context.Context, recipeID string, favorite bool) error {
	s, err := e.session(ctx)
	if err != nil {
		return err
	}
	if !s.online || !e.conn.Online() {
		return ErrOffline
	}
	if s.userID == "" {
		return ErrNoUser
	}

	recipe, err := e.remote.ToggleFavorite(ctx, s.userID, recipeID, favorite)
	if err != nil {
		e.log.Warn("favorite toggle failed",
			zap.String("recipe_id", recipeID), zap.Bool("favorite", favorite), zap.Error(err))
		if errors.Is(err, remote.ErrNotFound) {
			return fmt.Errorf("%w: %s", ErrNotFound, recipeID)
		}
		return fmt.Errorf("%w: %v", ErrUpdateFailed, err)
	}

	var item entities.FavoriteRecipe
	if favorite {
		item = entities.NewFavoriteRecipe(*recipe, e.owners.displayName(ctx, recipe.OwnerID))
		item.FavoritedBy = s.userID
	}

	// The remote write has committed; apply the local side effect even if
	// ctx expires meanwhile.
	return e.do(context.WithoutCancel(ctx), func() {
		if e.userID != s.userID {
			return
		}
		if favorite {
			e.addItem(item)
		} else {
			e.dropItem(recipeID)
		}
	})
}

func (e *Engine) addItem(item entities.FavoriteRecipe) {
	stored := e.upsertLocal(item)
	for i := range e.items {
		if e.items[i].ID == stored.ID {
			e.items[i] = stored
			e.publish()
			return
		}
	}
	e.items = append(e.items, stored)
	e.publish()
}

func (e *Engine) dropItem(recipeID string) {
	e.removeLocal(recipeID)
	for i := range e.items {
		if e.items[i].ID == recipeID {
			e.items = append(e.items[:i:i], e.items[i+1:]...)
			break
		}
	}
	e.publish()
}

// SelectRecipe returns the recipe to navigate to: the favorite entry when
// there is one, otherwise a fresh remote read while online.
func (e *Engine) SelectRecipe(ctx context.Context, recipeID string) (entities.FavoriteRecipe, error) {
	snap := e.Current()
	for _, it := range snap.Items {
		if it.ID == recipeID {
			return it, nil
		}
	}

	if !snap.Online {
		return entities.FavoriteRecipe{}, ErrOffline
	}

	recipe, err := e.remote.GetRecipe(ctx, recipeID)
	if err != nil {
		if errors.Is(err, remote.ErrNotFound) {
			return entities.FavoriteRecipe{}, fmt.Errorf("%w: %s", ErrNotFound, recipeID)
		}
		return entities.FavoriteRecipe{}, err
	}

	item := entities.NewFavoriteRecipe(*recipe, e.owners.displayName(ctx, recipe.OwnerID))
	item.Favorite = false
	return item, nil
}
