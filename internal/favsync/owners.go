package favsync

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/mrlokans/tastier/internal/entities"
	"github.com/mrlokans/tastier/internal/remote"
)

const ownerLookupTimeout = 5 * time.Second

// owners caches owner display names. Failed lookups other than not-found
// are not cached so the next pass tries again.
type owners struct {
	store remote.Store
	log   *zap.Logger

	mu    sync.Mutex
	names map[string]string
}

func newOwners(store remote.Store, log *zap.Logger) *owners {
	return &owners{store: store, log: log, names: make(map[string]string)}
}

// reset forgets every cached name so renamed owners are picked up on the
// next pass.
func (o *owners) reset() {
	o.mu.Lock()
	o.names = make(map[string]string)
	o.mu.Unlock()
}

// displayName returns "Chef <name>" for ownerID, or the unknown-owner label.
func (o *owners) displayName(ctx context.Context, ownerID string) string {
	if ownerID == "" {
		return entities.UnknownOwner
	}

	o.mu.Lock()
	name, ok := o.names[ownerID]
	o.mu.Unlock()
	if ok {
		return name
	}

	lctx, cancel := context.WithTimeout(ctx, ownerLookupTimeout)
	defer cancel()

	user, err := o.store.GetUser(lctx, ownerID)
	switch {
	case err == nil:
		name = entities.ChefName(user.Name)
	case errors.Is(err, remote.ErrNotFound):
		name = entities.UnknownOwner
	default:
		if ctx.Err() == nil {
			o.log.Debug("owner lookup failed", zap.String("owner_id", ownerID), zap.Error(err))
		}
		return entities.UnknownOwner
	}

	o.mu.Lock()
	o.names[ownerID] = name
	o.mu.Unlock()
	return name
}

// resolve builds view records for recipes. It returns ctx.Err() if ctx is
// cancelled part way through.
func (o *owners) resolve(ctx context.Context, recipes []entities.Recipe) ([]entities.FavoriteRecipe, error) {
	out := make([]entities.FavoriteRecipe, 0, len(recipes))
	for _, r := range recipes {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		out = append(out, entities.NewFavoriteRecipe(r, o.displayName(ctx, r.OwnerID)))
	}
	return out, nil
}
