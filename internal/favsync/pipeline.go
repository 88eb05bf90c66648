package favsync

import (
	"context"
	"errors"
	"slices"
	"sort"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/mrlokans/tastier/internal/entities"
	"github.com/mrlokans/tastier/internal/images"
	"github.com/mrlokans/tastier/internal/localcache"
)

// pipeline is the two-stage Live subscription chain for one user. The
// recipes stage is cancelled and reopened whenever the membership id set
// changes. Everything here is touched only on the loop.
type pipeline struct {
	gen    uint64
	userID string

	favSub   cancelable
	recSub   cancelable
	recGen   uint64
	ids      []string
	idsKnown bool

	passID     string
	passCancel context.CancelFunc
	retry      *time.Timer
}

type cancelable interface {
	Cancel()
}

func (p *pipeline) cancelPass() {
	if p.passCancel != nil {
		p.passCancel()
		p.passCancel = nil
	}
	p.passID = ""
}

func (p *pipeline) cancelRecipes() {
	if p.recSub != nil {
		p.recSub.Cancel()
		p.recSub = nil
	}
	p.recGen++
	p.cancelPass()
}

func (p *pipeline) close() {
	if p.retry != nil {
		p.retry.Stop()
	}
	p.cancelRecipes()
	if p.favSub != nil {
		p.favSub.Cancel()
		p.favSub = nil
	}
}

// isActive reports whether p is still the engine's live pipeline.
func (e *Engine) isActive(p *pipeline) bool {
	return e.pipeline == p && e.mode == ModeLive
}

func (e *Engine) openPipeline() {
	e.pipeGen++
	p := &pipeline{gen: e.pipeGen, userID: e.userID}
	e.pipeline = p
	e.subscribeFavorites(p)
}

func (e *Engine) closePipeline() {
	if e.pipeline == nil {
		return
	}
	e.pipeline.close()
	e.pipeline = nil
}

func (e *Engine) subscribeFavorites(p *pipeline) {
	sub, err := e.remote.SubscribeFavorites(e.ctx, p.userID, func(favs []entities.Favorite) {
		e.post(func() { e.onFavorites(p, favs) })
	})
	if err != nil {
		e.log.Warn("favorites subscription failed, retrying",
			zap.String("user_id", p.userID), zap.Duration("retry_in", resubscribeBackoff), zap.Error(err))
		p.retry = time.AfterFunc(resubscribeBackoff, func() {
			e.post(func() {
				if e.isActive(p) && p.favSub == nil {
					e.subscribeFavorites(p)
				}
			})
		})
		return
	}
	p.favSub = sub
}

func (e *Engine) onFavorites(p *pipeline, favs []entities.Favorite) {
	if !e.isActive(p) {
		return
	}

	ids := make([]string, 0, len(favs))
	for _, f := range favs {
		ids = append(ids, f.RecipeID)
	}
	sort.Strings(ids)
	ids = slices.Compact(ids)

	if p.idsKnown && slices.Equal(ids, p.ids) {
		return
	}
	p.ids = ids
	p.idsKnown = true

	p.cancelRecipes()
	if len(ids) == 0 {
		e.reconcile(nil)
		return
	}

	recGen := p.recGen
	sub, err := e.remote.SubscribeRecipes(e.ctx, ids, func(recipes []entities.Recipe) {
		e.post(func() { e.onRecipes(p, recGen, recipes) })
	})
	if err != nil {
		e.log.Warn("recipes subscription failed", zap.Int("ids", len(ids)), zap.Error(err))
		// Forget the id set so the next membership delivery tries again.
		p.idsKnown = false
		return
	}
	p.recSub = sub
}

// onRecipes starts a reconciliation pass. Owner names are resolved off the
// loop; the pass is dropped if a newer delivery or a mode change arrives
// first.
func (e *Engine) onRecipes(p *pipeline, recGen uint64, recipes []entities.Recipe) {
	if !e.isActive(p) || recGen != p.recGen {
		return
	}

	p.cancelPass()
	ctx, cancel := context.WithCancel(e.ctx)
	passID := uuid.NewString()
	p.passID = passID
	p.passCancel = cancel

	e.log.Debug("reconciliation pass started", zap.String("pass_id", passID), zap.Int("recipes", len(recipes)))

	go func() {
		items, err := e.owners.resolve(ctx, recipes)
		if err != nil {
			return
		}
		e.post(func() {
			if !e.isActive(p) || p.passID != passID {
				return
			}
			p.cancelPass()
			e.reconcile(items)
			e.log.Debug("reconciliation pass finished", zap.String("pass_id", passID), zap.Int("items", len(items)))
		})
	}()
}

// reconcile makes the local cache and image directory match items, then
// publishes items. Running it twice with the same items writes nothing the
// second time.
func (e *Engine) reconcile(items []entities.FavoriteRecipe) {
	ctx := e.ctx

	wanted := make(map[string]struct{}, len(items))
	for _, it := range items {
		wanted[it.ID] = struct{}{}
	}

	keys, err := e.cache.Keys(ctx)
	if err != nil {
		e.log.Error("failed to list local favorites", zap.Error(err))
	}
	for _, key := range keys {
		if _, ok := wanted[key]; ok {
			continue
		}
		e.removeLocal(key)
	}

	out := make([]entities.FavoriteRecipe, 0, len(items))
	for _, it := range items {
		it.FavoritedBy = e.userID
		out = append(out, e.upsertLocal(it))
	}

	e.items = out
	e.publish()
}

// upsertLocal stores item, carrying over image state from the previous
// entry, and schedules an image download when one is needed.
func (e *Engine) upsertLocal(item entities.FavoriteRecipe) entities.FavoriteRecipe {
	var prior *entities.FavoriteRecipe
	existing, err := e.cache.Get(e.ctx, item.ID)
	switch {
	case err == nil:
		prior = &existing
	case !errors.Is(err, localcache.ErrNotFound):
		e.log.Warn("failed to read local favorite", zap.String("id", item.ID), zap.Error(err))
	}

	download := e.resolveImage(&item, prior)

	if _, err := e.cache.Put(e.ctx, item); err != nil {
		e.log.Error("failed to store local favorite", zap.String("id", item.ID), zap.Error(err))
	}
	if download {
		e.scheduleImage(item.ID, item.ImageSource)
	}
	return item
}

func (e *Engine) removeLocal(id string) {
	if err := e.cache.Remove(e.ctx, id); err != nil {
		e.log.Error("failed to remove local favorite", zap.String("id", id), zap.Error(err))
	}
	if err := e.images.Remove(id); err != nil {
		e.log.Warn("failed to remove cached image", zap.String("id", id), zap.Error(err))
	}
	delete(e.pending, id)
}

// resolveImage fills item.ImageURI from prior and reports whether the image
// must be (re)downloaded. item.ImageSource holds the remote reference.
func (e *Engine) resolveImage(item *entities.FavoriteRecipe, prior *entities.FavoriteRecipe) bool {
	src := item.ImageSource
	if src == "" {
		item.ImageURI = ""
		if err := e.images.Remove(item.ID); err != nil {
			e.log.Warn("failed to remove cached image", zap.String("id", item.ID), zap.Error(err))
		}
		return false
	}

	if prior == nil || prior.ImageSource != src {
		item.ImageURI = src
		return true
	}

	path := e.images.Path(item.ID)
	if prior.ImageURI == path && e.images.Exists(item.ID) {
		item.ImageURI = path
		return false
	}

	// Pending or previously failed download of the same source.
	item.ImageURI = prior.ImageURI
	if item.ImageURI == path {
		item.ImageURI = ""
	}
	return true
}

func (e *Engine) scheduleImage(recipeID, source string) {
	if e.sched == nil || e.pending[recipeID] == source {
		return
	}
	if err := e.sched.Schedule(e.ctx, images.Job{RecipeID: recipeID, Source: source}); err != nil {
		e.log.Warn("failed to schedule image download", zap.String("id", recipeID), zap.Error(err))
		return
	}
	e.pending[recipeID] = source
}

// applyImageResult records a finished download. Results for entries that
// were removed, or whose source has since changed, are discarded.
func (e *Engine) applyImageResult(res images.Result) {
	if e.pending[res.RecipeID] == res.Source {
		delete(e.pending, res.RecipeID)
	}

	entry, err := e.cache.Get(e.ctx, res.RecipeID)
	if err != nil {
		if errors.Is(err, localcache.ErrNotFound) && res.Err == nil {
			_ = e.images.Remove(res.RecipeID)
		}
		return
	}

	if entry.ImageSource != res.Source {
		// A stale download may have overwritten the current image.
		if res.Err == nil && entry.ImageSource != "" {
			e.scheduleImage(entry.ID, entry.ImageSource)
		}
		return
	}

	if res.Err != nil {
		e.log.Warn("image unavailable offline", zap.String("id", res.RecipeID), zap.Error(res.Err))
		entry.ImageURI = ""
		_ = e.images.Remove(res.RecipeID)
	} else {
		entry.ImageURI = res.Path
	}

	if _, err := e.cache.Put(e.ctx, entry); err != nil {
		e.log.Error("failed to store image result", zap.String("id", entry.ID), zap.Error(err))
	}
	if e.replaceItem(entry) {
		e.publish()
	}
}

// replaceItem swaps the published copy of entry, reporting whether it was
// present and different.
func (e *Engine) replaceItem(entry entities.FavoriteRecipe) bool {
	for i := range e.items {
		if e.items[i].ID != entry.ID {
			continue
		}
		if e.items[i].ImageURI == entry.ImageURI {
			return false
		}
		e.items[i] = entry
		return true
	}
	return false
}
