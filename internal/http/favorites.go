package http

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/mrlokans/tastier/internal/entities"
	"github.com/mrlokans/tastier/internal/favsync"
	"github.com/mrlokans/tastier/internal/projection"
)

// FavoritesService is the part of favsync.Engine the API drives.
type FavoritesService interface {
	Current() favsync.Snapshot
	Subscribe() (<-chan favsync.Snapshot, func())
	ToggleFavorite(ctx context.Context, recipeID string, favorite bool) error
	SelectRecipe(ctx context.Context, recipeID string) (entities.FavoriteRecipe, error)
}

// FavoritesView is a projected snapshot as served to clients.
type FavoritesView struct {
	Items      []entities.FavoriteRecipe `json:"items"`
	IsOnline   bool                      `json:"isOnline"`
	Label      string                    `json:"label"`
	Mode       string                    `json:"mode"`
	UserID     string                    `json:"userId,omitempty"`
	Categories []string                  `json:"categories"`
	Total      int                       `json:"total"`
	Degraded   bool                      `json:"degraded,omitempty"`
	Version    uint64                    `json:"version"`
}

type FavoritesController struct {
	service FavoritesService
	log     *zap.Logger
}

func NewFavoritesController(service FavoritesService, log *zap.Logger) *FavoritesController {
	return &FavoritesController{service: service, log: log}
}

// parseFilter reads category, sort and q from the query string.
func parseFilter(c *gin.Context) (projection.Filter, error) {
	sortKey, err := projection.ParseSortKey(strings.TrimSpace(c.Query("sort")))
	if err != nil {
		return projection.Filter{}, err
	}
	return projection.Filter{
		Category: c.DefaultQuery("category", projection.AllCategories),
		Search:   c.Query("q"),
		Sort:     sortKey,
	}, nil
}

func buildView(snap favsync.Snapshot, filter projection.Filter) FavoritesView {
	return FavoritesView{
		Items:      projection.Project(snap.Items, filter),
		IsOnline:   snap.Online,
		Label:      snap.Label(),
		Mode:       snap.Mode.String(),
		UserID:     snap.UserID,
		Categories: projection.Categories(snap.Items),
		Total:      len(snap.Items),
		Degraded:   snap.Degraded,
		Version:    snap.Version,
	}
}

// List returns the current favorite list filtered and sorted per query.
func (fc *FavoritesController) List(c *gin.Context) {
	filter, err := parseFilter(c)
	if err != nil {
		respondBadRequest(c, err.Error())
		return
	}
	c.JSON(http.StatusOK, buildView(fc.service.Current(), filter))
}

// Stream pushes a "snapshot" event for every published snapshot until the
// client disconnects or the engine stops.
func (fc *FavoritesController) Stream(c *gin.Context) {
	filter, err := parseFilter(c)
	if err != nil {
		respondBadRequest(c, err.Error())
		return
	}

	snapshots, cancel := fc.service.Subscribe()
	defer cancel()

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")
	c.Status(http.StatusOK)
	c.Writer.Flush()

	ctx := c.Request.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case snap, ok := <-snapshots:
			if !ok {
				return
			}
			c.SSEvent("snapshot", buildView(snap, filter))
			c.Writer.Flush()
		}
	}
}

func (fc *FavoritesController) AddFavorite(c *gin.Context) {
	fc.toggle(c, true)
}

func (fc *FavoritesController) RemoveFavorite(c *gin.Context) {
	fc.toggle(c, false)
}

func (fc *FavoritesController) toggle(c *gin.Context, favorite bool) {
	recipeID := strings.TrimSpace(c.Param("id"))
	if recipeID == "" {
		respondBadRequest(c, "recipe id is required")
		return
	}

	if err := fc.service.ToggleFavorite(c.Request.Context(), recipeID, favorite); err != nil {
		fc.log.Info("favorite toggle rejected",
			zap.String("recipe_id", recipeID),
			zap.Bool("favorite", favorite),
			zap.Error(err))
		respondFavsyncError(c, err, "toggle favorite")
		return
	}

	respondSuccess(c, "favorite updated", gin.H{"recipeId": recipeID, "favorite": favorite})
}

// SelectRecipe returns the recipe to open, from the cache when possible.
func (fc *FavoritesController) SelectRecipe(c *gin.Context) {
	recipeID := strings.TrimSpace(c.Param("id"))
	if recipeID == "" {
		respondBadRequest(c, "recipe id is required")
		return
	}

	recipe, err := fc.service.SelectRecipe(c.Request.Context(), recipeID)
	if err != nil {
		respondFavsyncError(c, err, "select recipe")
		return
	}
	c.JSON(http.StatusOK, recipe)
}

// respondFavsyncError maps engine sentinels to status codes. The advisory is
// the message a client should show.
func respondFavsyncError(c *gin.Context, err error, context string) {
	switch {
	case errors.Is(err, favsync.ErrOffline):
		respondError(c, http.StatusConflict, "offline", favsync.Advisory(err))
	case errors.Is(err, favsync.ErrNoUser):
		respondError(c, http.StatusUnauthorized, "no active user", favsync.Advisory(err))
	case errors.Is(err, favsync.ErrNotFound):
		respondError(c, http.StatusNotFound, "recipe not found", favsync.Advisory(err))
	case errors.Is(err, favsync.ErrUpdateFailed):
		respondError(c, http.StatusBadGateway, "update failed", favsync.Advisory(err))
	case errors.Is(err, favsync.ErrStopped):
		respondError(c, http.StatusServiceUnavailable, "service stopping", "")
	default:
		respondInternalError(c, err, context)
	}
}
