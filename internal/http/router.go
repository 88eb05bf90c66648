package http

import (
	"github.com/gin-gonic/gin"

	"github.com/mrlokans/tastier/internal/logger"
)

// NewRouter creates and configures the HTTP router with all endpoints.
func NewRouter(cfg RouterConfig) *gin.Engine {
	log := logger.OrNop(cfg.Logger).Named("http")

	router := gin.New()
	router.Use(RequestLogger(log))
	router.Use(gin.Recovery())

	health := NewHealthController(cfg.Checks, cfg.Version)
	router.GET("/health", health.Status)

	api := router.Group("/api")
	if cfg.Favorites != nil {
		favorites := NewFavoritesController(cfg.Favorites, log)
		api.GET("/favorites", favorites.List)
		api.GET("/favorites/stream", favorites.Stream)
		api.POST("/recipes/:id/favorite", favorites.AddFavorite)
		api.DELETE("/recipes/:id/favorite", favorites.RemoveFavorite)
		api.GET("/recipes/:id", favorites.SelectRecipe)
	}
	if cfg.Sessions != nil {
		sessions := NewSessionController(cfg.Sessions)
		api.GET("/session", sessions.Get)
		api.PUT("/session", sessions.Set)
	}

	return router
}
