package http

import (
	"go.uber.org/zap"
)

// RouterConfig contains all dependencies needed to create the HTTP router.
type RouterConfig struct {
	Favorites FavoritesService
	Sessions  SessionService
	Checks    []HealthCheck
	Version   string
	Logger    *zap.Logger
}
