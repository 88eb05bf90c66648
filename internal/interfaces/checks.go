package interfaces

// This file contains compile-time interface implementation checks.
// These ensure that concrete types satisfy their interfaces at compile time,
// catching missing methods before runtime.
//
// To verify all checks pass: go build ./internal/interfaces/...

import (
	"github.com/mrlokans/tastier/internal/connectivity"
	"github.com/mrlokans/tastier/internal/favsync"
	"github.com/mrlokans/tastier/internal/http"
	"github.com/mrlokans/tastier/internal/images"
	"github.com/mrlokans/tastier/internal/localcache"
	"github.com/mrlokans/tastier/internal/remote"
	"github.com/mrlokans/tastier/internal/remote/docstore"
	"github.com/mrlokans/tastier/internal/scheduler"
	"github.com/mrlokans/tastier/internal/storage"
	"github.com/mrlokans/tastier/internal/storage/providers/s3"
	"github.com/mrlokans/tastier/internal/tasks"
)

// =============================================================================
// Remote Store
// =============================================================================

var _ remote.Store = (*docstore.Store)(nil)

// =============================================================================
// Local Cache
// =============================================================================

var _ localcache.Backend = (*localcache.Store)(nil)
var _ localcache.Backend = (*localcache.Memory)(nil)
var _ favsync.LocalStore = (*localcache.Cache)(nil)

// =============================================================================
// Images
// =============================================================================

var _ favsync.ImageStore = (*images.Manager)(nil)
var _ images.Cacher = (*images.Manager)(nil)
var _ images.Scheduler = (*images.Pool)(nil)
var _ images.Scheduler = (*tasks.ImageQueue)(nil)
var _ storage.URLResolver = (*s3.Presigner)(nil)
var _ storage.URLResolver = storage.Resolvers(nil)

// =============================================================================
// Sync Engine
// =============================================================================

var _ favsync.Connectivity = (*connectivity.Monitor)(nil)
var _ connectivity.Prober = (*connectivity.HTTPProber)(nil)
var _ connectivity.Prober = (*connectivity.DialProber)(nil)
var _ http.FavoritesService = (*favsync.Engine)(nil)
var _ http.SessionService = (*favsync.Engine)(nil)
var _ scheduler.ImageSweeper = (*favsync.Engine)(nil)
