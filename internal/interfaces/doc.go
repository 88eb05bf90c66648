// Package interfaces documents the core abstractions used throughout the application.
//
// # Interface Categories
//
// ## Remote Store
//
//   - remote.Store: subscriptions and the favorite toggle transaction
//     (internal/remote/store.go). Implemented by docstore.Store over gorm.
//
// ## Device Storage
//
//   - localcache.Backend: key/blob persistence for favorite snapshots
//     (internal/localcache/store.go). Implemented by the sqlite Store and the
//     in-memory fallback.
//   - favsync.LocalStore: what the sync engine needs from the cache
//     (internal/favsync/engine.go). Implemented by localcache.Cache.
//   - favsync.ImageStore / images.Cacher: the image directory
//     (internal/images/manager.go).
//
// ## Background Work
//
//   - images.Scheduler: image downloads with results delivered back to the
//     engine. Implemented by images.Pool (in-process) and tasks.ImageQueue
//     (persistent backlite queue).
//   - storage.URLResolver: turns object references such as s3://bucket/key
//     into downloadable URLs (internal/storage/client.go).
//   - connectivity.Prober: reachability checks (internal/connectivity/probe.go).
//
// ## Presentation
//
//   - http.FavoritesService and http.SessionService: the API surface
//     (internal/http/favorites.go, internal/http/session.go). Implemented by
//     favsync.Engine.
//
// # Adding a New Object Store
//
// To support another reference scheme (e.g. gs://bucket/key):
//
//  1. Implement storage.URLResolver in internal/storage/providers/<name>/
//
//     func (r *Resolver) ResolveURL(ctx context.Context, ref storage.Ref) (string, error)
//
//     var _ storage.URLResolver = (*Resolver)(nil)
//
//  2. Register it under its scheme in entrypoint.buildResolvers.
//
// # Compile-Time Interface Checks
//
// All implementations should include compile-time checks to ensure they satisfy
// their interfaces. This catches missing methods at compile time rather than runtime:
//
//	var _ SomeInterface = (*MyImplementation)(nil)
//
// See checks.go for the full list.
package interfaces
