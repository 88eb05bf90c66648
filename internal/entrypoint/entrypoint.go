package entrypoint

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/afero"
	"go.uber.org/zap"

	"github.com/mrlokans/tastier/internal/config"
	"github.com/mrlokans/tastier/internal/connectivity"
	"github.com/mrlokans/tastier/internal/favsync"
	http_controllers "github.com/mrlokans/tastier/internal/http"
	"github.com/mrlokans/tastier/internal/images"
	"github.com/mrlokans/tastier/internal/localcache"
	"github.com/mrlokans/tastier/internal/logger"
	"github.com/mrlokans/tastier/internal/remote/docstore"
	"github.com/mrlokans/tastier/internal/scheduler"
	"github.com/mrlokans/tastier/internal/storage"
	s3provider "github.com/mrlokans/tastier/internal/storage/providers/s3"
	"github.com/mrlokans/tastier/internal/tasks"
)

// ShutdownFunc is called during graceful shutdown to clean up resources.
type ShutdownFunc func(ctx context.Context)

// App holds every long-lived component of the service.
type App struct {
	Config    *config.Config
	Log       *zap.Logger
	Local     *localcache.Store
	Remote    *docstore.Store
	Monitor   *connectivity.Monitor
	Images    *images.Manager
	Scheduler images.Scheduler
	Engine    *favsync.Engine
	Sweeper   *scheduler.ImageSweepScheduler

	taskClient *tasks.Client
	pool       *images.Pool
	ctx        context.Context
	cancel     context.CancelFunc
}

// OpenRemote connects to the remote document store described by cfg.
func OpenRemote(cfg *config.Config, log *zap.Logger) (*docstore.Store, error) {
	return docstore.Open(docstore.Options{
		Driver:       string(cfg.Remote.Driver),
		DSN:          cfg.Remote.DSN,
		PollInterval: cfg.Remote.PollInterval,
		TxTimeout:    cfg.Remote.TxTimeout,
		MaxRetries:   cfg.Remote.MaxRetries,
		RetryDelay:   cfg.Remote.RetryDelay,
	}, log)
}

// NewApp opens storage and builds the component graph. Nothing runs until
// Start is called.
func NewApp(cfg *config.Config, fs afero.Fs, log *zap.Logger) (*App, error) {
	log = logger.OrNop(log)
	ctx, cancel := context.WithCancel(context.Background())
	app := &App{Config: cfg, Log: log, ctx: ctx, cancel: cancel}

	ok := false
	defer func() {
		if !ok {
			app.close()
		}
	}()

	local, err := localcache.Open(cfg.Database.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to open local cache: %w", err)
	}
	app.Local = local

	app.Remote, err = OpenRemote(cfg, log)
	if err != nil {
		return nil, err
	}
	migrateCtx, migrateCancel := context.WithTimeout(ctx, cfg.Remote.TxTimeout)
	err = app.Remote.Migrate(migrateCtx)
	migrateCancel()
	if err != nil {
		// The remote store may be unreachable at boot; the service still
		// serves the local cache.
		log.Warn("remote migration failed", zap.Error(err))
	}

	var opts []images.Option
	if resolver := buildResolvers(ctx, cfg, log); resolver != nil {
		opts = append(opts, images.WithResolver(resolver))
	}
	app.Images, err = images.NewManager(fs, cfg.ImageDir(), cfg.Images.DownloadTimeout, log, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize image cache: %w", err)
	}

	if cfg.Tasks.Enabled {
		app.taskClient, err = tasks.NewClient(cfg.Database.Path, tasks.Config{
			Workers:         cfg.Tasks.Workers,
			ReleaseAfter:    cfg.Tasks.ReleaseAfter,
			CleanupInterval: cfg.Tasks.CleanupInterval,
		}, log)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize task queue: %w", err)
		}
		app.Scheduler = tasks.NewImageQueue(app.taskClient, app.Images, log)
	} else {
		app.pool = images.NewPool(app.Images, cfg.Images.Workers, log)
		app.Scheduler = app.pool
	}

	prober := connectivity.NewProber(cfg.Connectivity.ProbeURL, cfg.Connectivity.ProbeAddr)
	app.Monitor = connectivity.NewMonitor(prober, cfg.Connectivity.Timeout, log)

	app.Engine = favsync.New(favsync.Deps{
		Remote:       app.Remote,
		Connectivity: app.Monitor,
		Cache:        localcache.NewCache(local, log),
		Images:       app.Images,
		Scheduler:    app.Scheduler,
		Logger:       log,
	}, cfg.Session.UserID)

	if cfg.Sweep.Enabled {
		app.Sweeper = scheduler.NewImageSweepScheduler(app.Engine, cfg.Sweep.Schedule, log)
	}

	ok = true
	return app, nil
}

// buildResolvers returns the object-store resolvers for image references.
// A presigner that cannot be configured is logged and skipped.
func buildResolvers(ctx context.Context, cfg *config.Config, log *zap.Logger) storage.URLResolver {
	presigner, err := s3provider.New(ctx, s3provider.Config{
		Region:       cfg.S3.Region,
		Endpoint:     cfg.S3.Endpoint,
		AccessKey:    cfg.S3.AccessKey,
		SecretKey:    cfg.S3.SecretKey,
		UsePathStyle: cfg.S3.UsePathLike,
		TTL:          cfg.S3.PresignTTL,
	})
	if err != nil {
		log.Warn("s3 image references disabled", zap.Error(err))
		return nil
	}
	return storage.Resolvers{"s3": presigner}
}

// Start launches the background components in dependency order.
func (a *App) Start() error {
	if a.taskClient != nil {
		go a.taskClient.Start(a.ctx)
	}

	if a.Config.Remote.Notify {
		go a.Remote.Listen(a.ctx)
	}

	if err := a.Monitor.Start(a.ctx, a.Config.Connectivity.Schedule); err != nil {
		return fmt.Errorf("failed to start connectivity monitor: %w", err)
	}

	a.Engine.Start()

	if a.Sweeper != nil {
		if err := a.Sweeper.Start(a.ctx); err != nil {
			return fmt.Errorf("failed to start image sweep: %w", err)
		}
	}
	return nil
}

// Shutdown stops components in reverse order and releases storage.
func (a *App) Shutdown(ctx context.Context) {
	if a.Sweeper != nil {
		a.Sweeper.Stop()
	}
	if a.Engine != nil {
		a.Engine.Stop()
	}
	if a.Monitor != nil {
		a.Monitor.Stop()
	}
	if a.taskClient != nil {
		a.taskClient.Stop(ctx)
	}
	a.close()
}

func (a *App) close() {
	a.cancel()
	if a.pool != nil {
		if err := a.pool.Close(); err != nil {
			a.Log.Warn("error closing image pool", zap.Error(err))
		}
	}
	if a.taskClient != nil {
		if err := a.taskClient.Close(); err != nil {
			a.Log.Warn("error closing task client", zap.Error(err))
		}
	}
	if a.Remote != nil {
		if err := a.Remote.Close(); err != nil {
			a.Log.Warn("error closing remote store", zap.Error(err))
		}
	}
	if a.Local != nil {
		if err := a.Local.Close(); err != nil {
			a.Log.Warn("error closing local cache", zap.Error(err))
		}
	}
}

// HealthChecks reports the local cache as required and the remote side as
// degraded-only, since the service keeps serving cached favorites offline.
func (a *App) HealthChecks() []http_controllers.HealthCheck {
	return []http_controllers.HealthCheck{
		{Name: "database", Check: a.Local.Ping},
		{Name: "remote", Check: a.Remote.Ping, Degraded: true},
		{Name: "connectivity", Degraded: true, Check: func(context.Context) error {
			if !a.Monitor.Online() {
				return errors.New("offline")
			}
			return nil
		}},
	}
}

// Router builds the HTTP API over the engine.
func (a *App) Router(version string) *gin.Engine {
	return http_controllers.NewRouter(http_controllers.RouterConfig{
		Favorites: a.Engine,
		Sessions:  a.Engine,
		Checks:    a.HealthChecks(),
		Version:   version,
		Logger:    a.Log,
	})
}

func Serve(router *gin.Engine, cfg *config.Config, log *zap.Logger, onShutdown ShutdownFunc) {
	timeout := time.Duration(cfg.Global.ShutdownTimeoutInSeconds) * time.Second

	srv := &http.Server{
		Addr:    fmt.Sprintf("%s:%d", cfg.HTTP.Host, cfg.HTTP.Port),
		Handler: router,
	}

	go func() {
		log.Info("starting server", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("listen failed", zap.Error(err))
		}
	}()

	// SIGKILL can't be caught, so only INT and TERM are handled.
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("shutting down server", zap.Duration("timeout", timeout))

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	// Stop accepting requests first so open streams end before the engine
	// closes their channels.
	if err := srv.Shutdown(ctx); err != nil {
		log.Error("server shutdown", zap.Error(err))
	}

	if onShutdown != nil {
		onShutdown(ctx)
	}

	log.Info("server exiting")
}

func Run(cfg *config.Config, version string) {
	log, err := logger.Init(cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	if err := cfg.Validate(); err != nil {
		log.Fatal("invalid configuration", zap.Error(err))
	}

	log.Info("starting tastier", zap.String("version", version))

	if cfg.Log.Level != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}

	app, err := NewApp(cfg, afero.NewOsFs(), log)
	if err != nil {
		log.Fatal("failed to initialize", zap.Error(err))
	}
	if err := app.Start(); err != nil {
		app.Shutdown(context.Background())
		log.Fatal("failed to start", zap.Error(err))
	}

	Serve(app.Router(version), cfg, log, app.Shutdown)
}
