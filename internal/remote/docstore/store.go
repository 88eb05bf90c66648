// Package docstore implements remote.Store on a relational database through
// gorm. Postgres is the production backend; sqlite serves single-device
// setups and tests.
//
// Live queries are emulated by watchers that re-run their query on a poll
// interval, right after commits made through this Store, and on postgres
// change notifications when a listener is running.
package docstore

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormlogger "gorm.io/gorm/logger"

	"github.com/mrlokans/tastier/internal/entities"
	"github.com/mrlokans/tastier/internal/logger"
	"github.com/mrlokans/tastier/internal/remote"
)

const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

// sqliteParams serialize writers at BEGIN so concurrent toggles wait on the
// busy timeout instead of failing a lock upgrade.
const sqliteParams = "_busy_timeout=5000&_journal_mode=WAL&_txlock=immediate"

type Options struct {
	Driver       string
	DSN          string
	PollInterval time.Duration
	TxTimeout    time.Duration
	MaxRetries   int
	RetryDelay   time.Duration
}

func (o *Options) setDefaults() {
	if o.PollInterval <= 0 {
		o.PollInterval = 5 * time.Second
	}
	if o.TxTimeout <= 0 {
		o.TxTimeout = 10 * time.Second
	}
	if o.MaxRetries < 0 {
		o.MaxRetries = 0
	}
	if o.RetryDelay <= 0 {
		o.RetryDelay = 50 * time.Millisecond
	}
}

type Store struct {
	db   *gorm.DB
	opts Options
	log  *zap.Logger

	mu       sync.Mutex
	watchers map[uint64]nudger
	nextID   uint64
}

var _ remote.Store = (*Store)(nil)

// Open connects to the database named by opts.
func Open(opts Options, log *zap.Logger) (*Store, error) {
	var dialector gorm.Dialector
	switch opts.Driver {
	case DriverPostgres:
		dialector = postgres.Open(opts.DSN)
	case DriverSQLite, "":
		opts.Driver = DriverSQLite
		dsn := opts.DSN
		if !strings.Contains(dsn, "?") {
			dsn += "?" + sqliteParams
		}
		dialector = sqlite.Open(dsn)
	default:
		return nil, fmt.Errorf("unsupported remote driver %q", opts.Driver)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to remote store: %w", err)
	}

	return New(db, opts, log), nil
}

// New wraps an open connection.
func New(db *gorm.DB, opts Options, log *zap.Logger) *Store {
	opts.setDefaults()
	return &Store{
		db:       db,
		opts:     opts,
		log:      logger.OrNop(log).Named("docstore"),
		watchers: make(map[uint64]nudger),
	}
}

// Migrate creates or updates the schema. On postgres it also installs the
// change notification triggers used by Listen.
func (s *Store) Migrate(ctx context.Context) error {
	db := s.db.WithContext(ctx)
	if err := db.AutoMigrate(&entities.User{}, &entities.Recipe{}, &entities.Favorite{}); err != nil {
		return fmt.Errorf("failed to migrate remote store: %w", err)
	}
	if s.opts.Driver != DriverPostgres {
		return nil
	}
	for _, stmt := range notifyTriggerSQL() {
		if err := db.Exec(stmt).Error; err != nil {
			return fmt.Errorf("failed to install notify trigger: %w", err)
		}
	}
	return nil
}

func (s *Store) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

func (s *Store) Close() error {
	s.mu.Lock()
	for id, w := range s.watchers {
		w.stop()
		delete(s.watchers, id)
	}
	s.mu.Unlock()

	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func (s *Store) GetUser(ctx context.Context, id string) (*entities.User, error) {
	var user entities.User
	if err := s.db.WithContext(ctx).First(&user, "id = ?", id).Error; err != nil {
		return nil, notFound(err, "user", id)
	}
	return &user, nil
}

func (s *Store) GetRecipe(ctx context.Context, id string) (*entities.Recipe, error) {
	var recipe entities.Recipe
	if err := s.db.WithContext(ctx).First(&recipe, "id = ?", id).Error; err != nil {
		return nil, notFound(err, "recipe", id)
	}
	return &recipe, nil
}

// UpsertUser creates or replaces a user record.
func (s *Store) UpsertUser(ctx context.Context, user *entities.User) error {
	if user.ID == "" {
		user.ID = uuid.NewString()
	}
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"name", "email"}),
	}).Create(user).Error
	if err != nil {
		return fmt.Errorf("upsert user %s: %w", user.ID, err)
	}
	s.nudge()
	return nil
}

// SeedRecipes creates or updates recipe content. Favorite counts of existing
// recipes are left untouched; they only change through ToggleFavorite.
func (s *Store) SeedRecipes(ctx context.Context, recipes []entities.Recipe) error {
	if len(recipes) == 0 {
		return nil
	}
	for i := range recipes {
		if recipes[i].ID == "" {
			recipes[i].ID = uuid.NewString()
		}
	}

	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"name", "description", "ingredients", "steps", "category",
			"duration", "image", "owner_id", "rating", "rating_count", "updated_at",
		}),
	}).Create(&recipes).Error
	if err != nil {
		return fmt.Errorf("seed recipes: %w", err)
	}
	s.nudge()
	return nil
}

// DeleteRecipe removes a recipe document. Membership records are left in
// place, as another device deleting a recipe would.
func (s *Store) DeleteRecipe(ctx context.Context, id string) error {
	res := s.db.WithContext(ctx).Delete(&entities.Recipe{}, "id = ?", id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("recipe %s: %w", id, remote.ErrNotFound)
	}
	s.nudge()
	return nil
}

func notFound(err error, kind, id string) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("%s %s: %w", kind, id, remote.ErrNotFound)
	}
	return fmt.Errorf("get %s %s: %w", kind, id, err)
}

// IsFavorite reports whether the membership record (userID, recipeID) exists.
func (s *Store) IsFavorite(ctx context.Context, userID, recipeID string) (bool, error) {
	var n int64
	err := s.db.WithContext(ctx).Model(&entities.Favorite{}).
		Where("user_id = ? AND recipe_id = ?", userID, recipeID).
		Count(&n).Error
	return n > 0, err
}
