package docstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/mattn/go-sqlite3"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/mrlokans/tastier/internal/entities"
	"github.com/mrlokans/tastier/internal/remote"
)

const maxRetryDelay = 2 * time.Second

var (
	incrementCount = gorm.Expr("favorite_count + 1")
	decrementCount = gorm.Expr("CASE WHEN favorite_count > 0 THEN favorite_count - 1 ELSE 0 END")
)

// ToggleFavorite sets or clears the membership record for (userID, recipeID)
// and adjusts the recipe's favorite count in the same transaction. The count
// only moves when the membership row actually changed, so repeating a toggle
// or retrying after a conflict never applies the delta twice.
func (s *Store) ToggleFavorite(ctx context.Context, userID, recipeID string, favorite bool) (*entities.Recipe, error) {
	ctx, cancel := context.WithTimeout(ctx, s.opts.TxTimeout)
	defer cancel()

	var recipe entities.Recipe
	err := s.withRetry(ctx, func() error {
		return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			return toggleTx(tx, userID, recipeID, favorite, &recipe)
		})
	})
	if err != nil {
		return nil, err
	}

	s.log.Debug("favorite toggled",
		zap.String("user_id", userID),
		zap.String("recipe_id", recipeID),
		zap.Bool("favorite", favorite),
		zap.Int64("favorite_count", recipe.FavoriteCount))

	s.nudge()
	return &recipe, nil
}

func toggleTx(tx *gorm.DB, userID, recipeID string, favorite bool, out *entities.Recipe) error {
	var exists int64
	if err := tx.Model(&entities.Recipe{}).Where("id = ?", recipeID).Count(&exists).Error; err != nil {
		return err
	}
	if exists == 0 {
		return fmt.Errorf("recipe %s: %w", recipeID, remote.ErrNotFound)
	}

	var res *gorm.DB
	if favorite {
		res = tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&entities.Favorite{
			UserID:    userID,
			RecipeID:  recipeID,
			CreatedAt: time.Now().UTC(),
		})
	} else {
		res = tx.Where("user_id = ? AND recipe_id = ?", userID, recipeID).Delete(&entities.Favorite{})
	}
	if res.Error != nil {
		return res.Error
	}

	if res.RowsAffected == 1 {
		expr := incrementCount
		if !favorite {
			expr = decrementCount
		}
		err := tx.Model(&entities.Recipe{}).
			Where("id = ?", recipeID).
			UpdateColumn("favorite_count", expr).Error
		if err != nil {
			return err
		}
	}

	return tx.First(out, "id = ?", recipeID).Error
}

// withRetry runs fn again with exponential backoff while it fails with a
// transient conflict, up to MaxRetries extra attempts.
func (s *Store) withRetry(ctx context.Context, fn func() error) error {
	delay := s.opts.RetryDelay
	for attempt := 0; ; attempt++ {
		err := fn()
		if err == nil || !IsConflict(err) {
			return err
		}
		if attempt >= s.opts.MaxRetries {
			return fmt.Errorf("%w after %d attempts: %v", remote.ErrConflict, attempt+1, err)
		}

		s.log.Debug("transaction conflict, retrying", zap.Int("attempt", attempt+1), zap.Error(err))

		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return fmt.Errorf("%w: %v", remote.ErrConflict, ctx.Err())
		}
		delay = min(delay*2, maxRetryDelay)
	}
}

// IsConflict reports whether err is a transient concurrency failure that a
// retry can resolve: sqlite busy/locked, postgres serialization failure or
// deadlock.
func IsConflict(err error) bool {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.Code == sqlite3.ErrBusy || sqliteErr.Code == sqlite3.ErrLocked
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "40001" || pgErr.Code == "40P01"
	}
	return false
}
