package tasks

import (
	"context"
	"fmt"
	"time"

	"github.com/mikestefanello/backlite"
	"go.uber.org/zap"

	"github.com/mrlokans/tastier/internal/images"
	"github.com/mrlokans/tastier/internal/logger"
)

// CacheImageTask downloads a recipe image into the local image directory.
type CacheImageTask struct {
	RecipeID string `json:"recipe_id"`
	Source   string `json:"source"`
}

// Config returns the queue configuration for image caching tasks. Failures
// are reported to the sync engine rather than retried here; the next
// reconciliation pass schedules a fresh attempt.
func (t CacheImageTask) Config() backlite.QueueConfig {
	return backlite.QueueConfig{
		Name:        "cache_image",
		MaxAttempts: 1,
		Timeout:     2 * time.Minute,
		Retention: &backlite.Retention{
			Duration:   24 * time.Hour,
			OnlyFailed: true,
			Data:       &backlite.RetainData{OnlyFailed: true},
		},
	}
}

// ImageQueue is an images.Scheduler backed by the persistent task queue.
type ImageQueue struct {
	client  *Client
	results chan images.Result
	log     *zap.Logger
}

var _ images.Scheduler = (*ImageQueue)(nil)

// NewImageQueue registers the cache_image queue on client. It must be called
// before client.Start.
func NewImageQueue(client *Client, cacher images.Cacher, log *zap.Logger) *ImageQueue {
	q := &ImageQueue{
		client:  client,
		results: make(chan images.Result, 64),
		log:     logger.OrNop(log).Named("image_queue"),
	}
	client.Register(backlite.NewQueue(CacheImageProcessor(cacher, q.report)))
	return q
}

func (q *ImageQueue) Schedule(_ context.Context, job images.Job) error {
	if _, err := q.client.Add(CacheImageTask{RecipeID: job.RecipeID, Source: job.Source}).Save(); err != nil {
		return fmt.Errorf("enqueue image %s: %w", job.RecipeID, err)
	}
	return nil
}

func (q *ImageQueue) Results() <-chan images.Result {
	return q.results
}

func (q *ImageQueue) report(ctx context.Context, res images.Result) {
	select {
	case q.results <- res:
	case <-ctx.Done():
		q.log.Warn("dropping image result", zap.String("recipe_id", res.RecipeID), zap.Error(ctx.Err()))
	}
}

// CacheImageProcessor creates a processor function for CacheImageTask. Every
// outcome, success or failure, is passed to report.
func CacheImageProcessor(cacher images.Cacher, report func(context.Context, images.Result)) backlite.QueueProcessor[CacheImageTask] {
	return func(ctx context.Context, task CacheImageTask) error {
		if cacher == nil {
			return fmt.Errorf("image cache not configured")
		}

		path, err := cacher.Cache(ctx, task.RecipeID, task.Source)
		report(ctx, images.Result{
			RecipeID: task.RecipeID,
			Source:   task.Source,
			Path:     path,
			Err:      err,
		})
		if err != nil {
			return fmt.Errorf("cache image for recipe %s: %w", task.RecipeID, err)
		}
		return nil
	}
}
