package images

import (
	"context"
	"errors"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/mrlokans/tastier/internal/logger"
)

// ErrSchedulerClosed is returned by Schedule after Close.
var ErrSchedulerClosed = errors.New("images: scheduler closed")

// Job asks for the image at Source to be cached for RecipeID.
type Job struct {
	RecipeID string `json:"recipe_id"`
	Source   string `json:"source"`
}

// Result reports the outcome of a Job. Path is empty when Err is set.
type Result struct {
	RecipeID string
	Source   string
	Path     string
	Err      error
}

// Scheduler runs image jobs in the background and reports results on a
// channel. Schedule must not block on the download itself.
type Scheduler interface {
	Schedule(ctx context.Context, job Job) error
	Results() <-chan Result
}

// Cacher is the subset of Manager used by schedulers.
type Cacher interface {
	Cache(ctx context.Context, recipeID, ref string) (string, error)
}

// Pool runs jobs in goroutines, at most workers at a time.
type Pool struct {
	cacher  Cacher
	sem     *semaphore.Weighted
	results chan Result
	log     *zap.Logger

	mu     sync.Mutex
	closed bool
	ctx    context.Context
	cancel context.CancelFunc
	group  errgroup.Group
}

// NewPool creates a pool bounded to workers concurrent downloads.
func NewPool(cacher Cacher, workers int, log *zap.Logger) *Pool {
	if workers <= 0 {
		workers = 1
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Pool{
		cacher:  cacher,
		sem:     semaphore.NewWeighted(int64(workers)),
		results: make(chan Result, 64),
		log:     logger.OrNop(log).Named("image_pool"),
		ctx:     ctx,
		cancel:  cancel,
	}
}

func (p *Pool) Results() <-chan Result {
	return p.results
}

// Schedule starts job in the background. The download outlives ctx; it is
// bounded by Close and the manager's own timeout.
func (p *Pool) Schedule(_ context.Context, job Job) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return ErrSchedulerClosed
	}

	p.group.Go(func() error {
		if err := p.sem.Acquire(p.ctx, 1); err != nil {
			return nil
		}
		defer p.sem.Release(1)

		path, err := p.cacher.Cache(p.ctx, job.RecipeID, job.Source)
		if err != nil {
			p.log.Warn("image download failed",
				zap.String("recipe_id", job.RecipeID),
				zap.String("source", job.Source),
				zap.Error(err))
		}

		select {
		case p.results <- Result{RecipeID: job.RecipeID, Source: job.Source, Path: path, Err: err}:
		case <-p.ctx.Done():
		}
		return nil
	})
	return nil
}

// Close cancels pending jobs and waits for running ones to return.
func (p *Pool) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	p.mu.Unlock()

	p.cancel()
	return p.group.Wait()
}
