package docstore

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/mrlokans/tastier/internal/entities"
	"github.com/mrlokans/tastier/internal/remote"
)

// Maximum ids per IN clause.
const inChunkSize = 500

type nudger interface {
	nudge()
	stop()
}

// watcher re-runs load and calls deliver whenever the result fingerprint
// differs from the last delivered one. The first result is always delivered.
type watcher[T any] struct {
	name     string
	interval time.Duration
	load     func(ctx context.Context) (T, error)
	deliver  func(T)
	log      *zap.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wake   chan struct{}
	once   sync.Once

	last      string
	delivered bool
}

func (w *watcher[T]) nudge() {
	select {
	case w.wake <- struct{}{}:
	default:
	}
}

func (w *watcher[T]) stop() {
	w.once.Do(w.cancel)
}

func (w *watcher[T]) run() {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		w.poll()
		select {
		case <-w.ctx.Done():
			return
		case <-ticker.C:
		case <-w.wake:
		}
	}
}

func (w *watcher[T]) poll() {
	result, err := w.load(w.ctx)
	if err != nil {
		if w.ctx.Err() == nil {
			w.log.Warn("subscription query failed", zap.String("query", w.name), zap.Error(err))
		}
		return
	}

	fp, err := fingerprint(result)
	if err != nil {
		w.log.Warn("subscription fingerprint failed", zap.String("query", w.name), zap.Error(err))
		return
	}
	if w.delivered && fp == w.last {
		return
	}
	if w.ctx.Err() != nil {
		return
	}

	w.last = fp
	w.delivered = true
	w.deliver(result)
}

func fingerprint(v any) (string, error) {
	blob, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(blob)
	return hex.EncodeToString(sum[:]), nil
}

func startWatcher[T any](ctx context.Context, s *Store, name string, load func(context.Context) (T, error), deliver func(T)) remote.Subscription {
	wctx, cancel := context.WithCancel(ctx)
	w := &watcher[T]{
		name:     name,
		interval: s.opts.PollInterval,
		load:     load,
		deliver:  deliver,
		log:      s.log,
		ctx:      wctx,
		cancel:   cancel,
		wake:     make(chan struct{}, 1),
	}

	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.watchers[id] = w
	s.mu.Unlock()

	go w.run()

	return remote.SubscriptionFunc(func() {
		w.stop()
		s.mu.Lock()
		delete(s.watchers, id)
		s.mu.Unlock()
	})
}

// nudge makes every open watcher re-run its query now.
func (s *Store) nudge() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, w := range s.watchers {
		w.nudge()
	}
}

func (s *Store) SubscribeFavorites(ctx context.Context, userID string, fn func([]entities.Favorite)) (remote.Subscription, error) {
	load := func(ctx context.Context) ([]entities.Favorite, error) {
		var favs []entities.Favorite
		err := s.db.WithContext(ctx).
			Where("user_id = ?", userID).
			Order("recipe_id ASC").
			Find(&favs).Error
		return favs, err
	}
	return startWatcher(ctx, s, "favorites", load, fn), nil
}

func (s *Store) SubscribeRecipes(ctx context.Context, ids []string, fn func([]entities.Recipe)) (remote.Subscription, error) {
	ids = dedupe(ids)
	load := func(ctx context.Context) ([]entities.Recipe, error) {
		recipes := make([]entities.Recipe, 0, len(ids))
		for start := 0; start < len(ids); start += inChunkSize {
			end := min(start+inChunkSize, len(ids))
			var chunk []entities.Recipe
			if err := s.db.WithContext(ctx).Where("id IN ?", ids[start:end]).Find(&chunk).Error; err != nil {
				return nil, err
			}
			recipes = append(recipes, chunk...)
		}
		sort.Slice(recipes, func(i, j int) bool { return recipes[i].ID < recipes[j].ID })
		return recipes, nil
	}
	return startWatcher(ctx, s, "recipes", load, fn), nil
}

func dedupe(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok || id == "" {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}
