// Package favsync keeps the active user's favorite recipes in sync between
// the remote document store and the on-device cache.
//
// The Engine runs in one of two modes. In Live mode it follows two chained
// remote subscriptions (membership ids, then the recipes for those ids),
// reconciles each delivery into the local cache and image directory, and
// publishes the reconciled list. In Cached mode it publishes the local cache
// as-is and refuses favorite changes.
//
// A single loop goroutine owns all engine state and is the only writer of
// the local cache and image directory. Remote callbacks, connectivity
// events, image download results and API calls are all turned into
// closures executed on that loop.
package favsync

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/mrlokans/tastier/internal/connectivity"
	"github.com/mrlokans/tastier/internal/entities"
	"github.com/mrlokans/tastier/internal/images"
	"github.com/mrlokans/tastier/internal/logger"
	"github.com/mrlokans/tastier/internal/remote"
)

type Mode int

const (
	ModeCached Mode = iota
	ModeLive
)

func (m Mode) String() string {
	if m == ModeLive {
		return "live"
	}
	return "cached"
}

// Connectivity is the subset of connectivity.Monitor the engine needs.
type Connectivity interface {
	Online() bool
	Subscribe() (<-chan connectivity.Event, func())
}

// LocalStore persists favorite snapshots on the device.
type LocalStore interface {
	Put(ctx context.Context, r entities.FavoriteRecipe) (bool, error)
	Get(ctx context.Context, id string) (entities.FavoriteRecipe, error)
	Remove(ctx context.Context, id string) error
	Keys(ctx context.Context) ([]string, error)
	Load(ctx context.Context) ([]entities.FavoriteRecipe, error)
	Degraded() bool
}

// ImageStore is the read/delete side of the image directory. Downloads go
// through the Scheduler.
type ImageStore interface {
	Path(recipeID string) string
	Exists(recipeID string) bool
	Remove(recipeID string) error
	Sweep(keep []string) (int, error)
}

// Snapshot is one published state of the favorite list. Items is always a
// fully reconciled set and must not be modified by receivers.
type Snapshot struct {
	Items    []entities.FavoriteRecipe
	Online   bool
	Mode     Mode
	UserID   string
	Degraded bool
	Version  uint64
	At       time.Time
}

// Label is the connectivity label shown next to the list.
func (s Snapshot) Label() string {
	if s.Online {
		return "Online"
	}
	return "Offline"
}

type Deps struct {
	Remote       remote.Store
	Connectivity Connectivity
	Cache        LocalStore
	Images       ImageStore
	Scheduler    images.Scheduler
	Logger       *zap.Logger
}

const (
	commandBuffer      = 64
	resubscribeBackoff = 5 * time.Second
)

type Engine struct {
	remote remote.Store
	conn   Connectivity
	cache  LocalStore
	images ImageStore
	sched  images.Scheduler
	owners *owners
	log    *zap.Logger

	cmds      chan func()
	ctx       context.Context
	cancel    context.CancelFunc
	done      chan struct{}
	startOnce sync.Once
	stopOnce  sync.Once

	// Loop-owned state.
	mode     Mode
	userID   string
	pipeline *pipeline
	pipeGen  uint64
	items    []entities.FavoriteRecipe
	pending  map[string]string // recipe id -> image source being downloaded

	pubMu   sync.RWMutex
	current Snapshot
	subs    map[int]chan Snapshot
	nextSub int
}

// New creates an engine for userID (empty for signed out). Call Start to
// begin syncing.
func New(deps Deps, userID string) *Engine {
	log := logger.OrNop(deps.Logger).Named("favsync")
	ctx, cancel := context.WithCancel(context.Background())
	return &Engine{
		remote:  deps.Remote,
		conn:    deps.Connectivity,
		cache:   deps.Cache,
		images:  deps.Images,
		sched:   deps.Scheduler,
		owners:  newOwners(deps.Remote, log),
		log:     log,
		cmds:    make(chan func(), commandBuffer),
		ctx:     ctx,
		cancel:  cancel,
		done:    make(chan struct{}),
		userID:  userID,
		pending: make(map[string]string),
		subs:    make(map[int]chan Snapshot),
	}
}

// Start derives the initial mode from the connectivity monitor and starts
// the loop. It returns immediately.
func (e *Engine) Start() {
	e.startOnce.Do(func() {
		events, unsubscribe := e.conn.Subscribe()
		e.mode = ModeCached
		if e.conn.Online() {
			e.mode = ModeLive
		}
		e.log.Info("sync engine starting", zap.Stringer("mode", e.mode), zap.String("user_id", e.userID))

		go e.run(events, unsubscribe)
		e.post(e.enterMode)
	})
}

// Stop tears down subscriptions and waits for the loop to exit.
func (e *Engine) Stop() {
	e.stopOnce.Do(func() {
		e.cancel()
		e.startOnce.Do(func() { close(e.done) })
		<-e.done

		e.pubMu.Lock()
		for id, ch := range e.subs {
			close(ch)
			delete(e.subs, id)
		}
		e.pubMu.Unlock()
	})
}

func (e *Engine) run(events <-chan connectivity.Event, unsubscribe func()) {
	defer close(e.done)
	defer unsubscribe()
	defer e.closePipeline()

	var results <-chan images.Result
	if e.sched != nil {
		results = e.sched.Results()
	}

	for {
		select {
		case <-e.ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				events = nil
				continue
			}
			e.onConnectivity(ev)
		case res := <-results:
			e.applyImageResult(res)
		case fn := <-e.cmds:
			fn()
		}
	}
}

// post schedules fn on the loop. It drops fn once the engine is stopping.
func (e *Engine) post(fn func()) {
	select {
	case e.cmds <- fn:
	case <-e.ctx.Done():
	}
}

// do runs fn on the loop and waits for it to finish.
func (e *Engine) do(ctx context.Context, fn func()) error {
	finished := make(chan struct{})
	wrapped := func() {
		defer close(finished)
		fn()
	}

	select {
	case e.cmds <- wrapped:
	case <-e.ctx.Done():
		return ErrStopped
	case <-ctx.Done():
		return ctx.Err()
	}

	select {
	case <-finished:
		return nil
	case <-e.ctx.Done():
		return ErrStopped
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (e *Engine) onConnectivity(ev connectivity.Event) {
	mode := ModeCached
	if ev.Online {
		mode = ModeLive
	}
	if mode == e.mode {
		return
	}
	e.log.Info("connectivity changed", zap.Stringer("mode", mode))
	e.mode = mode
	e.enterMode()
}

// enterMode rebuilds engine state for the current mode and user.
func (e *Engine) enterMode() {
	e.closePipeline()

	e.owners.reset()

	if e.userID == "" {
		e.items = nil
		e.publish()
		return
	}

	// Until the first Live pass completes, the last reconciled state of this
	// user is what the device has.
	e.items = e.loadCached()
	if e.mode == ModeLive {
		e.openPipeline()
	}
	e.publish()
}

// loadCached returns the cached entries that belong to the active user.
// Entries without an owning user predate user tagging and are kept.
func (e *Engine) loadCached() []entities.FavoriteRecipe {
	items, err := e.cache.Load(e.ctx)
	if err != nil {
		e.log.Error("failed to load local favorites", zap.Error(err))
		return nil
	}
	out := items[:0]
	for _, it := range items {
		if it.FavoritedBy == "" || it.FavoritedBy == e.userID {
			out = append(out, it)
		}
	}
	return out
}

// SetUser switches the active user. An empty id signs out and publishes an
// empty list.
func (e *Engine) SetUser(ctx context.Context, userID string) error {
	return e.do(ctx, func() {
		if userID == e.userID {
			return
		}
		e.log.Info("active user changed", zap.String("user_id", userID))
		e.userID = userID
		e.enterMode()
	})
}

// SweepImages deletes image files that no local entry references. It runs
// on the loop so it cannot race reconciliation.
func (e *Engine) SweepImages(ctx context.Context) (int, error) {
	var (
		removed int
		err     error
	)
	if doErr := e.do(ctx, func() {
		var keys []string
		keys, err = e.cache.Keys(e.ctx)
		if err != nil {
			return
		}
		removed, err = e.images.Sweep(keys)
	}); doErr != nil {
		return 0, doErr
	}
	return removed, err
}

// UserID returns the active user.
func (e *Engine) UserID() string {
	return e.Current().UserID
}

// Current returns the latest published snapshot.
func (e *Engine) Current() Snapshot {
	e.pubMu.RLock()
	defer e.pubMu.RUnlock()
	return e.current
}

// Subscribe returns a channel that receives every published snapshot,
// starting with the current one. A slow receiver only sees the newest
// snapshot. The channel is closed by cancel or Stop.
func (e *Engine) Subscribe() (<-chan Snapshot, func()) {
	ch := make(chan Snapshot, 1)

	e.pubMu.Lock()
	id := e.nextSub
	e.nextSub++
	e.subs[id] = ch
	if e.current.Version > 0 {
		ch <- e.current
	}
	e.pubMu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			e.pubMu.Lock()
			defer e.pubMu.Unlock()
			if _, ok := e.subs[id]; ok {
				delete(e.subs, id)
				close(ch)
			}
		})
	}
}

func (e *Engine) publish() {
	items := make([]entities.FavoriteRecipe, len(e.items))
	copy(items, e.items)

	e.pubMu.Lock()
	defer e.pubMu.Unlock()

	e.current = Snapshot{
		Items:    items,
		Online:   e.mode == ModeLive,
		Mode:     e.mode,
		UserID:   e.userID,
		Degraded: e.cache.Degraded(),
		Version:  e.current.Version + 1,
		At:       time.Now().UTC(),
	}

	for _, ch := range e.subs {
		select {
		case <-ch:
		default:
		}
		ch <- e.current
	}
}
