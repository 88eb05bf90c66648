// Package connectivity tracks network reachability and broadcasts every
// online/offline transition to its subscribers.
package connectivity

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/mrlokans/tastier/internal/logger"
)

// ErrUnsupported is returned by a Prober that cannot report reachability on
// this platform. The monitor then treats the device as online.
var ErrUnsupported = errors.New("connectivity: probing not supported")

// Prober reports whether the remote side is currently reachable.
type Prober interface {
	Probe(ctx context.Context) (bool, error)
}

// Event is delivered on every state transition.
type Event struct {
	Online bool
	At     time.Time
}

// Monitor holds the current connectivity state. The zero state is online.
type Monitor struct {
	prober  Prober
	timeout time.Duration
	log     *zap.Logger

	mu     sync.RWMutex
	online bool
	subs   map[int]chan Event
	nextID int

	cron    *cron.Cron
	running bool
}

// NewMonitor creates a monitor. prober may be nil, in which case the state
// only changes through Set.
func NewMonitor(prober Prober, timeout time.Duration, log *zap.Logger) *Monitor {
	if timeout <= 0 {
		timeout = 3 * time.Second
	}
	return &Monitor{
		prober:  prober,
		timeout: timeout,
		log:     logger.OrNop(log).Named("connectivity"),
		online:  true,
		subs:    make(map[int]chan Event),
	}
}

// Online returns the last known state.
func (m *Monitor) Online() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.online
}

// Subscribe returns a channel receiving every transition and a function that
// unsubscribes and closes the channel. Slow subscribers miss intermediate
// events but always see the latest one, since a full buffer is drained first.
func (m *Monitor) Subscribe() (<-chan Event, func()) {
	m.mu.Lock()
	defer m.mu.Unlock()

	id := m.nextID
	m.nextID++
	ch := make(chan Event, 1)
	m.subs[id] = ch

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			m.mu.Lock()
			defer m.mu.Unlock()
			if c, ok := m.subs[id]; ok {
				delete(m.subs, id)
				close(c)
			}
		})
	}
}

// Set records a reading and notifies subscribers if it differs from the
// current state. It reports whether a transition happened.
func (m *Monitor) Set(online bool) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.online == online {
		return false
	}
	m.online = online

	ev := Event{Online: online, At: time.Now()}
	for _, ch := range m.subs {
		select {
		case ch <- ev:
		default:
			// Replace the stale pending event with the newest one.
			select {
			case <-ch:
			default:
			}
			ch <- ev
		}
	}

	if online {
		m.log.Info("connectivity restored")
	} else {
		m.log.Warn("connectivity lost")
	}
	return true
}

// Check runs the prober once and records the result.
func (m *Monitor) Check(ctx context.Context) bool {
	if m.prober == nil {
		return m.Online()
	}

	ctx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()

	ok, err := m.prober.Probe(ctx)
	if errors.Is(err, ErrUnsupported) {
		ok = true
	} else if err != nil {
		m.log.Debug("probe failed", zap.Error(err))
		ok = false
	}

	m.Set(ok)
	return ok
}

// Start performs an initial check and then probes on the given cron
// schedule until ctx is cancelled or Stop is called.
func (m *Monitor) Start(ctx context.Context, schedule string) error {
	m.mu.Lock()
	if m.running {
		m.mu.Unlock()
		return nil
	}
	m.mu.Unlock()

	m.Check(ctx)

	if m.prober == nil {
		m.log.Info("no prober configured, assuming online")
		return nil
	}

	c := cron.New(cron.WithParser(cron.NewParser(
		cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor,
	)))
	if _, err := c.AddFunc(schedule, func() { m.Check(ctx) }); err != nil {
		return err
	}

	m.mu.Lock()
	m.cron = c
	m.running = true
	m.mu.Unlock()

	c.Start()
	m.log.Info("connectivity monitor started", zap.String("schedule", schedule))

	go func() {
		<-ctx.Done()
		m.Stop()
	}()
	return nil
}

// Stop halts scheduled probing. Subscribers stay registered.
func (m *Monitor) Stop() {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return
	}
	c := m.cron
	m.running = false
	m.cron = nil
	m.mu.Unlock()

	<-c.Stop().Done()
	m.log.Info("connectivity monitor stopped")
}
