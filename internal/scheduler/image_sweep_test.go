package scheduler

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingSweeper struct {
	calls int32
	err   error
}

func (c *countingSweeper) SweepImages(ctx context.Context) (int, error) {
	atomic.AddInt32(&c.calls, 1)
	return 2, c.err
}

func TestValidateCronSchedule(t *testing.T) {
	assert.NoError(t, ValidateCronSchedule("0 * * * *"))
	assert.NoError(t, ValidateCronSchedule("@hourly"))
	assert.NoError(t, ValidateCronSchedule("@every 1s"))
	assert.Error(t, ValidateCronSchedule("every hour"))
	assert.Error(t, ValidateCronSchedule("* * *"))
}

func TestImageSweepScheduler_StartStop(t *testing.T) {
	s := NewImageSweepScheduler(&countingSweeper{}, "0 * * * *", nil)

	require.NoError(t, s.Start(context.Background()))
	assert.True(t, s.IsRunning())
	require.NoError(t, s.Start(context.Background()), "second start is a no-op")

	next := s.NextRunTime()
	require.NotNil(t, next)
	assert.True(t, next.After(time.Now()))

	s.Stop()
	assert.False(t, s.IsRunning())
	assert.Nil(t, s.NextRunTime())
	s.Stop()
}

func TestImageSweepScheduler_InvalidSchedule(t *testing.T) {
	s := NewImageSweepScheduler(&countingSweeper{}, "not a schedule", nil)
	assert.Error(t, s.Start(context.Background()))
	assert.False(t, s.IsRunning())
}

func TestImageSweepScheduler_RunsOnSchedule(t *testing.T) {
	sweeper := &countingSweeper{err: errors.New("disk gone")}
	s := NewImageSweepScheduler(sweeper, "@every 1s", nil)

	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, s.Start(ctx))

	require.Eventually(t, func() bool {
		return atomic.LoadInt32(&sweeper.calls) >= 1
	}, 3*time.Second, 20*time.Millisecond)

	cancel()
	require.Eventually(t, func() bool { return !s.IsRunning() }, 2*time.Second, 10*time.Millisecond)
}

func TestImageSweepScheduler_RunNow(t *testing.T) {
	s := NewImageSweepScheduler(&countingSweeper{}, "@hourly", nil)
	removed, err := s.RunNow(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, removed)
}
