package docstore

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"
)

// NotifyChannel is the postgres channel the change triggers publish on.
const NotifyChannel = "tastier_changes"

func notifyTriggerSQL() []string {
	stmts := []string{
		`CREATE OR REPLACE FUNCTION tastier_notify_change() RETURNS trigger AS $$
BEGIN
	PERFORM pg_notify('` + NotifyChannel + `', TG_TABLE_NAME);
	RETURN NULL;
END;
$$ LANGUAGE plpgsql`,
	}
	for _, table := range []string{"recipes", "favorites", "users"} {
		trigger := "tastier_" + table + "_notify"
		stmts = append(stmts,
			fmt.Sprintf("DROP TRIGGER IF EXISTS %s ON %s", trigger, table),
			fmt.Sprintf("CREATE TRIGGER %s AFTER INSERT OR UPDATE OR DELETE ON %s FOR EACH STATEMENT EXECUTE FUNCTION tastier_notify_change()", trigger, table),
		)
	}
	return stmts
}

const (
	listenRetryMin = time.Second
	listenRetryMax = 30 * time.Second
)

// reconnectBackoff doubles the wait after each failed attempt up to max.
type reconnectBackoff struct {
	min, max time.Duration
	cur      time.Duration
}

func (b *reconnectBackoff) next() time.Duration {
	if b.cur == 0 {
		b.cur = b.min
	} else {
		b.cur = min(b.cur*2, b.max)
	}
	return b.cur
}

func (b *reconnectBackoff) reset() { b.cur = 0 }

// Listen subscribes to change notifications from other writers and wakes
// every watcher when one arrives. It reconnects until ctx is done. Only
// meaningful on postgres.
func (s *Store) Listen(ctx context.Context) {
	if s.opts.Driver != DriverPostgres {
		return
	}

	backoff := &reconnectBackoff{min: listenRetryMin, max: listenRetryMax}
	for ctx.Err() == nil {
		// A connection that got as far as LISTEN starts the next retry
		// from the minimum again.
		err := s.listenOnce(ctx, backoff.reset)
		if ctx.Err() != nil {
			return
		}
		wait := backoff.next()
		s.log.Warn("change listener disconnected", zap.Error(err), zap.Duration("retry_in", wait))

		select {
		case <-time.After(wait):
		case <-ctx.Done():
			return
		}
	}
}

func (s *Store) listenOnce(ctx context.Context, onListening func()) error {
	conn, err := pgx.Connect(ctx, s.opts.DSN)
	if err != nil {
		return fmt.Errorf("connect: %w", err)
	}
	defer conn.Close(context.Background())

	if _, err := conn.Exec(ctx, "LISTEN "+NotifyChannel); err != nil {
		return fmt.Errorf("listen: %w", err)
	}
	s.log.Info("listening for remote changes", zap.String("channel", NotifyChannel))
	onListening()

	for {
		n, err := conn.WaitForNotification(ctx)
		if err != nil {
			return err
		}
		s.log.Debug("remote change", zap.String("table", n.Payload))
		s.nudge()
	}
}
