package realtime

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/rs/zerolog/log"
	"github.com/sqlc-dev/pqtype"
)

// PGListenerConfig configures the Postgres change listener.
type PGListenerConfig struct {
	DatabaseURL      string        // Postgres DSN for LISTEN/NOTIFY
	NotifyChannel    string        // Channel the change triggers notify on
	FallbackInterval time.Duration // How often to poll for missed changes
	MaxRetries       int
	RetryDelay       time.Duration
	PingInterval     time.Duration
	BatchSize        int
}

func DefaultPGListenerConfig() PGListenerConfig {
	return PGListenerConfig{
		NotifyChannel:    "relay_changes",
		FallbackInterval: 5 * time.Second,
		MaxRetries:       5,
		RetryDelay:       200 * time.Millisecond,
		PingInterval:     90 * time.Second,
		BatchSize:        200,
	}
}

// PGListener turns rows of the changes table into published Changes.
// Table triggers insert a change row and NOTIFY its id. The listener
// publishes every row whose published_at is still null, in seq order, and
// stamps it afterwards. A row committed late or a lost notification is
// picked up by the next notification or by the fallback poll.
type PGListener struct {
	db        *sql.DB
	listener  *pq.Listener
	publisher Publisher
	cfg       PGListenerConfig
}

func NewPGListener(db *sql.DB, publisher Publisher, cfg PGListenerConfig) (*PGListener, error) {
	l := pq.NewListener(
		cfg.DatabaseURL,
		10*time.Second,
		time.Minute,
		func(ev pq.ListenerEventType, err error) {
			if err != nil {
				log.Error().Err(err).Msg("listener event")
			}
		},
	)
	if err := l.Listen(cfg.NotifyChannel); err != nil {
		return nil, fmt.Errorf("failed to listen to channel: %w", err)
	}

	log.Info().
		Str("channel", cfg.NotifyChannel).
		Msg("listening for notifications")

	return &PGListener{
		db:        db,
		listener:  l,
		publisher: publisher,
		cfg:       cfg,
	}, nil
}

func (l *PGListener) Start(ctx context.Context) error {
	var pending int64
	if err := l.db.QueryRowContext(ctx, `SELECT count(*) FROM changes WHERE published_at IS NULL`).Scan(&pending); err != nil {
		return fmt.Errorf("failed to count unpublished changes: %w", err)
	}

	log.Info().
		Str("channel", l.cfg.NotifyChannel).
		Int64("pending", pending).
		Dur("ping_interval", l.cfg.PingInterval).
		Dur("fallback_interval", l.cfg.FallbackInterval).
		Msg("listener started")

	if err := l.catchUp(ctx); err != nil {
		log.Error().Err(err).Msg("failed to process pending changes")
	}

	pingTicker := time.NewTicker(l.cfg.PingInterval)
	fallbackTicker := time.NewTicker(l.cfg.FallbackInterval)
	defer pingTicker.Stop()
	defer fallbackTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("listener shutting down")
			return l.Stop()
		case note := <-l.listener.Notify:
			if note == nil {
				// nil notification means the connection was re-established
				continue
			}
			if err := l.handleNotification(ctx, note.Extra); err != nil {
				log.Error().Err(err).Msg("failed to handle notification")
			}
		case <-fallbackTicker.C:
			if err := l.catchUp(ctx); err != nil {
				log.Error().Err(err).Msg("failed to process missed changes")
			}
		case <-pingTicker.C:
			if err := l.listener.Ping(); err != nil {
				log.Error().Err(err).Msg("failed to ping listener")
			}
		}
	}
}

func (l *PGListener) Stop() error {
	return l.listener.Close()
}

// handleNotification handles a pg notification whose payload is a change id.
func (l *PGListener) handleNotification(ctx context.Context, extra string) error {
	id, err := uuid.Parse(extra)
	if err != nil {
		return fmt.Errorf("invalid change ID in notification: %w", err)
	}
	log.Debug().Str("change_id", id.String()).Msg("change notification")
	return l.catchUp(ctx)
}

// catchUp publishes every unpublished change. A change is only marked once
// its publish succeeded, so a failure leaves it for the next pass.
func (l *PGListener) catchUp(ctx context.Context) error {
	for {
		changes, err := l.fetchUnpublished(ctx)
		if err != nil {
			return err
		}
		for _, c := range changes {
			if err := l.publishWithRetry(ctx, c); err != nil {
				return err
			}
			if err := l.markPublished(ctx, c.ID); err != nil {
				return err
			}
		}
		if len(changes) < l.cfg.BatchSize {
			return nil
		}
	}
}

func (l *PGListener) markPublished(ctx context.Context, id uuid.UUID) error {
	if _, err := l.db.ExecContext(ctx, `UPDATE changes SET published_at = now() WHERE id = $1`, id); err != nil {
		return fmt.Errorf("failed to mark change %s published: %w", id, err)
	}
	return nil
}

func (l *PGListener) fetchUnpublished(ctx context.Context) ([]Change, error) {
	rows, err := l.db.QueryContext(ctx, `
		SELECT id, seq, table_name, op, room_id, row_id, row_data, created_at
		FROM changes
		WHERE published_at IS NULL
		ORDER BY seq
		LIMIT $1`, l.cfg.BatchSize)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch changes: %w", err)
	}
	defer rows.Close()

	var out []Change
	for rows.Next() {
		var (
			c     Change
			table string
			op    string
			row   pqtype.NullRawMessage
		)
		if err := rows.Scan(&c.ID, &c.Seq, &table, &op, &c.RoomID, &c.RowID, &row, &c.At); err != nil {
			return nil, fmt.Errorf("failed to scan change: %w", err)
		}
		c.Table = Table(table)
		c.Op = Op(op)
		if row.Valid {
			c.Row = row.RawMessage
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// publishWithRetry attempts to publish a change with a growing delay.
func (l *PGListener) publishWithRetry(ctx context.Context, c Change) error {
	var lastErr error

	for attempt := 0; attempt <= l.cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			delay := l.cfg.RetryDelay * time.Duration(attempt)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
		}

		if err := l.publisher.Publish(ctx, c); err != nil {
			lastErr = err
			log.Error().
				Err(err).
				Int("attempt", attempt+1).
				Str("change_id", c.ID.String()).
				Msg("failed to publish, retrying")
			continue
		}

		if attempt > 0 {
			log.Info().
				Int("attempt", attempt+1).
				Str("change_id", c.ID.String()).
				Msg("publish succeeded after retry")
		}
		return nil
	}

	return fmt.Errorf("publish failed after %d attempts: %w", l.cfg.MaxRetries+1, lastErr)
}
