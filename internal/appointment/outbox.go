package appointment

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
)

// PublishPending hands up to limit unpublished events, oldest first, to publish
// and stamps the ones that went out. Rows are claimed with SKIP LOCKED so
// several relays can run side by side. The batch stops at the first publish
// error; that event and everything after it stay pending.
func (s *PgStore) PublishPending(ctx context.Context, limit int, publish func(ctx context.Context, ev EventLog) error) (int, error) {
	published := 0
	var publishErr error

	err := pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		rows, err := tx.Query(ctx, `
			SELECT id, event_type, appointment_id, payload, created_at, published_at
			FROM event_logs
			WHERE published_at IS NULL
			ORDER BY id
			LIMIT $1
			FOR UPDATE SKIP LOCKED
		`, limit)
		if err != nil {
			return fmt.Errorf("claim events: %w", err)
		}

		events, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (EventLog, error) {
			var ev EventLog
			err := row.Scan(&ev.ID, &ev.EventType, &ev.AppointmentID, &ev.Payload, &ev.CreatedAt, &ev.PublishedAt)
			return ev, err
		})
		if err != nil {
			return fmt.Errorf("claim events: %w", err)
		}

		var sent []int64
		for _, ev := range events {
			if publishErr = publish(ctx, ev); publishErr != nil {
				break
			}
			sent = append(sent, ev.ID)
		}

		if len(sent) > 0 {
			if _, err := tx.Exec(ctx, `
				UPDATE event_logs SET published_at = now() WHERE id = ANY($1)
			`, sent); err != nil {
				return fmt.Errorf("mark events published: %w", err)
			}
		}
		published = len(sent)
		return nil
	})
	if err != nil {
		return 0, err
	}
	if publishErr != nil {
		return published, fmt.Errorf("publish event: %w", publishErr)
	}

	return published, nil
}
