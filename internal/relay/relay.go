// Package relay moves scheduling events from the Postgres outbox to Redis Pub/Sub.
package relay

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/hackgods/clinic-appointment-scheduling/internal/appointment"
)

// Source hands out pending outbox rows. *appointment.PgStore implements it.
type Source interface {
	PublishPending(ctx context.Context, limit int, publish func(ctx context.Context, ev appointment.EventLog) error) (int, error)
}

// Publisher delivers one encoded event. *redisclient.Publisher implements it.
type Publisher interface {
	Publish(ctx context.Context, payload []byte) error
}

type Relay struct {
	source     Source
	publisher  Publisher
	interval   time.Duration
	batchSize  int
	runTimeout time.Duration
}

func New(source Source, publisher Publisher, interval time.Duration, batchSize int) *Relay {
	if batchSize <= 0 {
		batchSize = 100
	}
	return &Relay{
		source:     source,
		publisher:  publisher,
		interval:   interval,
		batchSize:  batchSize,
		runTimeout: 20 * time.Second,
	}
}

// RunOnce drains the outbox batch by batch until a batch comes back short or fails.
func (r *Relay) RunOnce(ctx context.Context) (int, error) {
	runCtx, cancel := context.WithTimeout(ctx, r.runTimeout)
	defer cancel()

	total := 0
	for {
		n, err := r.source.PublishPending(runCtx, r.batchSize, r.publish)
		total += n
		if err != nil {
			return total, err
		}
		if n < r.batchSize {
			return total, nil
		}
	}
}

func (r *Relay) publish(ctx context.Context, ev appointment.EventLog) error {
	return r.publisher.Publish(ctx, ev.Payload)
}

// Run drains the outbox at startup and then on every tick until ctx is done.
func (r *Relay) Run(ctx context.Context) {
	log := zerolog.Ctx(ctx)

	r.tick(ctx)

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("shutdown signal received, stopping event relay")
			return
		case <-ticker.C:
			r.tick(ctx)
		}
	}
}

func (r *Relay) tick(ctx context.Context) {
	log := zerolog.Ctx(ctx)

	start := time.Now()
	n, err := r.RunOnce(ctx)
	if err != nil {
		log.Error().Err(err).Int("published", n).Msg("relay run failed")
		return
	}
	if n > 0 {
		log.Info().Int("published", n).Dur("took", time.Since(start)).Msg("relay run complete")
	}
}
