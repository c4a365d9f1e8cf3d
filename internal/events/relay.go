package events

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
)

// Relay moves outbox rows to the broker. Event rows are committed in the same
// transaction as the change they describe, and a crash between Publish and
// MarkPublished resends the batch tail, so delivery is at least once.
type Relay struct {
	outbox    Outbox
	publisher Publisher
	batchSize int
	logger    zerolog.Logger
}

func NewRelay(outbox Outbox, publisher Publisher, batchSize int, logger zerolog.Logger) *Relay {
	if batchSize <= 0 {
		batchSize = 100
	}
	return &Relay{
		outbox:    outbox,
		publisher: publisher,
		batchSize: batchSize,
		logger:    logger,
	}
}

// RunOnce publishes one batch in order and stops at the first failure, so
// events are never delivered out of order. It returns how many were published.
func (r *Relay) RunOnce(ctx context.Context) (int, error) {
	pending, err := r.outbox.Unpublished(ctx, r.batchSize)
	if err != nil {
		return 0, fmt.Errorf("load unpublished events: %w", err)
	}

	var published []int64
	var pubErr error
	for _, ev := range pending {
		if err := r.publisher.Publish(ctx, ev); err != nil {
			pubErr = err
			break
		}
		published = append(published, ev.ID)
	}

	if err := r.outbox.MarkPublished(ctx, published); err != nil {
		return 0, err
	}
	return len(published), pubErr
}

// Run drains the outbox once at startup and then every interval until ctx ends.
func (r *Relay) Run(ctx context.Context, interval time.Duration) {
	r.tick(ctx)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			r.logger.Info().Msg("shutdown signal received, stopping event relay")
			return
		case <-ticker.C:
			r.tick(ctx)
		}
	}
}

func (r *Relay) tick(ctx context.Context) {
	runCtx, cancel := context.WithTimeout(ctx, 20*time.Second)
	defer cancel()

	start := time.Now()
	n, err := r.RunOnce(runCtx)
	if err != nil {
		r.logger.Error().Err(err).Int("published", n).Msg("relay run error")
		return
	}
	if n > 0 {
		r.logger.Info().Int("published", n).Dur("took", time.Since(start)).Msg("relay run complete")
	}
}
