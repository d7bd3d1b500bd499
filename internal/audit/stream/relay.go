package stream

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"beacon/internal/audit"
)

// EntrySource is the slice of the audit store the relay reads. The relay is
// the only consumer of ListAfterSeq; caller-facing queries never cross
// tenants.
type EntrySource interface {
	ListAfterSeq(ctx context.Context, afterSeq int64, limit int) ([]audit.Entry, error)
	StreamOffset(ctx context.Context, consumer string) (int64, error)
	SetStreamOffset(ctx context.Context, consumer string, seq int64) error
}

// Sink is where relayed entries go. *Publisher satisfies it.
type Sink interface {
	Publish(ctx context.Context, entries []audit.Entry) error
}

const (
	relayConsumer    = "audit-stream-relay"
	defaultBatchSize = 200
	defaultInterval  = 5 * time.Second
)

// Relay moves committed ledger entries to the sink in sequence order,
// persisting its cursor after every acknowledged batch. The cursor is
// at-least-once: a crash between publish and cursor write replays the batch.
type Relay struct {
	source   EntrySource
	sink     Sink
	logger   *slog.Logger
	metrics  *Metrics
	batch    int
	interval time.Duration
}

// RelayOption configures a Relay.
type RelayOption func(*Relay)

// WithBatchSize bounds how many entries one tick relays.
func WithBatchSize(n int) RelayOption {
	return func(r *Relay) {
		if n > 0 {
			r.batch = n
		}
	}
}

// WithInterval sets the poll interval between drained ticks.
func WithInterval(d time.Duration) RelayOption {
	return func(r *Relay) {
		if d > 0 {
			r.interval = d
		}
	}
}

// WithMetrics attaches relay metrics.
func WithMetrics(m *Metrics) RelayOption {
	return func(r *Relay) { r.metrics = m }
}

func NewRelay(source EntrySource, sink Sink, logger *slog.Logger, opts ...RelayOption) *Relay {
	r := &Relay{
		source:   source,
		sink:     sink,
		logger:   logger,
		batch:    defaultBatchSize,
		interval: defaultInterval,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run polls until ctx is cancelled. Publish failures back off to the next
// tick instead of stopping the relay; the cursor guarantees nothing is
// skipped.
func (r *Relay) Run(ctx context.Context) error {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := r.drain(ctx); err != nil {
				if r.metrics != nil {
					r.metrics.PublishFailures.Inc()
				}
				r.logger.ErrorContext(ctx, "audit stream relay tick failed", "error", err)
			}
		}
	}
}

// drain relays full batches until the ledger has nothing new.
func (r *Relay) drain(ctx context.Context) error {
	for {
		offset, err := r.source.StreamOffset(ctx, relayConsumer)
		if err != nil {
			return fmt.Errorf("load relay cursor: %w", err)
		}

		entries, err := r.source.ListAfterSeq(ctx, offset, r.batch)
		if err != nil {
			return fmt.Errorf("load relay batch: %w", err)
		}
		if len(entries) == 0 {
			if r.metrics != nil {
				r.metrics.RelayLag.Set(0)
			}
			return nil
		}

		if err := r.sink.Publish(ctx, entries); err != nil {
			return err
		}

		last := entries[len(entries)-1].Seq
		if err := r.source.SetStreamOffset(ctx, relayConsumer, last); err != nil {
			return fmt.Errorf("advance relay cursor: %w", err)
		}
		if r.metrics != nil {
			r.metrics.EntriesPublished.Add(float64(len(entries)))
		}
		if len(entries) < r.batch {
			if r.metrics != nil {
				r.metrics.RelayLag.Set(0)
			}
			return nil
		}
	}
}
