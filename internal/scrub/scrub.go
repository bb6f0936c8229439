// Package scrub owns the compliance scrubber: a periodic pass that strips
// residual content and edges from tombstoned posts. The tombstone rows
// themselves are kept so ids are never re-ingested as fresh content.
package scrub

import (
	"context"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"

	"github.com/arrdem/skrode/internal/domain"
)

var tracer = otel.Tracer("scrub")

// Store is the slice of post persistence the scrubber uses. Each phase is
// independently idempotent, so a crash between phases is recovered by the
// next cycle.
type Store interface {
	DeleteTombstonedRelationships(ctx context.Context, serviceID string) (int64, error)
	DeleteTombstonedDistributions(ctx context.Context, serviceID string) (int64, error)
	ScrubTombstonedContent(ctx context.Context, serviceID string) (int64, error)
}

type Scrubber struct {
	store    Store
	service  domain.Service
	interval time.Duration
}

func NewScrubber(store Store, service domain.Service, interval time.Duration) *Scrubber {
	return &Scrubber{
		store:    store,
		service:  service,
		interval: interval,
	}
}

// Run sweeps on a fixed interval until cancelled. An immediate first sweep
// bounds the compliance window after a restart.
func (s *Scrubber) Run(ctx context.Context) error {
	if err := s.Sweep(ctx); err != nil {
		slog.Error("scrub sweep failed",
			slog.String("error", err.Error()),
			slog.String("module", "scrub"),
		)
	}

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}

		if err := s.Sweep(ctx); err != nil {
			slog.Error("scrub sweep failed",
				slog.String("error", err.Error()),
				slog.String("module", "scrub"),
			)
		}
	}
}

// Sweep runs one full scrub cycle: graph edges first, then distribution
// records, then the content fields themselves. Edges go before content so
// an interrupted cycle never leaves a scrubbed post still wired into the
// reply graph.
func (s *Scrubber) Sweep(ctx context.Context) error {
	ctx, span := tracer.Start(ctx, "Sweep")
	defer span.End()

	relationships, err := s.store.DeleteTombstonedRelationships(ctx, s.service.ID)
	if err != nil {
		return err
	}

	distributions, err := s.store.DeleteTombstonedDistributions(ctx, s.service.ID)
	if err != nil {
		return err
	}

	scrubbed, err := s.store.ScrubTombstonedContent(ctx, s.service.ID)
	if err != nil {
		return err
	}

	if relationships+distributions+scrubbed > 0 {
		slog.Info("scrub sweep complete",
			slog.Int64("relationships", relationships),
			slog.Int64("distributions", distributions),
			slog.Int64("posts", scrubbed),
			slog.String("module", "scrub"),
		)
	}
	return nil
}
