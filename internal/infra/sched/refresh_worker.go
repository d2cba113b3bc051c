package sched

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"applyassist/internal/domain"
	"applyassist/internal/infra/logging"
)

// Refresher is the part of the entitlement use case the worker drives.
type Refresher interface {
	Refresh(ctx context.Context) error
}

// RefreshWorker periodically re-reads customer info and offerings so state
// recovers from missed push updates.
type RefreshWorker struct {
	interval time.Duration
	target   Refresher
	log      *zerolog.Logger
}

func NewRefreshWorker(interval time.Duration, target Refresher, logger *zerolog.Logger) *RefreshWorker {
	return &RefreshWorker{
		interval: interval,
		target:   target,
		log:      logging.Component(logger, "RefreshWorker"),
	}
}

// Run blocks until ctx is done. A non-positive interval disables the worker.
func (w *RefreshWorker) Run(ctx context.Context) error {
	if w.interval <= 0 {
		w.log.Info().Msg("periodic refresh disabled")
		return nil
	}
	w.log.Info().Dur("interval", w.interval).Msg("Starting refresh worker")
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.log.Info().Msg("Stopping refresh worker")
			return ctx.Err()
		case <-ticker.C:
			w.tick(ctx)
		}
	}
}

func (w *RefreshWorker) tick(ctx context.Context) {
	err := w.target.Refresh(ctx)
	switch {
	case err == nil:
		w.log.Debug().Msg("entitlements refreshed")
	case errors.Is(err, domain.ErrConfiguration):
		// not configured yet; Initialize will load state
		w.log.Debug().Err(err).Msg("refresh skipped")
	case errors.Is(err, context.Canceled):
	default:
		w.log.Warn().Err(err).Msg("periodic refresh failed")
	}
}
