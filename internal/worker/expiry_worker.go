package worker

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// ExpirySweepInterval is how often overdue sessions are looked for.
const ExpirySweepInterval = 5 * time.Second

// SessionExpirer submits sessions past their deadline and reports how many.
type SessionExpirer interface {
	ExpireOverdue(ctx context.Context) int
}

// ExpiryWorker periodically auto-submits overdue sessions as timeouts.
type ExpiryWorker struct {
	sessions SessionExpirer
	interval time.Duration
	log      zerolog.Logger
}

// NewExpiryWorker creates a new ExpiryWorker.
func NewExpiryWorker(sessions SessionExpirer, interval time.Duration, log zerolog.Logger) *ExpiryWorker {
	if interval <= 0 {
		interval = ExpirySweepInterval
	}
	return &ExpiryWorker{
		sessions: sessions,
		interval: interval,
		log:      log.With().Str("component", "expiry_worker").Logger(),
	}
}

// Start sweeps on every tick until ctx is cancelled. Call in a goroutine.
func (w *ExpiryWorker) Start(ctx context.Context) {
	w.log.Info().Dur("interval", w.interval).Msg("Worker started")

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.log.Info().Msg("Worker stopped")
			return
		case <-ticker.C:
			if n := w.sessions.ExpireOverdue(ctx); n > 0 {
				w.log.Info().Int("expired", n).Msg("Overdue sessions submitted")
			}
		}
	}
}
