package worker

import (
	"context"
	"time"

	"github.com/rs/zerolog"
	"github.com/stemsi/labquiz/internal/model"
)

// MarksheetDebounce coalesces bursts of ledger writes (one submission appends
// a row per question) into a single regeneration.
const MarksheetDebounce = 250 * time.Millisecond

// MarksheetSource derives marksheet rows from the ledger.
type MarksheetSource interface {
	Marksheet(ctx context.Context) ([]model.MarksheetRow, error)
}

// MarksheetSink persists marksheet rows.
type MarksheetSink interface {
	Write(rows []model.MarksheetRow) error
}

// MarksheetWorker regenerates the marksheet artifacts after ledger changes.
type MarksheetWorker struct {
	source MarksheetSource
	sink   MarksheetSink
	signal chan struct{}
	log    zerolog.Logger
}

// NewMarksheetWorker creates a new MarksheetWorker.
func NewMarksheetWorker(source MarksheetSource, sink MarksheetSink, log zerolog.Logger) *MarksheetWorker {
	return &MarksheetWorker{
		source: source,
		sink:   sink,
		signal: make(chan struct{}, 1),
		log:    log.With().Str("component", "marksheet_worker").Logger(),
	}
}

// Notify schedules a regeneration. It never blocks.
func (w *MarksheetWorker) Notify() {
	select {
	case w.signal <- struct{}{}:
	default:
	}
}

// Start runs the worker loop until ctx is cancelled. Call in a goroutine.
// A pending regeneration is flushed before it returns.
func (w *MarksheetWorker) Start(ctx context.Context) {
	w.log.Info().Msg("Worker started")

	for {
		select {
		case <-ctx.Done():
			select {
			case <-w.signal:
				w.log.Info().Msg("Shutdown requested. Flushing marksheet...")
				w.Regenerate(context.Background())
			default:
			}
			w.log.Info().Msg("Worker stopped")
			return

		case <-w.signal:
			timer := time.NewTimer(MarksheetDebounce)
			regenCtx := ctx
			select {
			case <-ctx.Done():
				timer.Stop()
				regenCtx = context.Background()
			case <-timer.C:
			}
			// Writes that arrived during the debounce are covered by this pass.
			select {
			case <-w.signal:
			default:
			}
			w.Regenerate(regenCtx)
		}
	}
}

// Regenerate rebuilds the artifacts from the current ledger contents.
func (w *MarksheetWorker) Regenerate(ctx context.Context) {
	rows, err := w.source.Marksheet(ctx)
	if err != nil {
		w.log.Error().Err(err).Msg("Failed to read ledger for marksheet")
		return
	}
	if err := w.sink.Write(rows); err != nil {
		w.log.Error().Err(err).Msg("Failed to write marksheet")
		return
	}
	w.log.Debug().Int("students", len(rows)).Msg("Marksheet regenerated")
}
