package workers

import (
	"context"

	"github.com/selivandex/crypto-pulse/internal/pipeline"
)

// IngestWorker runs the fetch-enrich-persist cycle and repairs legacy
// timestamps as a side task
type IngestWorker struct {
	enricher   *pipeline.Enricher
	backfiller *pipeline.Backfiller
}

// NewIngestWorker creates new ingestion worker. The backfiller may be nil.
func NewIngestWorker(enricher *pipeline.Enricher, backfiller *pipeline.Backfiller) *IngestWorker {
	return &IngestWorker{
		enricher:   enricher,
		backfiller: backfiller,
	}
}

func (w *IngestWorker) Name() string {
	return "ingest"
}

// Run executes one ingestion cycle
func (w *IngestWorker) Run(ctx context.Context) error {
	if _, err := w.enricher.Run(ctx); err != nil {
		return err
	}

	if w.backfiller != nil {
		if _, err := w.backfiller.Run(ctx); err != nil {
			return err
		}
	}

	return nil
}
