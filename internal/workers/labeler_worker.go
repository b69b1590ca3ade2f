package workers

import (
	"context"

	"github.com/selivandex/crypto-pulse/internal/coins"
)

// LabelerWorker drives the ML coin-labeling stage
type LabelerWorker struct {
	labeler *coins.Labeler
}

// NewLabelerWorker creates new labeler worker
func NewLabelerWorker(labeler *coins.Labeler) *LabelerWorker {
	return &LabelerWorker{labeler: labeler}
}

func (w *LabelerWorker) Name() string {
	return "ml-labeler"
}

// Run executes one labeling run over the unlabeled backlog
func (w *LabelerWorker) Run(ctx context.Context) error {
	_, err := w.labeler.Run(ctx)
	return err
}
