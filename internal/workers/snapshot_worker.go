package workers

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/selivandex/crypto-pulse/internal/aggregator"
	"github.com/selivandex/crypto-pulse/pkg/logger"
	"github.com/selivandex/crypto-pulse/pkg/models"
)

// snapshotLookback bounds how far back snapshots are rebuilt; matches the
// longest queryable timeframe
const snapshotLookback = 60 * 24 * time.Hour

// SnapshotStore persists aggregated snapshots
type SnapshotStore interface {
	SaveSnapshots(ctx context.Context, snaps []models.SentimentSnapshot) (int, error)
}

// SnapshotBroadcaster pushes fresh snapshots to live subscribers
type SnapshotBroadcaster interface {
	BroadcastSnapshots(snaps []models.SentimentSnapshot)
}

// SnapshotWorker rebuilds per-coin sentiment snapshots for every bucket
// width. Snapshots are append-only; each cycle inserts a fresh generation and
// readers pick the latest per bucket.
type SnapshotWorker struct {
	posts       aggregator.PostSource
	store       SnapshotStore
	broadcaster SnapshotBroadcaster
	nowFn       func() time.Time
}

// NewSnapshotWorker creates new snapshot worker. The broadcaster may be nil.
func NewSnapshotWorker(posts aggregator.PostSource, store SnapshotStore, broadcaster SnapshotBroadcaster) *SnapshotWorker {
	return &SnapshotWorker{
		posts:       posts,
		store:       store,
		broadcaster: broadcaster,
		nowFn:       time.Now,
	}
}

func (w *SnapshotWorker) Name() string {
	return "snapshot"
}

// Run rebuilds snapshots for every known coin
func (w *SnapshotWorker) Run(ctx context.Context) error {
	coins, err := w.posts.DistinctCoins(ctx)
	if err != nil {
		return err
	}

	cutoff := w.nowFn().UTC().Add(-snapshotLookback)

	total := 0
	fresh := make([]models.SentimentSnapshot, 0)

	for _, coin := range coins {
		posts, err := w.posts.FindByCoin(ctx, coin)
		if err != nil {
			logger.Warn("failed to load posts for snapshot",
				zap.String("coin", coin),
				zap.Error(err),
			)
			continue
		}

		for _, width := range aggregator.AllWidths() {
			snaps := aggregator.Snapshots(coin, width, posts, cutoff)
			if len(snaps) == 0 {
				continue
			}

			saved, err := w.store.SaveSnapshots(ctx, snaps)
			if err != nil {
				logger.Warn("failed to save snapshots",
					zap.String("coin", coin),
					zap.String("width", string(width)),
					zap.Error(err),
				)
				continue
			}
			total += saved

			if width == aggregator.WidthDay {
				fresh = append(fresh, snaps...)
			}
		}
	}

	if w.broadcaster != nil {
		w.broadcaster.BroadcastSnapshots(fresh)
	}

	logger.Info("snapshot cycle complete",
		zap.Int("coins", len(coins)),
		zap.Int("saved", total),
	)

	return nil
}
