package workers

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/selivandex/crypto-pulse/internal/adapters/telegram"
	"github.com/selivandex/crypto-pulse/internal/aggregator"
	"github.com/selivandex/crypto-pulse/pkg/logger"
	"github.com/selivandex/crypto-pulse/pkg/models"
)

// SnapshotReader reads back persisted snapshots
type SnapshotReader interface {
	FindSeries(ctx context.Context, coin, width string, since time.Time) ([]models.SentimentSnapshot, error)
}

// DigestWorker sends the per-coin sentiment digest to Telegram
type DigestWorker struct {
	posts    aggregator.PostSource
	reader   SnapshotReader
	notifier *telegram.Notifier
	nowFn    func() time.Time
}

// NewDigestWorker creates new digest worker
func NewDigestWorker(posts aggregator.PostSource, reader SnapshotReader, notifier *telegram.Notifier) *DigestWorker {
	return &DigestWorker{
		posts:    posts,
		reader:   reader,
		notifier: notifier,
		nowFn:    time.Now,
	}
}

func (w *DigestWorker) Name() string {
	return "digest"
}

// Run sends the latest daily bucket per coin
func (w *DigestWorker) Run(ctx context.Context) error {
	coins, err := w.posts.DistinctCoins(ctx)
	if err != nil {
		return err
	}

	since := w.nowFn().UTC().Add(-48 * time.Hour)

	digests := make([]telegram.CoinDigest, 0, len(coins))
	for _, coin := range coins {
		snaps, err := w.reader.FindSeries(ctx, coin, string(aggregator.WidthDay), since)
		if err != nil {
			logger.Warn("failed to read snapshots for digest",
				zap.String("coin", coin),
				zap.Error(err),
			)
			continue
		}
		if len(snaps) == 0 {
			continue
		}

		latest := snaps[len(snaps)-1]
		digests = append(digests, telegram.CoinDigest{
			Coin:     latest.Coin,
			Total:    latest.Total,
			Positive: latest.Positive,
			Neutral:  latest.Neutral,
			Negative: latest.Negative,
		})
	}

	return w.notifier.SendDigest(digests)
}
