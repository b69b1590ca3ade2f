package pipeline

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/selivandex/crypto-pulse/pkg/logger"
	"github.com/selivandex/crypto-pulse/pkg/models"
	"github.com/selivandex/crypto-pulse/pkg/timeutil"
)

// BackfillStore exposes posts whose normalized timestamp is still missing.
// FindMissingTimestamp pages with a (fetched_at, id) keyset cursor; a zero
// cursor starts from the oldest row.
type BackfillStore interface {
	FindMissingTimestamp(ctx context.Context, afterFetchedAt time.Time, afterID string, limit int) ([]models.Post, error)
	SetCreatedAt(ctx context.Context, id string, createdAt time.Time) error
}

// Backfiller re-parses raw timestamps for rows written before normalization
// existed. Rows that still fail to parse stay NULL and are left alone.
type Backfiller struct {
	store     BackfillStore
	batchSize int
}

// NewBackfiller creates a timestamp backfiller
func NewBackfiller(store BackfillStore, batchSize int) *Backfiller {
	if batchSize <= 0 {
		batchSize = 200
	}
	return &Backfiller{store: store, batchSize: batchSize}
}

// Run walks the whole backlog in batches and returns how many rows were
// repaired. The cursor pages past rows that still fail to parse, so a batch
// full of bad legacy rows cannot block parseable ones behind it.
func (b *Backfiller) Run(ctx context.Context) (int, error) {
	repaired := 0
	scanned := 0
	var cursorTime time.Time
	var cursorID string

	for {
		rows, err := b.store.FindMissingTimestamp(ctx, cursorTime, cursorID, b.batchSize)
		if err != nil {
			return repaired, err
		}
		if len(rows) == 0 {
			break
		}

		last := rows[len(rows)-1]
		cursorTime, cursorID = last.FetchedAt, last.ID
		scanned += len(rows)

		for _, row := range rows {
			if ctx.Err() != nil {
				return repaired, ctx.Err()
			}

			ts, err := timeutil.NormalizeString(row.CreatedRaw)
			if err != nil {
				continue
			}

			if err := b.store.SetCreatedAt(ctx, row.ID, ts); err != nil {
				logger.Warn("failed to backfill timestamp",
					zap.String("post_id", row.ID),
					zap.Error(err),
				)
				continue
			}
			repaired++
		}
	}

	if repaired > 0 {
		logger.Info("backfilled timestamps",
			zap.Int("repaired", repaired),
			zap.Int("scanned", scanned),
		)
	}

	return repaired, nil
}
