package snapshots

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/selivandex/crypto-pulse/pkg/models"
)

// Repository handles database operations for sentiment snapshots.
// Snapshots are append-only: re-aggregation inserts new rows and the read
// path takes the latest per bucket.
type Repository struct {
	db *sqlx.DB
}

// NewRepository creates new snapshots repository
func NewRepository(db *sqlx.DB) *Repository {
	return &Repository{db: db}
}

// SaveSnapshots appends snapshot rows
func (r *Repository) SaveSnapshots(ctx context.Context, snaps []models.SentimentSnapshot) (int, error) {
	if len(snaps) == 0 {
		return 0, nil
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO sentiment_snapshots (
			bucket_time, coin, bucket_width,
			positive, neutral, negative, total, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`)
	if err != nil {
		return 0, fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer stmt.Close()

	saved := 0
	now := time.Now().UTC()
	for _, s := range snaps {
		_, err := stmt.ExecContext(ctx,
			s.BucketTime,
			s.Coin,
			s.BucketWidth,
			s.Positive,
			s.Neutral,
			s.Negative,
			s.Total,
			now,
		)
		if err == nil {
			saved++
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit: %w", err)
	}

	return saved, nil
}

// FindSeries returns the latest snapshot per bucket for a coin and width,
// from `since` on, ordered by bucket start ascending
func (r *Repository) FindSeries(ctx context.Context, coin, width string, since time.Time) ([]models.SentimentSnapshot, error) {
	query := `
		SELECT DISTINCT ON (bucket_time)
		       id, bucket_time, coin, bucket_width,
		       positive, neutral, negative, total, created_at
		FROM sentiment_snapshots
		WHERE LOWER(coin) = LOWER($1)
		  AND bucket_width = $2
		  AND bucket_time >= $3
		ORDER BY bucket_time ASC, created_at DESC
	`

	var snaps []models.SentimentSnapshot
	if err := r.db.SelectContext(ctx, &snaps, query, coin, width, since); err != nil {
		return nil, fmt.Errorf("failed to query snapshot series: %w", err)
	}

	return snaps, nil
}
