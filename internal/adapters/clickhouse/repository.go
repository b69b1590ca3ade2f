package clickhouse

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/selivandex/crypto-pulse/pkg/logger"
	"github.com/selivandex/crypto-pulse/pkg/models"
)

// Repository handles ClickHouse data operations
type Repository struct {
	db *sqlx.DB
}

// NewRepository creates new ClickHouse repository
func NewRepository(db *sqlx.DB) *Repository {
	return &Repository{db: db}
}

// EnsureSchema creates the analytics tables if they do not exist
func (r *Repository) EnsureSchema(ctx context.Context) error {
	_, err := r.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS posts_analytics (
			id          String,
			subreddit   String,
			sentiment   String,
			polarity    Float64,
			coin        String,
			created_at  DateTime,
			fetched_at  DateTime
		) ENGINE = ReplacingMergeTree(fetched_at)
		ORDER BY (coin, created_at, id)
	`)
	if err != nil {
		return fmt.Errorf("failed to create posts_analytics: %w", err)
	}

	return nil
}

// SavePosts writes enriched posts to the analytics table. Posts without a
// normalized timestamp fall back to fetch time so they stay queryable.
func (r *Repository) SavePosts(ctx context.Context, posts []models.Post) error {
	if len(posts) == 0 {
		return nil
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to start transaction: %w", err)
	}

	stmt, err := tx.Preparex(`
		INSERT INTO posts_analytics
		(id, subreddit, sentiment, polarity, coin, created_at, fetched_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		tx.Rollback()
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer stmt.Close()

	for _, post := range posts {
		createdAt := post.FetchedAt
		if post.CreatedAt.Valid {
			createdAt = post.CreatedAt.Time
		}

		_, err = stmt.ExecContext(ctx,
			post.ID,
			post.Subreddit,
			models.SentimentLabel(post.Sentiment),
			post.Polarity,
			post.CoinLabel(),
			createdAt.UTC(),
			post.FetchedAt.UTC(),
		)
		if err != nil {
			tx.Rollback()
			return fmt.Errorf("failed to insert post: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	logger.Debug("saved posts to ClickHouse",
		zap.Int("count", len(posts)),
	)

	return nil
}

// Close closes the underlying connection
func (r *Repository) Close() error {
	return r.db.Close()
}
