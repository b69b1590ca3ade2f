package posts

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/selivandex/crypto-pulse/pkg/models"
)

// Repository handles database operations for posts
type Repository struct {
	db *sqlx.DB
}

// NewRepository creates new posts repository
func NewRepository(db *sqlx.DB) *Repository {
	return &Repository{db: db}
}

// SavePosts inserts enriched posts. Posts are immutable once fetched, so a
// replayed id is ignored and overlapping batches stay idempotent.
func (r *Repository) SavePosts(ctx context.Context, posts []models.Post) (int, error) {
	if len(posts) == 0 {
		return 0, nil
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO posts (
			id, title, selftext, subreddit, url,
			created_raw, created_at, sentiment, polarity, coin, fetched_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (id) DO NOTHING
	`)
	if err != nil {
		return 0, fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer stmt.Close()

	saved := 0
	for _, p := range posts {
		fetchedAt := p.FetchedAt
		if fetchedAt.IsZero() {
			fetchedAt = time.Now().UTC()
		}

		res, err := stmt.ExecContext(ctx,
			p.ID,
			p.Title,
			p.Selftext,
			p.Subreddit,
			p.URL,
			p.CreatedRaw,
			p.CreatedAt,
			p.Sentiment,
			p.Polarity,
			p.Coin,
			fetchedAt,
		)
		if err != nil {
			continue
		}
		if n, _ := res.RowsAffected(); n > 0 {
			saved++
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit: %w", err)
	}

	return saved, nil
}

// FindUnlabeled returns posts without a coin_ml label, oldest first,
// strictly after the (afterFetchedAt, afterID) keyset cursor. Callers page
// with the cursor so posts they could not label do not clog the queue head.
func (r *Repository) FindUnlabeled(ctx context.Context, afterFetchedAt time.Time, afterID string, limit int) ([]models.Post, error) {
	query := `
		SELECT id, title, selftext, subreddit, url,
		       created_raw, created_at, sentiment, polarity,
		       coin, coin_ml, ml_confidence, fetched_at
		FROM posts
		WHERE coin_ml IS NULL AND (fetched_at, id) > ($1, $2)
		ORDER BY fetched_at ASC, id ASC
		LIMIT $3
	`

	var posts []models.Post
	if err := r.db.SelectContext(ctx, &posts, query, afterFetchedAt, afterID, limit); err != nil {
		return nil, fmt.Errorf("failed to query unlabeled posts: %w", err)
	}

	return posts, nil
}

// CountUnlabeled counts posts without a coin_ml label
func (r *Repository) CountUnlabeled(ctx context.Context) (int64, error) {
	var count int64
	if err := r.db.GetContext(ctx, &count, `SELECT COUNT(*) FROM posts WHERE coin_ml IS NULL`); err != nil {
		return 0, fmt.Errorf("failed to count unlabeled posts: %w", err)
	}
	return count, nil
}

// SetMLCoin writes the ML label and confidence with an atomic absent-guard:
// a post that already has coin_ml is never overwritten
func (r *Repository) SetMLCoin(ctx context.Context, id, label string, confidence float64) (bool, error) {
	res, err := r.db.ExecContext(ctx, `
		UPDATE posts
		SET coin_ml = $2, ml_confidence = $3
		WHERE id = $1 AND coin_ml IS NULL
	`, id, label, confidence)
	if err != nil {
		return false, fmt.Errorf("failed to set ml coin: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read rows affected: %w", err)
	}

	return n > 0, nil
}

// FindByCoin returns posts whose keyword or ML coin label matches,
// case-insensitively. Time filtering happens at the aggregation layer
// because historical records carry inconsistent timestamp shapes.
func (r *Repository) FindByCoin(ctx context.Context, coin string) ([]models.Post, error) {
	query := `
		SELECT id, title, selftext, subreddit, url,
		       created_raw, created_at, sentiment, polarity,
		       coin, coin_ml, ml_confidence, fetched_at
		FROM posts
		WHERE LOWER(coin) = LOWER($1) OR LOWER(coin_ml) = LOWER($1)
		ORDER BY fetched_at ASC
	`

	var posts []models.Post
	if err := r.db.SelectContext(ctx, &posts, query, coin); err != nil {
		return nil, fmt.Errorf("failed to query posts by coin: %w", err)
	}

	return posts, nil
}

// DistinctCoins returns every coin label present in the store, keyword or ML
func (r *Repository) DistinctCoins(ctx context.Context) ([]string, error) {
	query := `
		SELECT DISTINCT label FROM (
			SELECT coin AS label FROM posts
			UNION
			SELECT coin_ml AS label FROM posts WHERE coin_ml IS NOT NULL
		) labels
		WHERE label IS NOT NULL AND label <> ''
		ORDER BY label
	`

	var coins []string
	if err := r.db.SelectContext(ctx, &coins, query); err != nil {
		return nil, fmt.Errorf("failed to query distinct coins: %w", err)
	}

	return coins, nil
}

// FindMissingTimestamp returns posts whose raw timestamp has not been
// normalized yet (legacy rows from earlier pipeline versions), oldest first,
// strictly after the (afterFetchedAt, afterID) keyset cursor. Rows that keep
// failing to parse are paged past instead of refetched.
func (r *Repository) FindMissingTimestamp(ctx context.Context, afterFetchedAt time.Time, afterID string, limit int) ([]models.Post, error) {
	query := `
		SELECT id, title, selftext, subreddit, url,
		       created_raw, created_at, sentiment, polarity,
		       coin, coin_ml, ml_confidence, fetched_at
		FROM posts
		WHERE created_at IS NULL AND created_raw <> ''
		  AND (fetched_at, id) > ($1, $2)
		ORDER BY fetched_at ASC, id ASC
		LIMIT $3
	`

	var posts []models.Post
	if err := r.db.SelectContext(ctx, &posts, query, afterFetchedAt, afterID, limit); err != nil {
		return nil, fmt.Errorf("failed to query posts missing timestamps: %w", err)
	}

	return posts, nil
}

// SetCreatedAt backfills the normalized timestamp for a legacy row
func (r *Repository) SetCreatedAt(ctx context.Context, id string, createdAt time.Time) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE posts SET created_at = $2 WHERE id = $1 AND created_at IS NULL
	`, id, createdAt)
	if err != nil {
		return fmt.Errorf("failed to backfill created_at: %w", err)
	}
	return nil
}
