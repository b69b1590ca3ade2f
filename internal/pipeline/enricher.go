package pipeline

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/selivandex/crypto-pulse/internal/coins"
	"github.com/selivandex/crypto-pulse/internal/sentiment"
	"github.com/selivandex/crypto-pulse/pkg/logger"
	"github.com/selivandex/crypto-pulse/pkg/models"
	"github.com/selivandex/crypto-pulse/pkg/timeutil"
)

// Fetcher provides raw posts from a source
type Fetcher interface {
	FetchNewPosts(ctx context.Context) ([]models.RawPost, error)
}

// PostStore persists enriched posts
type PostStore interface {
	SavePosts(ctx context.Context, posts []models.Post) (int, error)
}

// AnalyticsSink receives enriched posts for offline analytics. Implementations
// must not block the pipeline.
type AnalyticsSink interface {
	Write(posts []models.Post)
}

// Enricher runs the fetch-enrich-persist cycle: raw posts get a normalized
// timestamp, a sentiment label and a keyword coin label before storage
type Enricher struct {
	fetcher  Fetcher
	store    PostStore
	analyzer *sentiment.Analyzer
	detector *coins.Detector
	sink     AnalyticsSink
	nowFn    func() time.Time
}

// NewEnricher creates the enrichment pipeline. The sink may be nil.
func NewEnricher(fetcher Fetcher, store PostStore, analyzer *sentiment.Analyzer, detector *coins.Detector, sink AnalyticsSink) *Enricher {
	return &Enricher{
		fetcher:  fetcher,
		store:    store,
		analyzer: analyzer,
		detector: detector,
		sink:     sink,
		nowFn:    time.Now,
	}
}

// Run executes one ingestion cycle and returns the number of newly stored
// posts
func (e *Enricher) Run(ctx context.Context) (int, error) {
	raw, err := e.fetcher.FetchNewPosts(ctx)
	if err != nil {
		return 0, fmt.Errorf("fetch failed: %w", err)
	}

	if len(raw) == 0 {
		logger.Debug("no new posts fetched")
		return 0, nil
	}

	enriched := e.Enrich(raw)

	saved, err := e.store.SavePosts(ctx, enriched)
	if err != nil {
		return 0, fmt.Errorf("failed to save posts: %w", err)
	}

	if e.sink != nil && saved > 0 {
		e.sink.Write(enriched)
	}

	logger.Info("ingestion cycle complete",
		zap.Int("fetched", len(raw)),
		zap.Int("saved", saved),
	)

	return saved, nil
}

// Enrich labels raw posts. Posts with unparseable timestamps are still
// labeled and kept; only the normalized column stays NULL.
func (e *Enricher) Enrich(raw []models.RawPost) []models.Post {
	now := e.nowFn().UTC()

	enriched := make([]models.Post, 0, len(raw))
	for _, rp := range raw {
		label, polarity := e.analyzer.Classify(rp.Title, rp.Selftext)

		post := models.Post{
			ID:         rp.ID,
			Title:      rp.Title,
			Selftext:   rp.Selftext,
			Subreddit:  rp.Subreddit,
			URL:        rp.URL,
			CreatedRaw: rawString(rp.CreatedRaw),
			Sentiment:  label,
			Polarity:   polarity,
			Coin:       e.detector.Detect(rp.Title, rp.Selftext),
			FetchedAt:  now,
		}

		ts, err := timeutil.Normalize(rp.CreatedRaw)
		if err != nil {
			if !errors.Is(err, timeutil.ErrUnparseableTimestamp) {
				logger.Warn("timestamp normalization failed",
					zap.String("post_id", rp.ID),
					zap.Error(err),
				)
			}
		} else {
			post.CreatedAt = sql.NullTime{Time: ts, Valid: true}
		}

		enriched = append(enriched, post)
	}

	return enriched
}

// rawString keeps the source timestamp representation as text so later
// backfills can re-parse it
func rawString(raw interface{}) string {
	switch v := raw.(type) {
	case nil:
		return ""
	case string:
		return v
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case time.Time:
		return v.UTC().Format(time.RFC3339)
	case fmt.Stringer:
		return v.String()
	default:
		return fmt.Sprint(v)
	}
}
