package aggregator

import (
	"context"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/selivandex/crypto-pulse/pkg/models"
	"github.com/selivandex/crypto-pulse/pkg/timeutil"
)

// PostSource provides labeled posts for a coin
type PostSource interface {
	FindByCoin(ctx context.Context, coin string) ([]models.Post, error)
	DistinctCoins(ctx context.Context) ([]string, error)
}

// Aggregator buckets labeled posts into sentiment time series
type Aggregator struct {
	store PostSource
	nowFn func() time.Time
}

// New creates an aggregator backed by the given post source
func New(store PostSource) *Aggregator {
	return &Aggregator{
		store: store,
		nowFn: time.Now,
	}
}

// Series returns the ascending bucket series for a coin over the given
// lookback window. Empty buckets are omitted.
func (a *Aggregator) Series(ctx context.Context, coin string, width BucketWidth, frame Timeframe) ([]models.SeriesPoint, error) {
	posts, err := a.store.FindByCoin(ctx, coin)
	if err != nil {
		return nil, err
	}

	cutoff := a.nowFn().UTC().Add(-frame.Duration())

	return BuildSeries(posts, width, cutoff), nil
}

// Coins returns every coin label present in storage
func (a *Aggregator) Coins(ctx context.Context) ([]string, error) {
	return a.store.DistinctCoins(ctx)
}

type bucketCounts struct {
	positive int
	neutral  int
	negative int
}

// BuildSeries is the pure bucketing core: posts in, bucket series out. Posts
// with no resolvable timestamp or outside the window are skipped. Same input
// always yields the same output.
func BuildSeries(posts []models.Post, width BucketWidth, cutoff time.Time) []models.SeriesPoint {
	buckets, keys := countBuckets(posts, width, cutoff)

	series := make([]models.SeriesPoint, 0, len(keys))
	for _, key := range keys {
		counts := buckets[key]
		total := counts.positive + counts.neutral + counts.negative

		series = append(series, models.SeriesPoint{
			Timestamp: key.Format(time.RFC3339),
			Positive:  percent(counts.positive, total),
			Neutral:   percent(counts.neutral, total),
			Negative:  percent(counts.negative, total),
		})
	}

	return series
}

// Snapshots converts bucketed posts into snapshot rows for persistence
func Snapshots(coin string, width BucketWidth, posts []models.Post, cutoff time.Time) []models.SentimentSnapshot {
	buckets, keys := countBuckets(posts, width, cutoff)

	snapshots := make([]models.SentimentSnapshot, 0, len(keys))
	for _, key := range keys {
		counts := buckets[key]
		total := counts.positive + counts.neutral + counts.negative

		snapshots = append(snapshots, models.SentimentSnapshot{
			BucketTime:  key,
			Coin:        coin,
			BucketWidth: string(width),
			Positive:    percent(counts.positive, total),
			Neutral:     percent(counts.neutral, total),
			Negative:    percent(counts.negative, total),
			Total:       total,
		})
	}

	return snapshots
}

func countBuckets(posts []models.Post, width BucketWidth, cutoff time.Time) (map[time.Time]*bucketCounts, []time.Time) {
	buckets := make(map[time.Time]*bucketCounts)

	for _, post := range posts {
		ts, ok := postTime(post)
		if !ok {
			continue
		}

		if ts.Before(cutoff) {
			continue
		}

		key := BucketStart(ts, width)

		counts, exists := buckets[key]
		if !exists {
			counts = &bucketCounts{}
			buckets[key] = counts
		}

		switch models.SentimentLabel(post.Sentiment) {
		case models.SentimentPositive:
			counts.positive++
		case models.SentimentNegative:
			counts.negative++
		default:
			counts.neutral++
		}
	}

	keys := make([]time.Time, 0, len(buckets))
	for key := range buckets {
		keys = append(keys, key)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i].Before(keys[j]) })

	return buckets, keys
}

// postTime resolves a post's timestamp, preferring the normalized column and
// falling back to re-parsing the raw value kept from ingestion
func postTime(post models.Post) (time.Time, bool) {
	if post.CreatedAt.Valid {
		return post.CreatedAt.Time.UTC(), true
	}

	if post.CreatedRaw != "" {
		ts, err := timeutil.NormalizeString(post.CreatedRaw)
		if err == nil {
			return ts, true
		}
	}

	return time.Time{}, false
}

// percent computes 100*count/total rounded to two decimal places
func percent(count, total int) float64 {
	if total == 0 {
		return 0
	}

	return decimal.NewFromInt(int64(count) * 100).
		Div(decimal.NewFromInt(int64(total))).
		Round(2).
		InexactFloat64()
}
