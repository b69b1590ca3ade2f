package pipeline

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/selivandex/crypto-pulse/internal/coins"
	"github.com/selivandex/crypto-pulse/internal/sentiment"
	"github.com/selivandex/crypto-pulse/pkg/models"
)

type fakeFetcher struct {
	posts []models.RawPost
	err   error
}

func (f *fakeFetcher) FetchNewPosts(_ context.Context) ([]models.RawPost, error) {
	return f.posts, f.err
}

type fakePostStore struct {
	saved []models.Post
	seen  map[string]bool
}

func (f *fakePostStore) SavePosts(_ context.Context, posts []models.Post) (int, error) {
	if f.seen == nil {
		f.seen = make(map[string]bool)
	}
	saved := 0
	for _, p := range posts {
		if f.seen[p.ID] {
			continue
		}
		f.seen[p.ID] = true
		f.saved = append(f.saved, p)
		saved++
	}
	return saved, nil
}

type captureSink struct {
	writes [][]models.Post
}

func (c *captureSink) Write(posts []models.Post) {
	c.writes = append(c.writes, posts)
}

func newEnricher(fetcher Fetcher, store PostStore, sink AnalyticsSink) *Enricher {
	return NewEnricher(fetcher, store, sentiment.NewAnalyzer(), coins.NewDetector(coins.DefaultMappings()), sink)
}

func TestEnrichLabelsEveryPost(t *testing.T) {
	raw := []models.RawPost{
		{ID: "1", Title: "Bitcoin rally incoming, bullish moon", CreatedRaw: float64(1700000000)},
		{ID: "2", Title: "eth crash, dump and fear everywhere", Selftext: "ethereum is down", CreatedRaw: "2023-11-14T22:13:20Z"},
		{ID: "3", Title: "quiet day on the markets", CreatedRaw: float64(1700000000)},
	}

	e := newEnricher(nil, nil, nil)
	enriched := e.Enrich(raw)
	require.Len(t, enriched, 3)

	assert.Equal(t, models.SentimentPositive, enriched[0].Sentiment)
	assert.Equal(t, "BTC", enriched[0].Coin)

	assert.Equal(t, models.SentimentNegative, enriched[1].Sentiment)
	assert.Equal(t, "ETH", enriched[1].Coin)

	assert.Equal(t, models.SentimentNeutral, enriched[2].Sentiment)
	assert.Equal(t, models.CoinUnknown, enriched[2].Coin)
}

func TestEnrichNormalizesHeterogeneousTimestamps(t *testing.T) {
	want := time.Date(2023, 11, 14, 22, 13, 20, 0, time.UTC)

	raw := []models.RawPost{
		{ID: "unix", Title: "t", CreatedRaw: float64(1700000000)},
		{ID: "iso", Title: "t", CreatedRaw: "2023-11-14T22:13:20Z"},
		{ID: "native", Title: "t", CreatedRaw: want},
	}

	e := newEnricher(nil, nil, nil)
	enriched := e.Enrich(raw)

	for _, p := range enriched {
		require.True(t, p.CreatedAt.Valid, "post %s", p.ID)
		assert.True(t, p.CreatedAt.Time.Equal(want), "post %s", p.ID)
	}
}

func TestEnrichKeepsUnparseableTimestampPosts(t *testing.T) {
	raw := []models.RawPost{
		{ID: "broken", Title: "bitcoin is pumping", CreatedRaw: "garbage value"},
	}

	e := newEnricher(nil, nil, nil)
	enriched := e.Enrich(raw)
	require.Len(t, enriched, 1)

	// Still fully labeled, only the normalized column stays empty
	assert.False(t, enriched[0].CreatedAt.Valid)
	assert.Equal(t, "garbage value", enriched[0].CreatedRaw)
	assert.Equal(t, "BTC", enriched[0].Coin)
	assert.NotEmpty(t, enriched[0].Sentiment)
}

func TestEnrichPreservesRawRepresentation(t *testing.T) {
	raw := []models.RawPost{
		{ID: "float", Title: "t", CreatedRaw: float64(1700000000)},
		{ID: "text", Title: "t", CreatedRaw: "2023-11-14 22:13:20"},
	}

	e := newEnricher(nil, nil, nil)
	enriched := e.Enrich(raw)

	assert.Equal(t, "1700000000", enriched[0].CreatedRaw)
	assert.Equal(t, "2023-11-14 22:13:20", enriched[1].CreatedRaw)
}

func TestRunPersistsAndSinks(t *testing.T) {
	fetcher := &fakeFetcher{posts: []models.RawPost{
		{ID: "1", Title: "bitcoin moon", CreatedRaw: float64(1700000000)},
		{ID: "2", Title: "eth crash", CreatedRaw: float64(1700000100)},
	}}
	store := &fakePostStore{}
	sink := &captureSink{}

	e := newEnricher(fetcher, store, sink)

	saved, err := e.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, saved)
	assert.Len(t, store.saved, 2)
	require.Len(t, sink.writes, 1)
	assert.Len(t, sink.writes[0], 2)

	// Both stores must see the same fetch instant for the same post.
	for i, p := range store.saved {
		assert.False(t, p.FetchedAt.IsZero())
		assert.True(t, p.FetchedAt.Equal(sink.writes[0][i].FetchedAt))
	}
}

func TestRunIdempotentOnDuplicates(t *testing.T) {
	fetcher := &fakeFetcher{posts: []models.RawPost{
		{ID: "1", Title: "bitcoin moon", CreatedRaw: float64(1700000000)},
	}}
	store := &fakePostStore{}

	e := newEnricher(fetcher, store, nil)

	saved, err := e.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, saved)

	// Second cycle fetches the same post; the store rejects the duplicate
	saved, err = e.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, saved)
	assert.Len(t, store.saved, 1)
}

func TestRunFetchError(t *testing.T) {
	fetcher := &fakeFetcher{err: errors.New("reddit unavailable")}
	store := &fakePostStore{}

	e := newEnricher(fetcher, store, nil)

	_, err := e.Run(context.Background())
	require.Error(t, err)
	assert.Empty(t, store.saved)
}

type fakeBackfillStore struct {
	rows    []models.Post
	updated map[string]time.Time
}

func (f *fakeBackfillStore) FindMissingTimestamp(_ context.Context, afterFetchedAt time.Time, afterID string, limit int) ([]models.Post, error) {
	var out []models.Post
	for _, row := range f.rows {
		if _, done := f.updated[row.ID]; done {
			continue
		}
		if row.FetchedAt.Before(afterFetchedAt) {
			continue
		}
		if row.FetchedAt.Equal(afterFetchedAt) && row.ID <= afterID {
			continue
		}
		out = append(out, row)
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

func (f *fakeBackfillStore) SetCreatedAt(_ context.Context, id string, createdAt time.Time) error {
	if f.updated == nil {
		f.updated = make(map[string]time.Time)
	}
	f.updated[id] = createdAt
	return nil
}

func TestBackfillerRepairsParseableRows(t *testing.T) {
	store := &fakeBackfillStore{rows: []models.Post{
		{ID: "good", CreatedRaw: "1700000000"},
		{ID: "bad", CreatedRaw: "definitely not a date"},
	}}

	b := NewBackfiller(store, 100)

	repaired, err := b.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, repaired)

	want := time.Date(2023, 11, 14, 22, 13, 20, 0, time.UTC)
	assert.True(t, store.updated["good"].Equal(want))
	_, touched := store.updated["bad"]
	assert.False(t, touched)
}

func TestBackfillerPagesPastUnparseableRows(t *testing.T) {
	base := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)

	var rows []models.Post
	for i := 0; i < 3; i++ {
		rows = append(rows, models.Post{
			ID:         fmt.Sprintf("junk-%d", i),
			CreatedRaw: "not a timestamp",
			FetchedAt:  base.Add(time.Duration(i) * time.Minute),
		})
	}
	rows = append(rows, models.Post{
		ID:         "legacy",
		CreatedRaw: "1700000000",
		FetchedAt:  base.Add(time.Hour),
	})

	store := &fakeBackfillStore{rows: rows}

	// Batch size equals the number of bad rows: without cursor paging the
	// parseable row behind them would never be reached.
	b := NewBackfiller(store, 3)

	repaired, err := b.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, repaired)

	want := time.Date(2023, 11, 14, 22, 13, 20, 0, time.UTC)
	assert.True(t, store.updated["legacy"].Equal(want))
	assert.Len(t, store.updated, 1)
}
