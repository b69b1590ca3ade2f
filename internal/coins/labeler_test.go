package coins

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/selivandex/crypto-pulse/pkg/models"
)

// fakeStore keeps posts in memory and enforces the coin_ml absent-guard the
// way the SQL repository does
type fakeStore struct {
	posts     map[string]*models.Post
	order     []string
	setCalls  int
	findCalls int
}

func newFakeStore(posts ...models.Post) *fakeStore {
	s := &fakeStore{
		posts: make(map[string]*models.Post),
	}
	for i := range posts {
		p := posts[i]
		s.posts[p.ID] = &p
		s.order = append(s.order, p.ID)
	}
	return s
}

func (s *fakeStore) FindUnlabeled(ctx context.Context, afterFetchedAt time.Time, afterID string, limit int) ([]models.Post, error) {
	s.findCalls++
	var out []models.Post
	for _, id := range s.order {
		p := s.posts[id]
		if p.CoinML.Valid {
			continue
		}
		if p.FetchedAt.Before(afterFetchedAt) {
			continue
		}
		if p.FetchedAt.Equal(afterFetchedAt) && p.ID <= afterID {
			continue
		}
		out = append(out, *p)
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

func (s *fakeStore) CountUnlabeled(ctx context.Context) (int64, error) {
	var n int64
	for _, p := range s.posts {
		if !p.CoinML.Valid {
			n++
		}
	}
	return n, nil
}

func (s *fakeStore) SetMLCoin(ctx context.Context, id, label string, confidence float64) (bool, error) {
	s.setCalls++
	p, ok := s.posts[id]
	if !ok {
		return false, errors.New("not found")
	}
	if p.CoinML.Valid {
		return false, nil
	}
	p.CoinML = sql.NullString{String: label, Valid: true}
	p.MLConfidence = sql.NullFloat64{Float64: confidence, Valid: true}
	return true, nil
}

// fakeClassifier labels everything Bitcoin, failing on request
type fakeClassifier struct {
	calls  int
	failOn string
}

func (c *fakeClassifier) ClassifyCoin(ctx context.Context, text string) (string, float64, error) {
	c.calls++
	if c.failOn != "" && text == c.failOn {
		return "", 0, errors.New("model unavailable")
	}
	return "Bitcoin", 0.92, nil
}

func (c *fakeClassifier) GetName() string { return "fake" }
func (c *fakeClassifier) IsEnabled() bool { return true }

func post(id, title string) models.Post {
	return models.Post{ID: id, Title: title, Coin: models.CoinUnknown, FetchedAt: time.Now()}
}

func TestLabeler_LabelsAllUnlabeledPosts(t *testing.T) {
	store := newFakeStore(
		post("a", "bitcoin going up"),
		post("b", "btc discussion"),
		post("c", "more bitcoin talk"),
	)
	classifier := &fakeClassifier{}

	labeler := NewLabeler(store, classifier, nil, 2, time.Millisecond)

	n, err := labeler.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	for _, id := range []string{"a", "b", "c"} {
		p := store.posts[id]
		require.True(t, p.CoinML.Valid, "post %s should be labeled", id)
		assert.Equal(t, "Bitcoin", p.CoinML.String)
		assert.InDelta(t, 0.92, p.MLConfidence.Float64, 1e-9)
	}
}

func TestLabeler_SecondRunProcessesNothing(t *testing.T) {
	store := newFakeStore(
		post("a", "bitcoin going up"),
		post("b", "btc discussion"),
	)
	classifier := &fakeClassifier{}
	labeler := NewLabeler(store, classifier, nil, 10, time.Millisecond)

	n, err := labeler.Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, 2, n)

	firstLabels := map[string]string{}
	for id, p := range store.posts {
		firstLabels[id] = p.CoinML.String
	}
	callsAfterFirst := classifier.calls

	n, err = labeler.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, n, "second run must process zero posts")
	assert.Equal(t, callsAfterFirst, classifier.calls, "classifier must not be called again")

	for id, p := range store.posts {
		assert.Equal(t, firstLabels[id], p.CoinML.String, "labels must be unchanged")
	}
}

func TestLabeler_FailedPostDoesNotAbortBatch(t *testing.T) {
	store := newFakeStore(
		post("a", "bitcoin going up"),
		post("b", "poison"),
		post("c", "btc discussion"),
	)
	classifier := &fakeClassifier{failOn: "poison"}
	labeler := NewLabeler(store, classifier, nil, 10, time.Millisecond)

	n, err := labeler.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	assert.True(t, store.posts["a"].CoinML.Valid)
	assert.True(t, store.posts["c"].CoinML.Valid)
	assert.False(t, store.posts["b"].CoinML.Valid, "failed post stays unlabeled and eligible")
}

func TestLabeler_EmptyTextSkipped(t *testing.T) {
	store := newFakeStore(post("a", ""))
	classifier := &fakeClassifier{}
	labeler := NewLabeler(store, classifier, nil, 10, time.Millisecond)

	n, err := labeler.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, n)
	assert.Equal(t, 0, classifier.calls)
	// Run must terminate even though the post remains unlabeled.
}

func TestLabeler_FullBatchOfSkippedPostsDoesNotStarveBacklog(t *testing.T) {
	base := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)

	var seed []models.Post
	for i := 0; i < 20; i++ {
		seed = append(seed, models.Post{
			ID:        fmt.Sprintf("empty-%02d", i),
			Coin:      models.CoinUnknown,
			FetchedAt: base.Add(time.Duration(i) * time.Second),
		})
	}
	seed = append(seed, models.Post{
		ID:        "labelable",
		Title:     "bitcoin breaking out",
		Coin:      models.CoinUnknown,
		FetchedAt: base.Add(time.Hour),
	})

	store := newFakeStore(seed...)
	classifier := &fakeClassifier{}
	labeler := NewLabeler(store, classifier, nil, 20, time.Millisecond)

	n, err := labeler.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n, "post behind a batch of unlabelable ones must still be labeled")
	assert.Equal(t, 1, classifier.calls)
	assert.True(t, store.posts["labelable"].CoinML.Valid)

	// The empty posts stay eligible, and a rerun must terminate without
	// touching the classifier again.
	callsAfterFirst := classifier.calls
	n, err = labeler.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, n)
	assert.Equal(t, callsAfterFirst, classifier.calls)
}

type disabledClassifier struct{ *fakeClassifier }

func (disabledClassifier) IsEnabled() bool { return false }

func TestLabeler_DisabledClassifierSkipsRun(t *testing.T) {
	store := newFakeStore(post("a", "bitcoin"))
	labeler := NewLabeler(store, disabledClassifier{&fakeClassifier{}}, nil, 10, time.Millisecond)

	n, err := labeler.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, n)
	assert.Equal(t, 0, store.findCalls)
}
