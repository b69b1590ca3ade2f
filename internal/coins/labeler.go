package coins

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/selivandex/crypto-pulse/internal/adapters/ai"
	"github.com/selivandex/crypto-pulse/internal/adapters/redis"
	"github.com/selivandex/crypto-pulse/pkg/logger"
	"github.com/selivandex/crypto-pulse/pkg/models"
)

// PostStore is the storage surface the ML stage needs
type PostStore interface {
	// FindUnlabeled returns posts without a coin_ml label strictly after
	// the (afterFetchedAt, afterID) cursor, up to limit. A zero cursor
	// starts from the head of the queue.
	FindUnlabeled(ctx context.Context, afterFetchedAt time.Time, afterID string, limit int) ([]models.Post, error)

	// CountUnlabeled counts posts without a coin_ml label
	CountUnlabeled(ctx context.Context) (int64, error)

	// SetMLCoin writes coin_ml and ml_confidence only if the post does not
	// already have them. Returns false when the guard rejected the write.
	SetMLCoin(ctx context.Context, id, label string, confidence float64) (bool, error)
}

// Labeler is the incremental ML stage of coin attribution. It only ever
// touches posts without a coin_ml label, so reruns never reprocess a post.
type Labeler struct {
	store      PostStore
	classifier ai.Classifier
	lock       redis.RunLock
	batchSize  int
	pause      time.Duration
}

// NewLabeler creates new ML coin labeler
func NewLabeler(store PostStore, classifier ai.Classifier, lock redis.RunLock, batchSize int, pause time.Duration) *Labeler {
	if lock == nil {
		lock = redis.NoopLock{}
	}
	return &Labeler{
		store:      store,
		classifier: classifier,
		lock:       lock,
		batchSize:  batchSize,
		pause:      pause,
	}
}

// Run executes one labeling pass: fetch unlabeled batches until the store
// returns none, classifying each post and pausing between batches. Returns
// the number of posts labeled.
func (l *Labeler) Run(ctx context.Context) (int, error) {
	if l.classifier == nil || !l.classifier.IsEnabled() {
		logger.Debug("ml coin labeler disabled, skipping run")
		return 0, nil
	}

	acquired, err := l.lock.TryAcquire(ctx)
	if err != nil {
		return 0, err
	}
	if !acquired {
		logger.Info("ml labeling already running elsewhere, skipping")
		return 0, nil
	}
	defer l.lock.Release(ctx)

	remaining, err := l.store.CountUnlabeled(ctx)
	if err != nil {
		return 0, err
	}

	logger.Info("ml coin labeling started",
		zap.Int64("unlabeled", remaining),
		zap.Int("batch_size", l.batchSize),
	)

	processed := 0
	var cursorTime time.Time
	var cursorID string
	for {
		posts, err := l.store.FindUnlabeled(ctx, cursorTime, cursorID, l.batchSize)
		if err != nil {
			return processed, err
		}
		if len(posts) == 0 {
			break
		}

		// Advance the cursor past the whole batch before labeling, so
		// posts that cannot be labeled (empty text, a classifier that
		// keeps failing) never pin the queue head. They stay unlabeled
		// and become eligible again on the next run.
		last := posts[len(posts)-1]
		cursorTime, cursorID = last.FetchedAt, last.ID

		processed += l.labelBatch(ctx, posts)

		select {
		case <-ctx.Done():
			return processed, ctx.Err()
		case <-time.After(l.pause):
		}
	}

	logger.Info("ml coin labeling finished",
		zap.Int("labeled", processed),
	)

	return processed, nil
}

// labelBatch classifies one batch. A failure on one post is logged and must
// not abort the rest; the post stays unlabeled and is retried next run.
func (l *Labeler) labelBatch(ctx context.Context, posts []models.Post) int {
	labeled := 0

	for _, post := range posts {
		if ctx.Err() != nil {
			return labeled
		}

		text := strings.TrimSpace(post.Text())
		if text == "" {
			continue
		}

		label, confidence, err := l.classifier.ClassifyCoin(ctx, text)
		if err != nil {
			logger.Warn("coin classification failed",
				zap.String("post_id", post.ID),
				zap.Error(err),
			)
			continue
		}

		updated, err := l.store.SetMLCoin(ctx, post.ID, label, confidence)
		if err != nil {
			logger.Warn("failed to store ml coin label",
				zap.String("post_id", post.ID),
				zap.Error(err),
			)
			continue
		}
		if !updated {
			// Another runner got there first; the guard held.
			continue
		}

		labeled++
	}

	return labeled
}
