package clickhouse

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/selivandex/crypto-pulse/pkg/logger"
	"github.com/selivandex/crypto-pulse/pkg/models"
)

// BatchWriter buffers enriched posts and writes them to ClickHouse in
// batches, off the ingestion path
type BatchWriter struct {
	repo        *Repository
	buffer      []models.Post
	bufferMu    sync.Mutex
	maxBatch    int
	flushTicker *time.Ticker
	ctx         context.Context
	cancel      context.CancelFunc
	wg          sync.WaitGroup
}

// NewBatchWriter creates new batch writer
func NewBatchWriter(repo *Repository, maxBatch int, maxWait time.Duration) *BatchWriter {
	if maxBatch <= 0 {
		maxBatch = 500
	}
	if maxWait <= 0 {
		maxWait = 30 * time.Second
	}

	ctx, cancel := context.WithCancel(context.Background())

	bw := &BatchWriter{
		repo:     repo,
		buffer:   make([]models.Post, 0, maxBatch),
		maxBatch: maxBatch,
		ctx:      ctx,
		cancel:   cancel,
	}

	bw.flushTicker = time.NewTicker(maxWait)

	bw.wg.Add(1)
	go bw.autoFlush()

	return bw
}

// Write adds posts to the buffer. A write that fills the buffer flushes it
// synchronously on the caller's goroutine; below the threshold the ticker
// picks it up and ClickHouse is never touched.
func (bw *BatchWriter) Write(posts []models.Post) {
	bw.bufferMu.Lock()
	bw.buffer = append(bw.buffer, posts...)
	shouldFlush := len(bw.buffer) >= bw.maxBatch
	bw.bufferMu.Unlock()

	if shouldFlush {
		bw.flush()
	}
}

// autoFlush flushes buffer periodically
func (bw *BatchWriter) autoFlush() {
	defer bw.wg.Done()

	for {
		select {
		case <-bw.flushTicker.C:
			bw.flush()
		case <-bw.ctx.Done():
			// Final flush before exit
			bw.flush()
			return
		}
	}
}

// flush writes buffered posts to ClickHouse via repository
func (bw *BatchWriter) flush() {
	bw.bufferMu.Lock()
	if len(bw.buffer) == 0 {
		bw.bufferMu.Unlock()
		return
	}

	toWrite := make([]models.Post, len(bw.buffer))
	copy(toWrite, bw.buffer)
	bw.buffer = bw.buffer[:0]
	bw.bufferMu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := bw.repo.SavePosts(ctx, toWrite); err != nil {
		logger.Error("failed to flush batch to ClickHouse",
			zap.Int("records", len(toWrite)),
			zap.Error(err),
		)
		return
	}

	logger.Debug("flushed batch to ClickHouse",
		zap.Int("records", len(toWrite)),
	)
}

// Close stops the writer and flushes remaining data
func (bw *BatchWriter) Close() error {
	bw.flushTicker.Stop()
	bw.cancel()
	bw.wg.Wait()
	return nil
}
