package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/selivandex/crypto-pulse/internal/adapters/ai"
	"github.com/selivandex/crypto-pulse/internal/adapters/clickhouse"
	"github.com/selivandex/crypto-pulse/internal/adapters/config"
	"github.com/selivandex/crypto-pulse/internal/adapters/database"
	"github.com/selivandex/crypto-pulse/internal/adapters/reddit"
	redisAdapter "github.com/selivandex/crypto-pulse/internal/adapters/redis"
	"github.com/selivandex/crypto-pulse/internal/adapters/telegram"
	"github.com/selivandex/crypto-pulse/internal/aggregator"
	"github.com/selivandex/crypto-pulse/internal/api"
	"github.com/selivandex/crypto-pulse/internal/coins"
	"github.com/selivandex/crypto-pulse/internal/pipeline"
	"github.com/selivandex/crypto-pulse/internal/posts"
	"github.com/selivandex/crypto-pulse/internal/sentiment"
	"github.com/selivandex/crypto-pulse/internal/snapshots"
	"github.com/selivandex/crypto-pulse/internal/workers"
	"github.com/selivandex/crypto-pulse/pkg/logger"
	"github.com/selivandex/crypto-pulse/pkg/worker"
)

const shutdownTimeout = 15 * time.Second

func main() {
	// Setup signal handling
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-sigChan
		fmt.Println("\nReceived interrupt signal, shutting down...")
		cancel()
	}()

	// Run application
	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	// Initialize logger
	if err := logger.Init(cfg.Logging.Level, cfg.Logging.File); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer logger.Sync()

	logger.Info("Crypto Pulse starting...",
		zap.Strings("subreddits", cfg.Reddit.Subreddits),
	)

	// Initialize database
	db, err := initDatabase(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	// Initialize Redis for the labeler run lock
	redisClient, err := redisAdapter.New(&cfg.Redis)
	if err != nil {
		return fmt.Errorf("failed to connect to redis: %w", err)
	}
	defer redisClient.Close()

	postRepo := posts.NewRepository(db.DB())
	snapshotRepo := snapshots.NewRepository(db.DB())

	// Optional ClickHouse analytics sink
	var sink pipeline.AnalyticsSink
	if cfg.ClickHouse.Enabled {
		chWriter, err := initClickHouse(ctx, cfg)
		if err != nil {
			return err
		}
		defer chWriter.Close()
		sink = chWriter
	}

	// Enrichment pipeline
	analyzer := sentiment.NewAnalyzer()
	detector := coins.NewDetector(coins.DefaultMappings())
	redditClient := reddit.NewClient(cfg.Reddit.Subreddits, cfg.Reddit.FetchLimit, cfg.Reddit.UserAgent)
	enricher := pipeline.NewEnricher(redditClient, postRepo, analyzer, detector, sink)
	backfiller := pipeline.NewBackfiller(postRepo, 200)

	// ML coin labeler with a distributed run lock
	classifier := ai.NewOpenAIClassifier(&cfg.Classifier)
	runLock := redisClient.NewRunLock("ml-labeler", 10*time.Minute)
	labeler := coins.NewLabeler(postRepo, classifier, runLock, cfg.Pipeline.LabelBatchSize, cfg.Pipeline.LabelBatchPause)

	// Aggregation and live fanout
	agg := aggregator.New(postRepo)
	broadcaster := api.NewBroadcaster()

	// Background workers
	group := worker.NewGroup(ctx)
	if cfg.Reddit.Enabled {
		group.Add(workers.NewIngestWorker(enricher, backfiller), cfg.Pipeline.FetchInterval)
	}
	group.Add(workers.NewLabelerWorker(labeler), cfg.Pipeline.LabelInterval)
	group.Add(workers.NewSnapshotWorker(postRepo, snapshotRepo, broadcaster), cfg.Pipeline.SnapshotInterval)

	// Optional Telegram digest
	if cfg.Telegram.BotToken != "" {
		notifier, err := telegram.NewNotifier(cfg.Telegram.BotToken, cfg.Telegram.ChatID)
		if err != nil {
			logger.Error("failed to create telegram notifier", zap.Error(err))
		} else {
			group.Add(workers.NewDigestWorker(postRepo, snapshotRepo, notifier), 24*time.Hour)
		}
	}

	group.Start()
	defer group.Stop(shutdownTimeout)

	// Query API
	apiServer := api.NewServer(cfg.API.Port, agg, broadcaster, map[string]api.HealthChecker{
		"database": db,
		"redis":    redisClient,
	})

	go func() {
		if err := apiServer.Start(); err != nil {
			logger.Error("api server error", zap.Error(err))
		}
	}()
	apiServer.SetReady(true)

	// Keep service running
	<-ctx.Done()
	logger.Info("shutting down gracefully...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()

	if err := apiServer.Stop(shutdownCtx); err != nil {
		logger.Error("api server shutdown failed", zap.Error(err))
	}

	return nil
}

// initDatabase initializes database connection with sqlx
func initDatabase(cfg *config.Config) (*database.DB, error) {
	db, err := database.New(&cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// Run migrations
	migrationsPath := "./migrations"
	if err := database.RunMigrations(db.Conn(), migrationsPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	logger.Info("database connection established (sqlx)",
		zap.String("host", cfg.Database.Host),
		zap.String("database", cfg.Database.Name),
	)

	return db, nil
}

// initClickHouse initializes the analytics sink
func initClickHouse(ctx context.Context, cfg *config.Config) (*clickhouse.BatchWriter, error) {
	chDB, err := database.NewClickHouse(cfg.ClickHouse.GetDSN())
	if err != nil {
		return nil, fmt.Errorf("failed to connect to clickhouse: %w", err)
	}

	chRepo := clickhouse.NewRepository(chDB.DB())
	if err := chRepo.EnsureSchema(ctx); err != nil {
		chDB.Close()
		return nil, fmt.Errorf("failed to prepare clickhouse schema: %w", err)
	}

	logger.Info("clickhouse analytics sink enabled",
		zap.String("host", cfg.ClickHouse.Host),
	)

	return clickhouse.NewBatchWriter(chRepo, 500, 30*time.Second), nil
}
