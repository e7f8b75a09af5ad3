package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"github.com/fastevo/fastevo-upload-service/internal/domain/entity"
	"github.com/fastevo/fastevo-upload-service/internal/infra/config"
	"github.com/fastevo/fastevo-upload-service/internal/infra/email"
	"github.com/fastevo/fastevo-upload-service/internal/infra/ffmpeg"
	"github.com/fastevo/fastevo-upload-service/internal/infra/metrics"
	miniostorage "github.com/fastevo/fastevo-upload-service/internal/infra/minio"
	"github.com/fastevo/fastevo-upload-service/internal/infra/nativedecode"
	"github.com/fastevo/fastevo-upload-service/internal/infra/postgres"
	"github.com/fastevo/fastevo-upload-service/internal/infra/rabbitmq"
	"github.com/fastevo/fastevo-upload-service/internal/infra/tracing"
	"github.com/fastevo/fastevo-upload-service/internal/thumbnail"
	"github.com/fastevo/fastevo-upload-service/internal/transfer"
	"github.com/fastevo/fastevo-upload-service/internal/upload"
	"github.com/fastevo/fastevo-upload-service/internal/usecase"
	"github.com/fastevo/fastevo-upload-service/pkg/logger"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	fatalOnErr(err, "load config")

	log, err := logger.New(cfg.LogLevel)
	fatalOnErr(err, "init logger")
	defer log.Sync()

	log.Info("starting fastevo-upload-service")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Tracing (non-fatal if the collector is unavailable)
	tp, err := tracing.InitTracer(ctx, cfg.OTLPEndpoint)
	if err != nil {
		log.Warn("tracing init failed, continuing without tracing", zap.Error(err))
	} else {
		defer tp.Shutdown(ctx)
	}

	// Database
	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	fatalOnErr(err, "connect to postgres")
	defer pool.Close()

	// Migrations
	err = postgres.RunMigrations(cfg.DatabaseURL, "migrations")
	if err != nil {
		log.Warn("migration warning", zap.Error(err))
	}

	// MinIO
	storage, err := miniostorage.NewStorage(miniostorage.StorageConfig{
		Endpoint:        cfg.MinIOEndpoint,
		AccessKey:       cfg.MinIOAccessKey,
		SecretKey:       cfg.MinIOSecretKey,
		UseSSL:          cfg.MinIOUseSSL,
		IntakeBucket:    cfg.MinIOIntakeBucket,
		MediaBucket:     cfg.MinIOMediaBucket,
		ThumbnailBucket: cfg.MinIOThumbnailBucket,
		PresignExpiry:   time.Duration(cfg.PresignExpiryMinutes) * time.Minute,
	})
	fatalOnErr(err, "create minio storage")
	fatalOnErr(storage.EnsureBuckets(ctx), "ensure minio buckets")

	// RabbitMQ publisher connection
	rmqConn, err := amqp.Dial(cfg.RabbitMQURL)
	fatalOnErr(err, "connect to rabbitmq for publisher")
	defer rmqConn.Close()

	pub, err := rabbitmq.NewPublisher(rmqConn, cfg.RabbitMQExchange)
	fatalOnErr(err, "create rabbitmq publisher")

	statusPub := rabbitmq.NewStatusPublisher(pub)
	dlqPub := rabbitmq.NewDLQPublisher(pub, cfg.RabbitMQDLQ)

	// Infra adapters
	repo := postgres.NewUploadJobRepository(pool)
	notifier := email.NewSMTPNotifier(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPFrom, log)
	engineCap := ffmpeg.NewEngine(cfg.TempDir+"/engine", 0, log)
	decoder := nativedecode.New(log)

	// Core components
	thumbEngine := thumbnail.New(engineCap, decoder, log, thumbnail.Config{
		FrameTimeout:   time.Duration(cfg.FrameTimeoutMs) * time.Millisecond,
		BlackThreshold: cfg.BlackThreshold,
		MaxEdge:        cfg.ThumbnailMaxEdge,
	})
	executor := transfer.NewExecutor(nil, transfer.Config{
		MinSpeedBps:      cfg.TransferMinSpeedBps,
		BufferPercentage: cfg.TransferBufferPercentage,
		MaxTimeout:       time.Duration(cfg.TransferMaxTimeoutSec) * time.Second,
		MaxRetries:       cfg.TransferMaxRetries,
	}, log)
	orchestrator := upload.NewOrchestrator(executor, thumbEngine, storage, log)

	if cfg.EnginePreload {
		// Warm-up is purely an optimization; a false result is fine.
		if !thumbEngine.Preload(ctx) {
			log.Warn("thumbnail engine preload failed, will retry lazily")
		}
	}

	// Use case
	uc := usecase.NewProcessUploadUseCase(
		repo, storage, orchestrator,
		statusPub, dlqPub, notifier,
		log,
		usecase.ProcessUploadConfig{
			TempDir:     cfg.TempDir,
			MaxAttempts: cfg.MaxAttempts,
			ThumbnailDefaults: entity.ThumbnailRequest{
				SnapshotCount: cfg.SnapshotCount,
				Format:        entity.ThumbnailFormat(cfg.ThumbnailFormat),
				Method:        entity.ThumbnailMethod(cfg.ThumbnailMethod),
				Interval:      cfg.SnapshotInterval,
				IntervalMode:  entity.IntervalMode(cfg.IntervalMode),
			},
		},
	)

	// Metrics server
	metricsSrv := metrics.StartMetricsServer(cfg.MetricsPort, log)

	// Consumer (worker pool)
	consumer, err := rabbitmq.NewConsumer(rabbitmq.ConsumerConfig{
		URL:         cfg.RabbitMQURL,
		Queue:       cfg.RabbitMQUploadQueue,
		Exchange:    cfg.RabbitMQExchange,
		DLQ:         cfg.RabbitMQDLQ,
		StatusQueue: cfg.RabbitMQStatusQueue,
		Prefetch:    cfg.RabbitMQPrefetch,
		WorkerCount: cfg.WorkerCount,
		BaseDelayMs: cfg.RetryBaseDelayMs,
	}, uc.Execute, log)
	fatalOnErr(err, "create consumer")

	// Graceful shutdown
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigCh
		log.Info("received shutdown signal", zap.String("signal", sig.String()))
		cancel()
	}()

	log.Info("fastevo-upload-service started, consuming messages")

	if err := consumer.Start(ctx); err != nil {
		log.Error("consumer error", zap.Error(err))
	}

	// Shutdown
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	metricsSrv.Shutdown(shutdownCtx)

	consumer.Close()
	log.Info("fastevo-upload-service stopped")
}

func fatalOnErr(err error, msg string) {
	if err != nil {
		panic(msg + ": " + err.Error())
	}
}
