package main

import (
	"context"
	"errors"
	"log"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/your-org/segmentflow/internal/fetch"
	"github.com/your-org/segmentflow/internal/media"
	"github.com/your-org/segmentflow/internal/stage"
	"github.com/your-org/segmentflow/internal/worker"
	"github.com/your-org/segmentflow/pkg/config"
	"github.com/your-org/segmentflow/pkg/logger"
	"github.com/your-org/segmentflow/pkg/queue"
	"github.com/your-org/segmentflow/pkg/storage/objectstore"
	"github.com/your-org/segmentflow/pkg/tracing"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	logr, err := logger.New(cfg.App.LogLevel, cfg.App.Environment)
	if err != nil {
		log.Fatalf("init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	traceShutdown, err := tracing.Init(ctx, tracing.Config{
		Endpoint:    cfg.Tracing.Endpoint,
		Insecure:    cfg.Tracing.Insecure,
		SampleRatio: cfg.Tracing.SampleRatio,
		Attributes:  tracing.ParseResourceAttributes(cfg.Tracing.ResourceAttr),
		ServiceName: cfg.App.Name + "-downloader",
	})
	if err != nil {
		logr.Fatal("init tracing", zap.Error(err))
	}
	defer traceShutdown(context.Background()) //nolint:errcheck

	downloadQueue, err := queue.New(queue.Config{
		Region:            cfg.Queues.Region,
		Endpoint:          cfg.Queues.Endpoint,
		QueueURL:          cfg.Queues.DownloadURL,
		QueueName:         cfg.Queues.DownloadName,
		DefaultVisibility: cfg.Queues.DefaultVisibility,
	}, logr)
	if err != nil {
		logr.Fatal("init download queue", zap.Error(err))
	}

	splitQueue, err := queue.New(queue.Config{
		Region:            cfg.Queues.Region,
		Endpoint:          cfg.Queues.Endpoint,
		QueueURL:          cfg.Queues.SplitURL,
		QueueName:         cfg.Queues.SplitName,
		DefaultVisibility: cfg.Queues.DefaultVisibility,
	}, logr)
	if err != nil {
		logr.Fatal("init split queue", zap.Error(err))
	}

	store, err := objectstore.New(objectstore.Config{
		Endpoint:  cfg.Intermediate.Endpoint,
		Region:    cfg.Intermediate.Region,
		AccessKey: cfg.Intermediate.AccessKey,
		SecretKey: cfg.Intermediate.SecretKey,
		UseSSL:    cfg.Intermediate.UseSSL,
	})
	if err != nil {
		logr.Fatal("init intermediate store", zap.Error(err))
	}
	if cfg.Intermediate.Bucket != "" {
		if err := store.EnsureBucket(ctx, cfg.Intermediate.Bucket); err != nil {
			logr.Fatal("ensure intermediate bucket", zap.Error(err))
		}
	}

	downloader := stage.NewDownloader(stage.DownloaderParams{
		Store:        store,
		SplitQueue:   splitQueue,
		Fetcher:      fetch.New(cfg.Fetch.YTDLPPath, cfg.Fetch.HTTPTimeout),
		Converter:    media.NewConverter(cfg.Media.FFmpegPath, cfg.Media.FFprobePath),
		Logger:       logr,
		OutputBucket: cfg.Output.Bucket,
		TempDir:      cfg.Media.TempDir,
	})

	w := worker.New(downloadQueue, downloader.Process, logr, worker.Options{
		Name:       "download",
		BatchSize:  cfg.Queues.DownloadBatchSize,
		WaitTime:   cfg.Queues.WaitTime,
		Visibility: cfg.Queues.DownloadVisibility,
	})

	if err := w.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logr.Fatal("worker stopped", zap.Error(err))
	}
}
