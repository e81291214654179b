package main

import (
	"context"
	"errors"
	"log"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

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
		ServiceName: cfg.App.Name + "-uploader",
	})
	if err != nil {
		logr.Fatal("init tracing", zap.Error(err))
	}
	defer traceShutdown(context.Background()) //nolint:errcheck

	uploadQueue, err := queue.New(queue.Config{
		Region:            cfg.Queues.Region,
		Endpoint:          cfg.Queues.Endpoint,
		QueueURL:          cfg.Queues.UploadURL,
		QueueName:         cfg.Queues.UploadName,
		DefaultVisibility: cfg.Queues.DefaultVisibility,
	}, logr)
	if err != nil {
		logr.Fatal("init upload queue", zap.Error(err))
	}

	intermediate, err := objectstore.New(objectstore.Config{
		Endpoint:  cfg.Intermediate.Endpoint,
		Region:    cfg.Intermediate.Region,
		AccessKey: cfg.Intermediate.AccessKey,
		SecretKey: cfg.Intermediate.SecretKey,
		UseSSL:    cfg.Intermediate.UseSSL,
	})
	if err != nil {
		logr.Fatal("init intermediate store", zap.Error(err))
	}

	output, err := objectstore.New(objectstore.Config{
		Endpoint:  cfg.Output.Endpoint,
		Region:    cfg.Output.Region,
		AccessKey: cfg.Output.AccessKey,
		SecretKey: cfg.Output.SecretKey,
		UseSSL:    cfg.Output.UseSSL,
	})
	if err != nil {
		logr.Fatal("init output store", zap.Error(err))
	}
	if cfg.Output.Bucket != "" {
		if err := output.EnsureBucket(ctx, cfg.Output.Bucket); err != nil {
			logr.Fatal("ensure output bucket", zap.Error(err))
		}
	}

	uploader := stage.NewUploader(stage.UploaderParams{
		Intermediate: intermediate,
		Output:       output,
		Logger:       logr,
		OutputBucket: cfg.Output.Bucket,
		TempDir:      cfg.Media.TempDir,
	})

	w := worker.New(uploadQueue, uploader.Process, logr, worker.Options{
		Name:               "upload",
		BatchSize:          cfg.Queues.UploadBatchSize,
		WaitTime:           cfg.Queues.WaitTime,
		Visibility:         cfg.Queues.UploadVisibility,
		ExtendedVisibility: cfg.Queues.ExtendedVisibility,
	})

	if err := w.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logr.Fatal("worker stopped", zap.Error(err))
	}
}
