package main

import (
	"context"
	"errors"
	"log"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/your-org/segmentflow/internal/media"
	"github.com/your-org/segmentflow/internal/segment"
	"github.com/your-org/segmentflow/internal/stage"
	"github.com/your-org/segmentflow/internal/worker"
	"github.com/your-org/segmentflow/pkg/config"
	"github.com/your-org/segmentflow/pkg/kafka"
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
		ServiceName: cfg.App.Name + "-splitter",
	})
	if err != nil {
		logr.Fatal("init tracing", zap.Error(err))
	}
	defer traceShutdown(context.Background()) //nolint:errcheck

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

	engine := segment.NewEngine(segment.NewCommandDetector(cfg.Segmentation.VADCommand), segment.Options{
		Params: segment.DetectParams{
			Threshold:  cfg.Segmentation.VADThreshold,
			MinSpeech:  cfg.Segmentation.VADMinSpeech,
			MinSilence: cfg.Segmentation.VADMinSilence,
			Padding:    cfg.Segmentation.VADPadding,
		},
		MaxDuration: cfg.Segmentation.MaxDuration,
		MinDuration: cfg.Segmentation.MinDuration,
	})

	var events stage.EventPublisher
	if len(cfg.Kafka.Brokers) > 0 {
		producer := kafka.NewProducer(kafka.ProducerConfig{
			Brokers:      cfg.Kafka.Brokers,
			Topic:        cfg.Kafka.CompletionTopic,
			BatchSize:    cfg.Kafka.BatchSize,
			BatchTimeout: cfg.Kafka.BatchTimeout,
			Compression:  kafka.CompressionFromString(cfg.Kafka.CompressionCodec),
			MaxAttempts:  cfg.Kafka.Retries,
		})
		defer producer.Close() //nolint:errcheck
		events = producer
	}

	splitter := stage.NewSplitter(stage.SplitterParams{
		Intermediate:        intermediate,
		Output:              output,
		Engine:              engine,
		Converter:           media.NewConverter(cfg.Media.FFmpegPath, cfg.Media.FFprobePath),
		Events:              events,
		Logger:              logr,
		DefaultOutputBucket: cfg.Output.Bucket,
		UploadConcurrency:   cfg.Segmentation.UploadConcurrency,
		TempDir:             cfg.Media.TempDir,
	})

	w := worker.New(splitQueue, splitter.Process, logr, worker.Options{
		Name:               "split",
		BatchSize:          cfg.Queues.SplitBatchSize,
		WaitTime:           cfg.Queues.WaitTime,
		Visibility:         cfg.Queues.SplitVisibility,
		ExtendedVisibility: cfg.Queues.ExtendedVisibility,
	})

	if err := w.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logr.Fatal("worker stopped", zap.Error(err))
	}
}
