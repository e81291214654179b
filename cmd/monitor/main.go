package main

import (
	"context"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/your-org/segmentflow/internal/monitor"
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
		ServiceName: cfg.App.Name + "-monitor",
	})
	if err != nil {
		logr.Fatal("init tracing", zap.Error(err))
	}
	defer traceShutdown(context.Background()) //nolint:errcheck

	newQueue := func(name, url string) *queue.Client {
		client, err := queue.New(queue.Config{
			Region:            cfg.Queues.Region,
			Endpoint:          cfg.Queues.Endpoint,
			QueueURL:          url,
			QueueName:         name,
			DefaultVisibility: cfg.Queues.DefaultVisibility,
		}, logr)
		if err != nil {
			logr.Fatal("init queue", zap.String("queue", name), zap.Error(err))
		}
		return client
	}

	store, err := objectstore.New(objectstore.Config{
		Endpoint:  cfg.Output.Endpoint,
		Region:    cfg.Output.Region,
		AccessKey: cfg.Output.AccessKey,
		SecretKey: cfg.Output.SecretKey,
		UseSSL:    cfg.Output.UseSSL,
	})
	if err != nil {
		logr.Fatal("init output store", zap.Error(err))
	}

	handler := monitor.NewHTTPHandler(monitor.Params{
		Download:     newQueue(cfg.Queues.DownloadName, cfg.Queues.DownloadURL),
		Split:        newQueue(cfg.Queues.SplitName, cfg.Queues.SplitURL),
		Upload:       newQueue(cfg.Queues.UploadName, cfg.Queues.UploadURL),
		Store:        store,
		Logger:       logr,
		OutputBucket: cfg.Output.Bucket,
	})

	server := &http.Server{
		Addr:         cfg.Monitor.Addr,
		Handler:      handler.Router(),
		ReadTimeout:  cfg.Monitor.ReadTimeout,
		WriteTimeout: cfg.Monitor.WriteTimeout,
		IdleTimeout:  cfg.Monitor.IdleTimeout,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logr.Error("http server shutdown failed", zap.Error(err))
		}
	}()

	logr.Info("monitor starting", zap.String("addr", cfg.Monitor.Addr))
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logr.Fatal("http server failed", zap.Error(err))
	}
}
