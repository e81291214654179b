package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.App.Name != "segmentflow" {
		t.Errorf("app name = %q", cfg.App.Name)
	}
	if cfg.Queues.DownloadName != "segmentflow-download-jobs" {
		t.Errorf("download queue = %q", cfg.Queues.DownloadName)
	}
	if cfg.Queues.WaitTime != 20*time.Second {
		t.Errorf("wait time = %v", cfg.Queues.WaitTime)
	}
	if cfg.Segmentation.MaxDuration != 30*time.Second {
		t.Errorf("max duration = %v", cfg.Segmentation.MaxDuration)
	}
	if cfg.Monitor.Addr != ":8080" {
		t.Errorf("monitor addr = %q", cfg.Monitor.Addr)
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("SQS_SPLIT_BATCH_SIZE", "8")
	t.Setenv("KAFKA_BROKERS", "k1:9092,k2:9092")
	t.Setenv("INTERMEDIATE_STORE_BUCKET", "scratch")
	t.Setenv("OUTPUT_STORE_BUCKET", "processed")
	t.Setenv("VAD_THRESHOLD", "0.5")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Queues.SplitBatchSize != 8 {
		t.Errorf("split batch size = %d", cfg.Queues.SplitBatchSize)
	}
	if len(cfg.Kafka.Brokers) != 2 || cfg.Kafka.Brokers[1] != "k2:9092" {
		t.Errorf("brokers = %v", cfg.Kafka.Brokers)
	}
	if cfg.Intermediate.Bucket != "scratch" || cfg.Output.Bucket != "processed" {
		t.Errorf("buckets = %q/%q", cfg.Intermediate.Bucket, cfg.Output.Bucket)
	}
	if cfg.Segmentation.VADThreshold != 0.5 {
		t.Errorf("threshold = %v", cfg.Segmentation.VADThreshold)
	}
}
