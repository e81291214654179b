package config

import (
	"time"

	"github.com/caarlos0/env/v11"
)

// Config captures the full runtime configuration for a segmentflow process.
type Config struct {
	App          AppConfig
	Queues       QueuesConfig
	Intermediate StoreConfig `envPrefix:"INTERMEDIATE_"`
	Output       StoreConfig `envPrefix:"OUTPUT_"`
	Segmentation SegmentationConfig
	Media        MediaConfig
	Fetch        FetchConfig
	Kafka        KafkaConfig
	Tracing      TracingConfig
	Monitor      MonitorConfig
}

type AppConfig struct {
	Name        string `env:"APP_NAME" envDefault:"segmentflow"`
	Environment string `env:"APP_ENV" envDefault:"development"`
	Version     string `env:"APP_VERSION" envDefault:"0.1.0"`
	LogLevel    string `env:"APP_LOG_LEVEL" envDefault:"info"`
}

// QueuesConfig resolves the three stage queues. A non-empty *_QUEUE_URL bypasses
// name resolution entirely; otherwise the queue is looked up, and created if
// missing, by its logical name.
type QueuesConfig struct {
	Region   string `env:"AWS_REGION" envDefault:"us-east-1"`
	Endpoint string `env:"SQS_ENDPOINT"`

	DownloadName string `env:"SQS_DOWNLOAD_QUEUE_NAME" envDefault:"segmentflow-download-jobs"`
	DownloadURL  string `env:"SQS_DOWNLOAD_QUEUE_URL"`
	SplitName    string `env:"SQS_SPLIT_QUEUE_NAME" envDefault:"segmentflow-split-jobs"`
	SplitURL     string `env:"SQS_SPLIT_QUEUE_URL"`
	UploadName   string `env:"SQS_UPLOAD_QUEUE_NAME" envDefault:"segmentflow-upload-jobs"`
	UploadURL    string `env:"SQS_UPLOAD_QUEUE_URL"`

	DefaultVisibility  time.Duration `env:"SQS_DEFAULT_VISIBILITY" envDefault:"15m"`
	WaitTime           time.Duration `env:"SQS_WAIT_TIME" envDefault:"20s"`
	DownloadVisibility time.Duration `env:"SQS_DOWNLOAD_VISIBILITY" envDefault:"10m"`
	SplitVisibility    time.Duration `env:"SQS_SPLIT_VISIBILITY" envDefault:"15m"`
	UploadVisibility   time.Duration `env:"SQS_UPLOAD_VISIBILITY" envDefault:"15m"`
	ExtendedVisibility time.Duration `env:"SQS_EXTENDED_VISIBILITY" envDefault:"30m"`
	DownloadBatchSize  int           `env:"SQS_DOWNLOAD_BATCH_SIZE" envDefault:"1"`
	SplitBatchSize     int           `env:"SQS_SPLIT_BATCH_SIZE" envDefault:"5"`
	UploadBatchSize    int           `env:"SQS_UPLOAD_BATCH_SIZE" envDefault:"5"`
}

// StoreConfig describes one S3-compatible object store endpoint.
type StoreConfig struct {
	Endpoint  string `env:"STORE_ENDPOINT" envDefault:"localhost:9000"`
	Region    string `env:"STORE_REGION" envDefault:"us-east-1"`
	AccessKey string `env:"STORE_ACCESS_KEY"`
	SecretKey string `env:"STORE_SECRET_KEY"`
	UseSSL    bool   `env:"STORE_USE_SSL" envDefault:"false"`
	Bucket    string `env:"STORE_BUCKET"`
}

type SegmentationConfig struct {
	MaxDuration       time.Duration `env:"SEGMENT_MAX_DURATION" envDefault:"30s"`
	MinDuration       time.Duration `env:"SEGMENT_MIN_DURATION" envDefault:"1s"`
	VADThreshold      float64       `env:"VAD_THRESHOLD" envDefault:"0.3"`
	VADMinSpeech      time.Duration `env:"VAD_MIN_SPEECH" envDefault:"2s"`
	VADMinSilence     time.Duration `env:"VAD_MIN_SILENCE" envDefault:"800ms"`
	VADPadding        time.Duration `env:"VAD_PADDING" envDefault:"300ms"`
	VADCommand        string        `env:"VAD_COMMAND" envDefault:"silero-vad"`
	UploadConcurrency int           `env:"SEGMENT_UPLOAD_CONCURRENCY" envDefault:"10"`
}

type MediaConfig struct {
	FFmpegPath  string `env:"FFMPEG_PATH" envDefault:"ffmpeg"`
	FFprobePath string `env:"FFPROBE_PATH" envDefault:"ffprobe"`
	TempDir     string `env:"WORKER_TMP_DIR"`
}

type FetchConfig struct {
	YTDLPPath   string        `env:"YTDLP_PATH" envDefault:"yt-dlp"`
	HTTPTimeout time.Duration `env:"FETCH_HTTP_TIMEOUT" envDefault:"10m"`
}

// KafkaConfig controls the optional completion-event producer. Leaving Brokers
// empty disables event publishing.
type KafkaConfig struct {
	Brokers          []string      `env:"KAFKA_BROKERS" envSeparator:","`
	CompletionTopic  string        `env:"KAFKA_COMPLETION_TOPIC" envDefault:"segmentflow.segments.completed"`
	Retries          int           `env:"KAFKA_RETRIES" envDefault:"3"`
	CompressionCodec string        `env:"KAFKA_COMPRESSION_CODEC" envDefault:"snappy"`
	BatchSize        int           `env:"KAFKA_BATCH_SIZE" envDefault:"100"`
	BatchTimeout     time.Duration `env:"KAFKA_BATCH_TIMEOUT" envDefault:"1s"`
}

type TracingConfig struct {
	Endpoint     string  `env:"OTEL_EXPORTER_OTLP_ENDPOINT"`
	Insecure     bool    `env:"OTEL_EXPORTER_OTLP_INSECURE" envDefault:"true"`
	SampleRatio  float64 `env:"OTEL_TRACES_SAMPLER_RATIO" envDefault:"1.0"`
	ResourceAttr string  `env:"OTEL_RESOURCE_ATTRIBUTES" envDefault:"service.namespace=segmentflow"`
}

type MonitorConfig struct {
	Addr         string        `env:"MONITOR_ADDR" envDefault:":8080"`
	ReadTimeout  time.Duration `env:"MONITOR_READ_TIMEOUT" envDefault:"15s"`
	WriteTimeout time.Duration `env:"MONITOR_WRITE_TIMEOUT" envDefault:"60s"`
	IdleTimeout  time.Duration `env:"MONITOR_IDLE_TIMEOUT" envDefault:"120s"`
}

// Load parses environment variables into Config.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}
