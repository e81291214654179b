// Package stage implements the three pipeline work functions: download, split,
// and upload. Each consumes one queue message kind, is idempotent against its
// own output, and coordinates with the others only through the queue and the
// object stores.
package stage

import (
	"context"
	"path"
	"strings"

	"github.com/your-org/segmentflow/internal/segment"
)

// ObjectStore is the slice of the store client the stages need.
type ObjectStore interface {
	Exists(ctx context.Context, bucket, key string) (bool, error)
	HasPrefix(ctx context.Context, bucket, prefix string) (bool, error)
	GetFile(ctx context.Context, bucket, key, localPath string) error
	PutFile(ctx context.Context, bucket, key, localPath, contentType string) error
	PutJSON(ctx context.Context, bucket, key string, v any) error
}

// Enqueuer places a message on a downstream queue.
type Enqueuer interface {
	Enqueue(ctx context.Context, body []byte, groupID string) (string, error)
}

// Converter is the audio tooling the stages need.
type Converter interface {
	Normalize(ctx context.Context, inputPath, outputPath string) error
	Cut(ctx context.Context, inputPath, outputPath string, start, duration float64) error
	ProbeDuration(ctx context.Context, inputPath string) (float64, error)
}

// Planner produces the segment sequence for a normalized waveform.
type Planner interface {
	Plan(ctx context.Context, wavPath string, maxDuration float64) ([]segment.Segment, error)
}

// EventPublisher emits pipeline events. Implementations may be nil-checked by
// callers; publishing is best-effort and never fails a job.
type EventPublisher interface {
	PublishJSON(ctx context.Context, key, eventType string, event any) error
}

func contentTypeForKey(key string) string {
	switch strings.ToLower(path.Ext(key)) {
	case ".wav":
		return "audio/wav"
	case ".mp3":
		return "audio/mpeg"
	case ".m4a":
		return "audio/mp4"
	case ".ogg":
		return "audio/ogg"
	case ".flac":
		return "audio/flac"
	default:
		return "application/octet-stream"
	}
}

func extOrDefault(key, fallback string) string {
	if ext := path.Ext(key); ext != "" {
		return ext
	}
	return fallback
}
