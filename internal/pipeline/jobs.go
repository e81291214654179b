package pipeline

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// SourceKind identifies where a download job's asset lives.
type SourceKind string

const (
	SourceVideoSite   SourceKind = "video-site"
	SourceSharedDrive SourceKind = "shared-drive"
	SourceDirectURL   SourceKind = "direct-url"
	SourceObjectStore SourceKind = "object-store"
)

// SourceStore selects which store a split job reads from.
type SourceStore string

const (
	StoreIntermediate SourceStore = "intermediate"
	StoreOutput       SourceStore = "output"
)

// DefaultMaxDurationSeconds bounds segment length when a split job does not
// carry its own limit.
const DefaultMaxDurationSeconds = 30.0

var (
	ErrMissingJobID  = errors.New("pipeline: job_id is required")
	ErrMissingSource = errors.New("pipeline: source location is required")
)

// DownloadJob instructs the download stage to fetch one asset, normalize it,
// and land it in the intermediate store. JobID is stable across re-deliveries
// of the same logical unit of work.
type DownloadJob struct {
	JobID         string         `json:"job_id"`
	SourceKind    SourceKind     `json:"source_kind"`
	SourceLocator string         `json:"source_locator"`
	OutputPath    string         `json:"output_path,omitempty"`
	Metadata      map[string]any `json:"metadata,omitempty"`
}

// SplitJob instructs the split stage to segment one stored waveform.
type SplitJob struct {
	JobID              string         `json:"job_id"`
	SourceBucket       string         `json:"source_bucket"`
	SourceKey          string         `json:"source_key"`
	SourceStore        SourceStore    `json:"source_store,omitempty"`
	OutputBucket       string         `json:"output_bucket,omitempty"`
	OutputPrefix       string         `json:"output_prefix,omitempty"`
	MaxDurationSeconds float64        `json:"max_duration_seconds,omitempty"`
	Metadata           map[string]any `json:"metadata,omitempty"`
}

// UploadJob instructs the upload stage to copy one intermediate object to the
// output store. The destination key is derived, not carried, so retries always
// target the same object.
type UploadJob struct {
	SourceBucket string `json:"source_bucket"`
	SourceKey    string `json:"source_key"`
}

// DestinationKey derives the output store key for an upload job.
func (j UploadJob) DestinationKey() string {
	return "raw-audio/" + j.SourceKey
}

// StorageTarget resolves a download job's output_path into bucket and key,
// applying the raw-audio/{job_id}.wav convention when fields are absent.
func (j DownloadJob) StorageTarget() (bucket, key string) {
	path := j.OutputPath
	if path == "" {
		path = fmt.Sprintf("raw-audio/%s.wav", j.JobID)
	}
	parts := strings.SplitN(path, "/", 2)
	if len(parts) < 2 {
		return "raw-audio", path
	}
	return parts[0], parts[1]
}

// SplitJobFor builds the follow-up split job for a downloaded asset.
func (j DownloadJob) SplitJobFor(outputBucket string) SplitJob {
	bucket, key := j.StorageTarget()
	return SplitJob{
		JobID:              j.JobID,
		SourceBucket:       bucket,
		SourceKey:          key,
		SourceStore:        StoreIntermediate,
		OutputBucket:       outputBucket,
		OutputPrefix:       j.JobID,
		MaxDurationSeconds: DefaultMaxDurationSeconds,
		Metadata:           j.Metadata,
	}
}

type downloadJobWire struct {
	DownloadJob

	// Legacy field names still seen on older producers.
	SourceType string `json:"source_type,omitempty"`
	SourceURL  string `json:"source_url,omitempty"`
}

// DecodeDownloadJob parses a download queue message, folding legacy field
// names and source kind aliases into the tagged form.
func DecodeDownloadJob(data []byte) (DownloadJob, error) {
	var wire downloadJobWire
	if err := json.Unmarshal(data, &wire); err != nil {
		return DownloadJob{}, fmt.Errorf("decode download job: %w", err)
	}

	job := wire.DownloadJob
	if job.SourceKind == "" && wire.SourceType != "" {
		job.SourceKind = normalizeSourceKind(wire.SourceType)
	}
	if job.SourceLocator == "" {
		job.SourceLocator = wire.SourceURL
	}

	if job.JobID == "" {
		return DownloadJob{}, ErrMissingJobID
	}
	if job.SourceLocator == "" {
		return DownloadJob{}, ErrMissingSource
	}
	if job.SourceKind == "" {
		job.SourceKind = SourceDirectURL
	}
	return job, nil
}

type splitJobWire struct {
	SplitJob

	// Legacy shape: combined bucket/key path plus shorter field names.
	RawAudioPath string  `json:"raw_audio_path,omitempty"`
	MaxDuration  float64 `json:"max_duration,omitempty"`
	SourceType   string  `json:"source_type,omitempty"`
}

// DecodeSplitJob parses a split queue message. Legacy messages carrying
// raw_audio_path are resolved into source_bucket/source_key here, once, so the
// stage logic never probes for field presence.
func DecodeSplitJob(data []byte, defaultOutputBucket string) (SplitJob, error) {
	var wire splitJobWire
	if err := json.Unmarshal(data, &wire); err != nil {
		return SplitJob{}, fmt.Errorf("decode split job: %w", err)
	}

	job := wire.SplitJob
	if job.SourceBucket == "" && wire.RawAudioPath != "" {
		parts := strings.SplitN(wire.RawAudioPath, "/", 2)
		if len(parts) == 2 {
			job.SourceBucket = parts[0]
			job.SourceKey = parts[1]
		} else {
			job.SourceBucket = "raw-audio"
			job.SourceKey = wire.RawAudioPath
		}
	}

	if job.JobID == "" {
		return SplitJob{}, ErrMissingJobID
	}
	if job.SourceKey == "" {
		return SplitJob{}, ErrMissingSource
	}

	if job.SourceStore == "" {
		if wire.SourceType == "s3" {
			job.SourceStore = StoreOutput
		} else {
			job.SourceStore = StoreIntermediate
		}
	}
	if job.OutputBucket == "" {
		job.OutputBucket = defaultOutputBucket
	}
	if job.OutputPrefix == "" {
		job.OutputPrefix = job.JobID
	}
	if job.MaxDurationSeconds <= 0 {
		job.MaxDurationSeconds = wire.MaxDuration
	}
	if job.MaxDurationSeconds <= 0 {
		job.MaxDurationSeconds = DefaultMaxDurationSeconds
	}
	return job, nil
}

// DecodeUploadJob parses an upload queue message.
func DecodeUploadJob(data []byte) (UploadJob, error) {
	var job UploadJob
	if err := json.Unmarshal(data, &job); err != nil {
		return UploadJob{}, fmt.Errorf("decode upload job: %w", err)
	}
	if job.SourceBucket == "" || job.SourceKey == "" {
		return UploadJob{}, ErrMissingSource
	}
	return job, nil
}

func normalizeSourceKind(raw string) SourceKind {
	switch strings.ToLower(raw) {
	case "youtube", "video-site":
		return SourceVideoSite
	case "gdrive", "shared-drive":
		return SourceSharedDrive
	case "url", "direct-url":
		return SourceDirectURL
	case "s3", "minio", "object-store":
		return SourceObjectStore
	default:
		return SourceKind(raw)
	}
}
