package pipeline

import (
	"fmt"
	"time"
)

// StatusNoSpeech marks a manifest written for a source in which detection
// found no usable segments. The source still counts as processed.
const StatusNoSpeech = "no_speech"

// SegmentInfo records one landed segment inside a manifest.
type SegmentInfo struct {
	Filename        string  `json:"filename"`
	StartSeconds    float64 `json:"start_sec"`
	EndSeconds      float64 `json:"end_sec"`
	DurationSeconds float64 `json:"duration_sec"`
}

// Manifest is the durable record of one fully processed source. Its presence
// at {output_prefix}/metadata.json is the canonical "done" marker; it is
// written exactly once, after every segment object is stored.
type Manifest struct {
	JobID              string         `json:"job_id"`
	SourceBucket       string         `json:"source_bucket"`
	SourceKey          string         `json:"source_key"`
	OutputBucket       string         `json:"output_bucket,omitempty"`
	OutputPrefix       string         `json:"output_prefix,omitempty"`
	ProcessedAt        time.Time      `json:"processed_at"`
	SourceDuration     float64        `json:"source_duration_sec,omitempty"`
	TotalSegments      int            `json:"total_segments"`
	MaxSegmentDuration float64        `json:"max_segment_duration,omitempty"`
	Status             string         `json:"status,omitempty"`
	Segments           []SegmentInfo  `json:"segments,omitempty"`
	Metadata           map[string]any `json:"metadata,omitempty"`
}

// ManifestKey returns the object key of the manifest for an output prefix.
func ManifestKey(outputPrefix string) string {
	return outputPrefix + "/metadata.json"
}

// SegmentKey returns the object key of the n-th segment (1-based) for an
// output prefix.
func SegmentKey(outputPrefix string, n int) string {
	return fmt.Sprintf("%s/%s", outputPrefix, SegmentFilename(n))
}

// SegmentFilename returns the canonical file name of the n-th segment (1-based).
func SegmentFilename(n int) string {
	return fmt.Sprintf("segment_%03d.wav", n)
}
