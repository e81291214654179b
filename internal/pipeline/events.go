package pipeline

import "time"

// EventTypeSegmentsCompleted tags completion events on the wire.
const EventTypeSegmentsCompleted = "segments.completed"

// SegmentsCompletedEvent is emitted after a split job lands its manifest.
type SegmentsCompletedEvent struct {
	ID            string    `json:"id"`
	JobID         string    `json:"job_id"`
	SourceBucket  string    `json:"source_bucket"`
	SourceKey     string    `json:"source_key"`
	OutputBucket  string    `json:"output_bucket"`
	OutputPrefix  string    `json:"output_prefix"`
	TotalSegments int       `json:"total_segments"`
	ProcessedAt   time.Time `json:"processed_at"`
}
