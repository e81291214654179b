package pipeline

import (
	"errors"
	"testing"
)

func TestDecodeDownloadJob(t *testing.T) {
	raw := []byte(`{"job_id":"j-1","source_kind":"direct-url","source_locator":"https://example.com/a.mp3"}`)
	job, err := DecodeDownloadJob(raw)
	if err != nil {
		t.Fatalf("DecodeDownloadJob: %v", err)
	}
	if job.JobID != "j-1" || job.SourceKind != SourceDirectURL || job.SourceLocator != "https://example.com/a.mp3" {
		t.Errorf("job = %+v", job)
	}
}

func TestDecodeDownloadJobLegacyFields(t *testing.T) {
	raw := []byte(`{"job_id":"j-2","source_type":"youtube","source_url":"https://youtu.be/abc"}`)
	job, err := DecodeDownloadJob(raw)
	if err != nil {
		t.Fatalf("DecodeDownloadJob: %v", err)
	}
	if job.SourceKind != SourceVideoSite {
		t.Errorf("source kind = %q, want %q", job.SourceKind, SourceVideoSite)
	}
	if job.SourceLocator != "https://youtu.be/abc" {
		t.Errorf("source locator = %q", job.SourceLocator)
	}
}

func TestDecodeDownloadJobDefaultsKind(t *testing.T) {
	raw := []byte(`{"job_id":"j-3","source_locator":"https://example.com/b.wav"}`)
	job, err := DecodeDownloadJob(raw)
	if err != nil {
		t.Fatalf("DecodeDownloadJob: %v", err)
	}
	if job.SourceKind != SourceDirectURL {
		t.Errorf("source kind = %q, want %q", job.SourceKind, SourceDirectURL)
	}
}

func TestDecodeDownloadJobValidation(t *testing.T) {
	if _, err := DecodeDownloadJob([]byte(`{"source_locator":"x"}`)); !errors.Is(err, ErrMissingJobID) {
		t.Errorf("missing job_id: err = %v", err)
	}
	if _, err := DecodeDownloadJob([]byte(`{"job_id":"j"}`)); !errors.Is(err, ErrMissingSource) {
		t.Errorf("missing source: err = %v", err)
	}
	if _, err := DecodeDownloadJob([]byte(`not json`)); err == nil {
		t.Error("malformed JSON accepted")
	}
}

func TestDownloadJobStorageTarget(t *testing.T) {
	tests := []struct {
		name       string
		job        DownloadJob
		wantBucket string
		wantKey    string
	}{
		{
			name:       "default path",
			job:        DownloadJob{JobID: "j-9"},
			wantBucket: "raw-audio",
			wantKey:    "j-9.wav",
		},
		{
			name:       "explicit path",
			job:        DownloadJob{JobID: "j-9", OutputPath: "staging/episodes/j-9.wav"},
			wantBucket: "staging",
			wantKey:    "episodes/j-9.wav",
		},
		{
			name:       "bare key",
			job:        DownloadJob{JobID: "j-9", OutputPath: "j-9.wav"},
			wantBucket: "raw-audio",
			wantKey:    "j-9.wav",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			bucket, key := tt.job.StorageTarget()
			if bucket != tt.wantBucket || key != tt.wantKey {
				t.Errorf("StorageTarget() = (%q, %q), want (%q, %q)", bucket, key, tt.wantBucket, tt.wantKey)
			}
		})
	}
}

func TestSplitJobFor(t *testing.T) {
	dl := DownloadJob{JobID: "j-7", Metadata: map[string]any{"lang": "de"}}
	split := dl.SplitJobFor("processed")

	if split.JobID != "j-7" {
		t.Errorf("job id = %q", split.JobID)
	}
	if split.SourceBucket != "raw-audio" || split.SourceKey != "j-7.wav" {
		t.Errorf("source = %s/%s", split.SourceBucket, split.SourceKey)
	}
	if split.SourceStore != StoreIntermediate {
		t.Errorf("source store = %q", split.SourceStore)
	}
	if split.OutputBucket != "processed" || split.OutputPrefix != "j-7" {
		t.Errorf("output = %s/%s", split.OutputBucket, split.OutputPrefix)
	}
	if split.MaxDurationSeconds != DefaultMaxDurationSeconds {
		t.Errorf("max duration = %v", split.MaxDurationSeconds)
	}
	if split.Metadata["lang"] != "de" {
		t.Errorf("metadata not carried: %v", split.Metadata)
	}
}

func TestDecodeSplitJob(t *testing.T) {
	raw := []byte(`{"job_id":"j-4","source_bucket":"raw-audio","source_key":"j-4.wav","output_bucket":"out","output_prefix":"custom","max_duration_seconds":12}`)
	job, err := DecodeSplitJob(raw, "default-out")
	if err != nil {
		t.Fatalf("DecodeSplitJob: %v", err)
	}
	if job.OutputBucket != "out" || job.OutputPrefix != "custom" || job.MaxDurationSeconds != 12 {
		t.Errorf("job = %+v", job)
	}
	if job.SourceStore != StoreIntermediate {
		t.Errorf("source store = %q, want intermediate default", job.SourceStore)
	}
}

func TestDecodeSplitJobLegacyShape(t *testing.T) {
	raw := []byte(`{"job_id":"j-5","raw_audio_path":"raw-audio/j-5.wav","max_duration":20,"source_type":"s3"}`)
	job, err := DecodeSplitJob(raw, "default-out")
	if err != nil {
		t.Fatalf("DecodeSplitJob: %v", err)
	}
	if job.SourceBucket != "raw-audio" || job.SourceKey != "j-5.wav" {
		t.Errorf("source = %s/%s", job.SourceBucket, job.SourceKey)
	}
	if job.SourceStore != StoreOutput {
		t.Errorf("source store = %q, want output for legacy s3", job.SourceStore)
	}
	if job.MaxDurationSeconds != 20 {
		t.Errorf("max duration = %v, want 20", job.MaxDurationSeconds)
	}
	if job.OutputBucket != "default-out" {
		t.Errorf("output bucket = %q", job.OutputBucket)
	}
	if job.OutputPrefix != "j-5" {
		t.Errorf("output prefix = %q, want job id", job.OutputPrefix)
	}
}

func TestDecodeSplitJobDefaults(t *testing.T) {
	raw := []byte(`{"job_id":"j-6","source_bucket":"raw-audio","source_key":"j-6.wav"}`)
	job, err := DecodeSplitJob(raw, "default-out")
	if err != nil {
		t.Fatalf("DecodeSplitJob: %v", err)
	}
	if job.MaxDurationSeconds != DefaultMaxDurationSeconds {
		t.Errorf("max duration = %v, want default", job.MaxDurationSeconds)
	}
	if job.OutputPrefix != "j-6" {
		t.Errorf("output prefix = %q", job.OutputPrefix)
	}
}

func TestDecodeUploadJob(t *testing.T) {
	job, err := DecodeUploadJob([]byte(`{"source_bucket":"staging","source_key":"a/b.wav"}`))
	if err != nil {
		t.Fatalf("DecodeUploadJob: %v", err)
	}
	if job.DestinationKey() != "raw-audio/a/b.wav" {
		t.Errorf("destination = %q", job.DestinationKey())
	}

	if _, err := DecodeUploadJob([]byte(`{"source_bucket":"staging"}`)); !errors.Is(err, ErrMissingSource) {
		t.Errorf("missing key: err = %v", err)
	}
}

func TestManifestKeyAndSegmentFilename(t *testing.T) {
	if got := ManifestKey("j-1"); got != "j-1/metadata.json" {
		t.Errorf("ManifestKey = %q", got)
	}
	if got := SegmentFilename(1); got != "segment_001.wav" {
		t.Errorf("SegmentFilename(1) = %q", got)
	}
	if got := SegmentFilename(42); got != "segment_042.wav" {
		t.Errorf("SegmentFilename(42) = %q", got)
	}
}
