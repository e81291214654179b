package stage

import (
	"context"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/your-org/segmentflow/internal/pipeline"
)

// Splitter segments one stored waveform into bounded speech clips and lands
// them, plus a manifest, in the output store.
type Splitter struct {
	intermediate ObjectStore
	output       ObjectStore
	engine       Planner
	converter    Converter
	events       EventPublisher
	logger       *zap.Logger

	defaultOutputBucket string
	uploadConcurrency   int
	tempDir             string
}

// SplitterParams wires a Splitter. Events may be nil to disable completion
// events.
type SplitterParams struct {
	Intermediate ObjectStore
	Output       ObjectStore
	Engine       Planner
	Converter    Converter
	Events       EventPublisher
	Logger       *zap.Logger

	DefaultOutputBucket string
	UploadConcurrency   int
	TempDir             string
}

// NewSplitter constructs the split stage.
func NewSplitter(p SplitterParams) *Splitter {
	concurrency := p.UploadConcurrency
	if concurrency < 1 {
		concurrency = 1
	}
	return &Splitter{
		intermediate:        p.Intermediate,
		output:              p.Output,
		engine:              p.Engine,
		converter:           p.Converter,
		events:              p.Events,
		logger:              p.Logger,
		defaultOutputBucket: p.DefaultOutputBucket,
		uploadConcurrency:   concurrency,
		tempDir:             p.TempDir,
	}
}

// Process handles one split queue message. Any object already present under
// the output prefix means a prior attempt completed (or is completing) and the
// whole job is skipped. The manifest is written only after every segment
// upload succeeds, so a manifest never references a missing segment.
func (s *Splitter) Process(ctx context.Context, body []byte) error {
	job, err := pipeline.DecodeSplitJob(body, s.defaultOutputBucket)
	if err != nil {
		return err
	}

	logger := s.logger.With(
		zap.String("job_id", job.JobID),
		zap.String("source", job.SourceBucket+"/"+job.SourceKey),
		zap.String("output_prefix", job.OutputPrefix),
	)

	done, err := s.output.HasPrefix(ctx, job.OutputBucket, job.OutputPrefix+"/")
	if err != nil {
		return fmt.Errorf("check output prefix: %w", err)
	}
	if done {
		logger.Info("output already present, skipping")
		return nil
	}

	src := s.intermediate
	if job.SourceStore == pipeline.StoreOutput {
		src = s.output
	}

	tmpDir, err := os.MkdirTemp(s.tempDir, "split-*")
	if err != nil {
		return fmt.Errorf("create temp dir: %w", err)
	}
	defer os.RemoveAll(tmpDir)

	inputPath := filepath.Join(tmpDir, "input"+extOrDefault(job.SourceKey, ".mp3"))
	if err := src.GetFile(ctx, job.SourceBucket, job.SourceKey, inputPath); err != nil {
		return fmt.Errorf("fetch source: %w", err)
	}
	info, err := os.Stat(inputPath)
	if err != nil || info.Size() == 0 {
		return fmt.Errorf("source download produced empty or missing file")
	}

	wavPath := inputPath
	if !strings.EqualFold(filepath.Ext(job.SourceKey), ".wav") {
		wavPath = filepath.Join(tmpDir, "input.wav")
		if err := s.converter.Normalize(ctx, inputPath, wavPath); err != nil {
			return fmt.Errorf("normalize source: %w", err)
		}
	}

	var sourceDuration float64
	if d, err := s.converter.ProbeDuration(ctx, wavPath); err != nil {
		logger.Warn("probe duration failed", zap.Error(err))
	} else {
		sourceDuration = d
	}

	segments, err := s.engine.Plan(ctx, wavPath, job.MaxDurationSeconds)
	if err != nil {
		return fmt.Errorf("plan segments: %w", err)
	}

	if len(segments) == 0 {
		logger.Info("no speech segments found")
		manifest := s.buildManifest(job, nil, sourceDuration)
		manifest.Status = pipeline.StatusNoSpeech
		return s.writeManifest(ctx, job, manifest)
	}
	logger.Info("planned segments", zap.Int("count", len(segments)))

	// Render every segment file before any upload starts; a render failure
	// must not leave partial output behind.
	localPaths := make([]string, len(segments))
	for i, seg := range segments {
		localPaths[i] = filepath.Join(tmpDir, pipeline.SegmentFilename(i+1))
		if err := s.converter.Cut(ctx, wavPath, localPaths[i], seg.Start, seg.Duration); err != nil {
			return fmt.Errorf("cut segment %d: %w", i+1, err)
		}
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.uploadConcurrency)
	for i := range segments {
		key := pipeline.SegmentKey(job.OutputPrefix, i+1)
		localPath := localPaths[i]
		g.Go(func() error {
			return s.output.PutFile(gctx, job.OutputBucket, key, localPath, "audio/wav")
		})
	}
	if err := g.Wait(); err != nil {
		return fmt.Errorf("upload segments: %w", err)
	}

	infos := make([]pipeline.SegmentInfo, len(segments))
	for i, seg := range segments {
		infos[i] = pipeline.SegmentInfo{
			Filename:        pipeline.SegmentFilename(i + 1),
			StartSeconds:    round2(seg.Start),
			EndSeconds:      round2(seg.End),
			DurationSeconds: round2(seg.Duration),
		}
	}

	if err := s.writeManifest(ctx, job, s.buildManifest(job, infos, sourceDuration)); err != nil {
		return err
	}

	logger.Info("uploaded segments and manifest", zap.Int("count", len(segments)))
	s.publishCompleted(ctx, job, len(segments))
	return nil
}

func (s *Splitter) buildManifest(job pipeline.SplitJob, segments []pipeline.SegmentInfo, sourceDuration float64) pipeline.Manifest {
	return pipeline.Manifest{
		JobID:              job.JobID,
		SourceBucket:       job.SourceBucket,
		SourceKey:          job.SourceKey,
		OutputBucket:       job.OutputBucket,
		OutputPrefix:       job.OutputPrefix,
		ProcessedAt:        time.Now().UTC(),
		SourceDuration:     round2(sourceDuration),
		TotalSegments:      len(segments),
		MaxSegmentDuration: job.MaxDurationSeconds,
		Segments:           segments,
		Metadata:           job.Metadata,
	}
}

func (s *Splitter) writeManifest(ctx context.Context, job pipeline.SplitJob, manifest pipeline.Manifest) error {
	key := pipeline.ManifestKey(job.OutputPrefix)
	if err := s.output.PutJSON(ctx, job.OutputBucket, key, manifest); err != nil {
		return fmt.Errorf("write manifest: %w", err)
	}
	return nil
}

// publishCompleted is best-effort: the manifest is already durable, and a
// redelivered message would be skipped by the prefix check, so a lost event is
// preferable to a retried job.
func (s *Splitter) publishCompleted(ctx context.Context, job pipeline.SplitJob, total int) {
	if s.events == nil {
		return
	}
	event := pipeline.SegmentsCompletedEvent{
		ID:            uuid.NewString(),
		JobID:         job.JobID,
		SourceBucket:  job.SourceBucket,
		SourceKey:     job.SourceKey,
		OutputBucket:  job.OutputBucket,
		OutputPrefix:  job.OutputPrefix,
		TotalSegments: total,
		ProcessedAt:   time.Now().UTC(),
	}
	if err := s.events.PublishJSON(ctx, job.JobID, pipeline.EventTypeSegmentsCompleted, event); err != nil {
		s.logger.Warn("publish completion event failed", zap.String("job_id", job.JobID), zap.Error(err))
	}
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
