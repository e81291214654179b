package stage

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/your-org/segmentflow/internal/fetch"
	"github.com/your-org/segmentflow/internal/pipeline"
)

// Downloader fetches a source asset, normalizes it, lands it in the
// intermediate store, and enqueues the follow-up split job.
type Downloader struct {
	store      ObjectStore
	splitQueue Enqueuer
	fetcher    fetch.Fetcher
	converter  Converter
	logger     *zap.Logger

	outputBucket string
	tempDir      string
}

// DownloaderParams wires a Downloader.
type DownloaderParams struct {
	Store      ObjectStore
	SplitQueue Enqueuer
	Fetcher    fetch.Fetcher
	Converter  Converter
	Logger     *zap.Logger

	// OutputBucket is the default destination bucket stamped on split jobs.
	OutputBucket string
	TempDir      string
}

// NewDownloader constructs the download stage.
func NewDownloader(p DownloaderParams) *Downloader {
	return &Downloader{
		store:        p.Store,
		splitQueue:   p.SplitQueue,
		fetcher:      p.Fetcher,
		converter:    p.Converter,
		logger:       p.Logger,
		outputBucket: p.OutputBucket,
		tempDir:      p.TempDir,
	}
}

// Process handles one download queue message. If the target object already
// exists the fetch is skipped, but the split job is still enqueued: a prior
// attempt may have crashed between storing the object and enqueuing downstream
// work.
func (d *Downloader) Process(ctx context.Context, body []byte) error {
	job, err := pipeline.DecodeDownloadJob(body)
	if err != nil {
		return err
	}

	bucket, key := job.StorageTarget()
	logger := d.logger.With(zap.String("job_id", job.JobID), zap.String("target", bucket+"/"+key))

	exists, err := d.store.Exists(ctx, bucket, key)
	if err != nil {
		return fmt.Errorf("check target: %w", err)
	}
	if exists {
		logger.Info("target already stored, skipping fetch")
		return d.enqueueSplit(ctx, job)
	}

	tmpDir, err := os.MkdirTemp(d.tempDir, "download-*")
	if err != nil {
		return fmt.Errorf("create temp dir: %w", err)
	}
	defer os.RemoveAll(tmpDir)

	localPath := filepath.Join(tmpDir, job.JobID+extOrDefault(key, ".wav"))
	if err := d.fetchSource(ctx, job, localPath); err != nil {
		return fmt.Errorf("fetch source: %w", err)
	}

	info, err := os.Stat(localPath)
	if err != nil || info.Size() == 0 {
		return fmt.Errorf("fetch produced empty or missing file %s", localPath)
	}

	storePath := localPath
	if job.SourceKind != pipeline.SourceVideoSite {
		normalized := filepath.Join(tmpDir, "normalized.wav")
		if err := d.converter.Normalize(ctx, localPath, normalized); err != nil {
			// The source may already be in the right format; store it as-is
			// rather than failing the job.
			logger.Warn("normalization failed, storing original", zap.Error(err))
		} else {
			storePath = normalized
		}
	}

	if err := d.store.PutFile(ctx, bucket, key, storePath, contentTypeForKey(key)); err != nil {
		return fmt.Errorf("store target: %w", err)
	}

	logger.Info("stored raw audio")
	return d.enqueueSplit(ctx, job)
}

func (d *Downloader) fetchSource(ctx context.Context, job pipeline.DownloadJob, destPath string) error {
	if job.SourceKind == pipeline.SourceObjectStore {
		bucket, key, err := parseStoreLocator(job.SourceLocator)
		if err != nil {
			return err
		}
		return d.store.GetFile(ctx, bucket, key, destPath)
	}
	return d.fetcher.Fetch(ctx, job.SourceKind, job.SourceLocator, destPath)
}

func (d *Downloader) enqueueSplit(ctx context.Context, job pipeline.DownloadJob) error {
	split := job.SplitJobFor(d.outputBucket)
	payload, err := json.Marshal(split)
	if err != nil {
		return fmt.Errorf("marshal split job: %w", err)
	}
	if _, err := d.splitQueue.Enqueue(ctx, payload, split.JobID); err != nil {
		return fmt.Errorf("enqueue split job: %w", err)
	}
	d.logger.Info("split job enqueued", zap.String("job_id", job.JobID))
	return nil
}

// parseStoreLocator splits "bucket/key" or "s3://bucket/key" into parts.
func parseStoreLocator(locator string) (bucket, key string, err error) {
	trimmed := strings.TrimPrefix(locator, "s3://")
	parts := strings.SplitN(trimmed, "/", 2)
	if len(parts) < 2 || parts[0] == "" || parts[1] == "" {
		return "", "", fmt.Errorf("invalid store locator %q", locator)
	}
	return parts[0], parts[1], nil
}
