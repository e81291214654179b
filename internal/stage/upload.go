package stage

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/your-org/segmentflow/internal/pipeline"
)

// Uploader copies one object verbatim from the intermediate store to the
// output store. No segmentation, no normalization.
type Uploader struct {
	intermediate ObjectStore
	output       ObjectStore
	logger       *zap.Logger

	outputBucket string
	tempDir      string
}

// UploaderParams wires an Uploader.
type UploaderParams struct {
	Intermediate ObjectStore
	Output       ObjectStore
	Logger       *zap.Logger

	OutputBucket string
	TempDir      string
}

// NewUploader constructs the upload stage.
func NewUploader(p UploaderParams) *Uploader {
	return &Uploader{
		intermediate: p.Intermediate,
		output:       p.Output,
		logger:       p.Logger,
		outputBucket: p.OutputBucket,
		tempDir:      p.TempDir,
	}
}

// Process handles one upload queue message. The destination key is derived
// from the source key, so an existence check is a sufficient idempotency gate.
func (u *Uploader) Process(ctx context.Context, body []byte) error {
	job, err := pipeline.DecodeUploadJob(body)
	if err != nil {
		return err
	}

	destKey := job.DestinationKey()
	logger := u.logger.With(
		zap.String("source", job.SourceBucket+"/"+job.SourceKey),
		zap.String("dest", u.outputBucket+"/"+destKey),
	)

	exists, err := u.output.Exists(ctx, u.outputBucket, destKey)
	if err != nil {
		return fmt.Errorf("check destination: %w", err)
	}
	if exists {
		logger.Info("destination already present, skipping")
		return nil
	}

	tmpDir, err := os.MkdirTemp(u.tempDir, "upload-*")
	if err != nil {
		return fmt.Errorf("create temp dir: %w", err)
	}
	defer os.RemoveAll(tmpDir)

	localPath := filepath.Join(tmpDir, "transfer"+extOrDefault(job.SourceKey, ".mp3"))
	if err := u.intermediate.GetFile(ctx, job.SourceBucket, job.SourceKey, localPath); err != nil {
		return fmt.Errorf("fetch source: %w", err)
	}

	if err := u.output.PutFile(ctx, u.outputBucket, destKey, localPath, contentTypeForKey(job.SourceKey)); err != nil {
		return fmt.Errorf("store destination: %w", err)
	}

	logger.Info("transferred object")
	return nil
}
