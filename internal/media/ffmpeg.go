package media

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"strings"
)

// Converter wraps ffmpeg/ffprobe calls for the pipeline's audio handling.
type Converter struct {
	FFmpegPath  string
	FFprobePath string
}

// NewConverter builds a Converter using the given binary paths.
func NewConverter(ffmpegPath, ffprobePath string) *Converter {
	return &Converter{FFmpegPath: ffmpegPath, FFprobePath: ffprobePath}
}

// Normalize converts any input audio into mono 16 kHz 16-bit linear PCM WAV.
// Output is written to a temp file and renamed in, so a failed run never
// leaves a partial file at outputPath.
func (c *Converter) Normalize(ctx context.Context, inputPath, outputPath string) error {
	tmpPath := outputPath + ".conv.wav"
	_ = os.Remove(tmpPath)

	args := []string{
		"-y",
		"-i", inputPath,
		"-ac", "1",
		"-ar", "16000",
		"-acodec", "pcm_s16le",
		tmpPath,
	}
	if err := run(ctx, c.FFmpegPath, args...); err != nil {
		_ = os.Remove(tmpPath)
		return err
	}

	_ = os.Remove(outputPath)
	return os.Rename(tmpPath, outputPath)
}

// Cut extracts [start, start+duration) seconds from a WAV file into outputPath.
func (c *Converter) Cut(ctx context.Context, inputPath, outputPath string, start, duration float64) error {
	args := []string{
		"-y",
		"-ss", formatSeconds(start),
		"-i", inputPath,
		"-t", formatSeconds(duration),
		"-acodec", "pcm_s16le",
		outputPath,
	}
	return run(ctx, c.FFmpegPath, args...)
}

// ProbeDuration returns the duration of a media file in seconds.
func (c *Converter) ProbeDuration(ctx context.Context, inputPath string) (float64, error) {
	args := []string{
		"-v", "error",
		"-show_entries", "format=duration",
		"-of", "default=nokey=1:noprint_wrappers=1",
		inputPath,
	}
	cmd := exec.CommandContext(ctx, c.FFprobePath, args...)
	out, err := cmd.Output()
	if err != nil {
		return 0, fmt.Errorf("%s failed: %w", c.FFprobePath, err)
	}
	value := strings.TrimSpace(string(out))
	if value == "" {
		return 0, fmt.Errorf("duration missing for %s", inputPath)
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return 0, fmt.Errorf("parse duration %q: %w", value, err)
	}
	return parsed, nil
}

func formatSeconds(v float64) string {
	return strconv.FormatFloat(v, 'f', 3, 64)
}

func run(ctx context.Context, name string, args ...string) error {
	cmd := exec.CommandContext(ctx, name, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	cmd.Stdout = &stderr
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("%s failed: %w: %s", name, err, strings.TrimSpace(stderr.String()))
	}
	return nil
}
