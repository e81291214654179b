package segment

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"sort"
	"strconv"
	"strings"
)

// CommandDetector shells out to an external VAD program (a Silero runner by
// default) that prints detected speech intervals as a JSON array of
// {"start": seconds, "end": seconds} objects on stdout.
type CommandDetector struct {
	Path string
}

// NewCommandDetector builds a detector around the given executable.
func NewCommandDetector(path string) *CommandDetector {
	return &CommandDetector{Path: path}
}

// DetectSpeech runs the VAD command against wavPath and parses its output.
// Results are sorted by start time before being returned.
func (d *CommandDetector) DetectSpeech(ctx context.Context, wavPath string, params DetectParams) ([]Interval, error) {
	args := []string{
		"--input", wavPath,
		"--threshold", strconv.FormatFloat(params.Threshold, 'f', -1, 64),
		"--min-speech-ms", strconv.FormatInt(params.MinSpeech.Milliseconds(), 10),
		"--min-silence-ms", strconv.FormatInt(params.MinSilence.Milliseconds(), 10),
		"--pad-ms", strconv.FormatInt(params.Padding.Milliseconds(), 10),
	}

	cmd := exec.CommandContext(ctx, d.Path, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("%s failed: %w: %s", d.Path, err, strings.TrimSpace(stderr.String()))
	}

	var intervals []Interval
	if err := json.Unmarshal(stdout.Bytes(), &intervals); err != nil {
		return nil, fmt.Errorf("parse %s output: %w", d.Path, err)
	}

	sort.Slice(intervals, func(i, j int) bool {
		return intervals[i].Start < intervals[j].Start
	})
	return intervals, nil
}
