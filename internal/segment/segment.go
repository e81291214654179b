package segment

import (
	"context"
	"fmt"
	"time"
)

// Interval is a half-open time range in seconds within a source waveform.
type Interval struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`
}

// Length returns the interval duration in seconds.
func (iv Interval) Length() float64 {
	return iv.End - iv.Start
}

// Segment is a bounded speech interval ready to be cut from the source.
type Segment struct {
	Start    float64
	End      float64
	Duration float64
}

// DetectParams tunes the speech detector.
type DetectParams struct {
	Threshold  float64
	MinSpeech  time.Duration
	MinSilence time.Duration
	Padding    time.Duration
}

// Detector yields raw, time-ordered speech intervals for a mono 16 kHz WAV
// file. Implementations are external collaborators; the engine treats them as
// black boxes.
type Detector interface {
	DetectSpeech(ctx context.Context, wavPath string, params DetectParams) ([]Interval, error)
}

// Options configures an Engine.
type Options struct {
	Params      DetectParams
	MaxDuration time.Duration
	MinDuration time.Duration
}

// Engine turns detector output into an ordered, non-overlapping sequence of
// duration-bounded segments. It never touches audio bytes itself; cutting and
// encoding are downstream concerns driven by the returned list.
type Engine struct {
	detector Detector
	params   DetectParams
	maxDur   float64
	minDur   float64
}

// NewEngine constructs an Engine around the given detector.
func NewEngine(detector Detector, opts Options) *Engine {
	return &Engine{
		detector: detector,
		params:   opts.Params,
		maxDur:   opts.MaxDuration.Seconds(),
		minDur:   opts.MinDuration.Seconds(),
	}
}

// Plan detects speech in wavPath and returns the final segment sequence.
// maxDuration overrides the engine default when positive. Intervals shorter
// than the minimum after chopping are dropped.
func (e *Engine) Plan(ctx context.Context, wavPath string, maxDuration float64) ([]Segment, error) {
	if maxDuration <= 0 {
		maxDuration = e.maxDur
	}
	if maxDuration <= 0 {
		return nil, fmt.Errorf("segment: non-positive max duration")
	}

	raw, err := e.detector.DetectSpeech(ctx, wavPath, e.params)
	if err != nil {
		return nil, fmt.Errorf("detect speech: %w", err)
	}

	chopped := ChopAll(raw, maxDuration)

	segments := make([]Segment, 0, len(chopped))
	for _, iv := range chopped {
		if iv.Length() < e.minDur {
			continue
		}
		segments = append(segments, Segment{
			Start:    iv.Start,
			End:      iv.End,
			Duration: iv.Length(),
		})
	}
	return segments, nil
}

// Chop bisects iv at its midpoint until every piece is at most max seconds
// long. Pieces tile iv exactly: no gaps, no overlaps, order preserved. The
// recursion of the definition is unwound onto an explicit stack so a
// multi-hour interval cannot exhaust the call stack.
func Chop(iv Interval, max float64) []Interval {
	if iv.Length() <= max {
		return []Interval{iv}
	}

	var out []Interval
	stack := []Interval{iv}
	for len(stack) > 0 {
		cur := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		if cur.Length() <= max {
			out = append(out, cur)
			continue
		}
		mid := (cur.Start + cur.End) / 2
		// Right half below left so the left half pops first.
		stack = append(stack, Interval{Start: mid, End: cur.End}, Interval{Start: cur.Start, End: mid})
	}
	return out
}

// ChopAll applies Chop to each interval in order.
func ChopAll(intervals []Interval, max float64) []Interval {
	out := make([]Interval, 0, len(intervals))
	for _, iv := range intervals {
		out = append(out, Chop(iv, max)...)
	}
	return out
}
