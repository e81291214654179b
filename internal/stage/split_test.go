package stage

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"go.uber.org/zap"

	"github.com/your-org/segmentflow/internal/pipeline"
	"github.com/your-org/segmentflow/internal/segment"
)

func newTestSplitter(intermediate, output *fakeStore, planner *fakePlanner, conv *fakeConverter, events *fakeEvents) *Splitter {
	var pub EventPublisher
	if events != nil {
		pub = events
	}
	return NewSplitter(SplitterParams{
		Intermediate:        intermediate,
		Output:              output,
		Engine:              planner,
		Converter:           conv,
		Events:              pub,
		Logger:              zap.NewNop(),
		DefaultOutputBucket: "processed",
		UploadConcurrency:   4,
	})
}

func splitBody(t *testing.T, job pipeline.SplitJob) []byte {
	t.Helper()
	data, err := json.Marshal(job)
	if err != nil {
		t.Fatalf("marshal split job: %v", err)
	}
	return data
}

func TestSplitterSegmentsAndWritesManifest(t *testing.T) {
	intermediate := newFakeStore()
	intermediate.put("raw-audio", "j-1.wav", []byte("waveform"))
	output := newFakeStore()
	planner := &fakePlanner{segments: []segment.Segment{
		{Start: 0, End: 18.75, Duration: 18.75},
		{Start: 18.75, End: 30, Duration: 11.25},
	}}
	conv := &fakeConverter{duration: 30.004}
	events := &fakeEvents{}
	s := newTestSplitter(intermediate, output, planner, conv, events)

	body := splitBody(t, pipeline.SplitJob{
		JobID:        "j-1",
		SourceBucket: "raw-audio",
		SourceKey:    "j-1.wav",
	})
	if err := s.Process(context.Background(), body); err != nil {
		t.Fatalf("Process: %v", err)
	}

	if planner.gotMax != pipeline.DefaultMaxDurationSeconds {
		t.Errorf("planner max = %v, want default", planner.gotMax)
	}
	if len(conv.cuts) != 2 {
		t.Fatalf("cut %d times, want 2", len(conv.cuts))
	}
	if conv.cuts[0].start != 0 || conv.cuts[0].duration != 18.75 {
		t.Errorf("first cut = %+v", conv.cuts[0])
	}
	for _, key := range []string{"j-1/segment_001.wav", "j-1/segment_002.wav"} {
		if _, ok := output.get("processed", key); !ok {
			t.Errorf("missing output object %s", key)
		}
	}

	raw, ok := output.get("processed", "j-1/metadata.json")
	if !ok {
		t.Fatal("manifest not written")
	}
	var manifest pipeline.Manifest
	if err := json.Unmarshal(raw, &manifest); err != nil {
		t.Fatalf("unmarshal manifest: %v", err)
	}
	if manifest.JobID != "j-1" || manifest.TotalSegments != 2 {
		t.Errorf("manifest = %+v", manifest)
	}
	if manifest.SourceDuration != 30.0 {
		t.Errorf("source duration = %v, want 30 after rounding", manifest.SourceDuration)
	}
	if manifest.Segments[0].Filename != "segment_001.wav" || manifest.Segments[0].EndSeconds != 18.75 {
		t.Errorf("first segment info = %+v", manifest.Segments[0])
	}
	if manifest.Status != "" {
		t.Errorf("status = %q, want empty", manifest.Status)
	}

	if len(events.published) != 1 {
		t.Fatalf("published %d events, want 1", len(events.published))
	}
	if events.published[0].eventType != pipeline.EventTypeSegmentsCompleted {
		t.Errorf("event type = %q", events.published[0].eventType)
	}
}

func TestSplitterSkipsWhenOutputPresent(t *testing.T) {
	intermediate := newFakeStore()
	output := newFakeStore()
	output.put("processed", "j-2/segment_001.wav", []byte("done"))
	planner := &fakePlanner{}
	s := newTestSplitter(intermediate, output, planner, &fakeConverter{}, nil)

	body := splitBody(t, pipeline.SplitJob{
		JobID:        "j-2",
		SourceBucket: "raw-audio",
		SourceKey:    "j-2.wav",
	})
	if err := s.Process(context.Background(), body); err != nil {
		t.Fatalf("Process: %v", err)
	}
	if planner.calls != 0 {
		t.Errorf("planner called %d times on completed job, want 0", planner.calls)
	}
}

func TestSplitterNoSpeechWritesManifestOnly(t *testing.T) {
	intermediate := newFakeStore()
	intermediate.put("raw-audio", "j-3.wav", []byte("silence"))
	output := newFakeStore()
	events := &fakeEvents{}
	s := newTestSplitter(intermediate, output, &fakePlanner{}, &fakeConverter{}, events)

	body := splitBody(t, pipeline.SplitJob{
		JobID:        "j-3",
		SourceBucket: "raw-audio",
		SourceKey:    "j-3.wav",
	})
	if err := s.Process(context.Background(), body); err != nil {
		t.Fatalf("Process: %v", err)
	}

	if output.count() != 1 {
		t.Fatalf("output has %d objects, want only the manifest", output.count())
	}
	raw, ok := output.get("processed", "j-3/metadata.json")
	if !ok {
		t.Fatal("manifest not written")
	}
	var manifest pipeline.Manifest
	if err := json.Unmarshal(raw, &manifest); err != nil {
		t.Fatalf("unmarshal manifest: %v", err)
	}
	if manifest.Status != pipeline.StatusNoSpeech || manifest.TotalSegments != 0 {
		t.Errorf("manifest = %+v", manifest)
	}
	if len(events.published) != 0 {
		t.Errorf("published %d events for silent source, want 0", len(events.published))
	}
}

func TestSplitterNoManifestWhenUploadFails(t *testing.T) {
	intermediate := newFakeStore()
	intermediate.put("raw-audio", "j-4.wav", []byte("waveform"))
	output := newFakeStore()
	output.failPut["j-4/segment_002.wav"] = errors.New("connection reset")
	planner := &fakePlanner{segments: []segment.Segment{
		{Start: 0, End: 10, Duration: 10},
		{Start: 10, End: 20, Duration: 10},
	}}
	s := newTestSplitter(intermediate, output, planner, &fakeConverter{}, nil)

	body := splitBody(t, pipeline.SplitJob{
		JobID:        "j-4",
		SourceBucket: "raw-audio",
		SourceKey:    "j-4.wav",
	})
	if err := s.Process(context.Background(), body); err == nil {
		t.Fatal("Process succeeded despite upload failure")
	}
	if _, ok := output.get("processed", "j-4/metadata.json"); ok {
		t.Error("manifest written despite failed segment upload")
	}
}

func TestSplitterCutFailureUploadsNothing(t *testing.T) {
	intermediate := newFakeStore()
	intermediate.put("raw-audio", "j-5.wav", []byte("waveform"))
	output := newFakeStore()
	planner := &fakePlanner{segments: []segment.Segment{{Start: 0, End: 10, Duration: 10}}}
	conv := &fakeConverter{cutErr: errors.New("codec failure")}
	s := newTestSplitter(intermediate, output, planner, conv, nil)

	body := splitBody(t, pipeline.SplitJob{
		JobID:        "j-5",
		SourceBucket: "raw-audio",
		SourceKey:    "j-5.wav",
	})
	if err := s.Process(context.Background(), body); err == nil {
		t.Fatal("Process succeeded despite cut failure")
	}
	if output.count() != 0 {
		t.Errorf("output has %d objects after cut failure, want 0", output.count())
	}
}

func TestSplitterReadsFromOutputStore(t *testing.T) {
	intermediate := newFakeStore()
	output := newFakeStore()
	output.put("processed", "uploads/long.wav", []byte("waveform"))
	planner := &fakePlanner{segments: []segment.Segment{{Start: 0, End: 5, Duration: 5}}}
	s := newTestSplitter(intermediate, output, planner, &fakeConverter{}, nil)

	body := splitBody(t, pipeline.SplitJob{
		JobID:        "j-6",
		SourceBucket: "processed",
		SourceKey:    "uploads/long.wav",
		SourceStore:  pipeline.StoreOutput,
	})
	if err := s.Process(context.Background(), body); err != nil {
		t.Fatalf("Process: %v", err)
	}
	if _, ok := output.get("processed", "j-6/segment_001.wav"); !ok {
		t.Error("segment not written")
	}
}

func TestSplitterNormalizesNonWavSource(t *testing.T) {
	intermediate := newFakeStore()
	intermediate.put("raw-audio", "j-7.mp3", []byte("compressed"))
	output := newFakeStore()
	planner := &fakePlanner{segments: []segment.Segment{{Start: 0, End: 5, Duration: 5}}}
	conv := &fakeConverter{}
	s := newTestSplitter(intermediate, output, planner, conv, nil)

	body := splitBody(t, pipeline.SplitJob{
		JobID:        "j-7",
		SourceBucket: "raw-audio",
		SourceKey:    "j-7.mp3",
	})
	if err := s.Process(context.Background(), body); err != nil {
		t.Fatalf("Process: %v", err)
	}
	if conv.normalizeCalls != 1 {
		t.Errorf("normalize called %d times for mp3 source, want 1", conv.normalizeCalls)
	}
}

func TestSplitterNormalizeFailureIsFatal(t *testing.T) {
	intermediate := newFakeStore()
	intermediate.put("raw-audio", "j-8.mp3", []byte("compressed"))
	conv := &fakeConverter{normalizeErr: errors.New("unsupported codec")}
	s := newTestSplitter(intermediate, newFakeStore(), &fakePlanner{}, conv, nil)

	body := splitBody(t, pipeline.SplitJob{
		JobID:        "j-8",
		SourceBucket: "raw-audio",
		SourceKey:    "j-8.mp3",
	})
	if err := s.Process(context.Background(), body); err == nil {
		t.Error("Process succeeded despite normalize failure")
	}
}
