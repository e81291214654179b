package stage

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/your-org/segmentflow/internal/pipeline"
	"github.com/your-org/segmentflow/internal/segment"
)

type fakeStore struct {
	mu      sync.Mutex
	objects map[string][]byte
	types   map[string]string
	failPut map[string]error
	getErr  error
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		objects: map[string][]byte{},
		types:   map[string]string{},
		failPut: map[string]error{},
	}
}

func objKey(bucket, key string) string {
	return bucket + "/" + key
}

func (f *fakeStore) put(bucket, key string, data []byte) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.objects[objKey(bucket, key)] = data
}

func (f *fakeStore) get(bucket, key string) ([]byte, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	data, ok := f.objects[objKey(bucket, key)]
	return data, ok
}

func (f *fakeStore) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.objects)
}

func (f *fakeStore) Exists(_ context.Context, bucket, key string) (bool, error) {
	_, ok := f.get(bucket, key)
	return ok, nil
}

func (f *fakeStore) HasPrefix(_ context.Context, bucket, prefix string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	full := objKey(bucket, prefix)
	for k := range f.objects {
		if strings.HasPrefix(k, full) {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeStore) GetFile(_ context.Context, bucket, key, localPath string) error {
	if f.getErr != nil {
		return f.getErr
	}
	data, ok := f.get(bucket, key)
	if !ok {
		return fmt.Errorf("object %s/%s not found", bucket, key)
	}
	return os.WriteFile(localPath, data, 0o644)
}

func (f *fakeStore) PutFile(_ context.Context, bucket, key, localPath, contentType string) error {
	f.mu.Lock()
	err := f.failPut[key]
	f.mu.Unlock()
	if err != nil {
		return err
	}
	data, rerr := os.ReadFile(localPath)
	if rerr != nil {
		return rerr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.objects[objKey(bucket, key)] = data
	f.types[objKey(bucket, key)] = contentType
	return nil
}

func (f *fakeStore) PutJSON(_ context.Context, bucket, key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	f.put(bucket, key, data)
	return nil
}

type enqueued struct {
	body    []byte
	groupID string
}

type fakeQueue struct {
	mu       sync.Mutex
	messages []enqueued
	err      error
}

func (f *fakeQueue) Enqueue(_ context.Context, body []byte, groupID string) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.messages = append(f.messages, enqueued{body: body, groupID: groupID})
	return fmt.Sprintf("m-%d", len(f.messages)), nil
}

type cutCall struct {
	start    float64
	duration float64
}

type fakeConverter struct {
	mu             sync.Mutex
	normalizeErr   error
	cutErr         error
	duration       float64
	durationErr    error
	normalizeCalls int
	cuts           []cutCall
}

func (f *fakeConverter) Normalize(_ context.Context, inputPath, outputPath string) error {
	f.mu.Lock()
	f.normalizeCalls++
	f.mu.Unlock()
	if f.normalizeErr != nil {
		return f.normalizeErr
	}
	data, err := os.ReadFile(inputPath)
	if err != nil {
		return err
	}
	return os.WriteFile(outputPath, data, 0o644)
}

func (f *fakeConverter) Cut(_ context.Context, inputPath, outputPath string, start, duration float64) error {
	f.mu.Lock()
	f.cuts = append(f.cuts, cutCall{start: start, duration: duration})
	f.mu.Unlock()
	if f.cutErr != nil {
		return f.cutErr
	}
	return os.WriteFile(outputPath, []byte(fmt.Sprintf("cut %v+%v", start, duration)), 0o644)
}

func (f *fakeConverter) ProbeDuration(_ context.Context, _ string) (float64, error) {
	return f.duration, f.durationErr
}

type fakePlanner struct {
	segments []segment.Segment
	err      error

	gotMax float64
	calls  int
}

func (f *fakePlanner) Plan(_ context.Context, _ string, maxDuration float64) ([]segment.Segment, error) {
	f.calls++
	f.gotMax = maxDuration
	return f.segments, f.err
}

type fakeFetcher struct {
	payload []byte
	err     error

	calls      int
	gotKind    pipeline.SourceKind
	gotLocator string
}

func (f *fakeFetcher) Fetch(_ context.Context, kind pipeline.SourceKind, locator, destPath string) error {
	f.calls++
	f.gotKind = kind
	f.gotLocator = locator
	if f.err != nil {
		return f.err
	}
	return os.WriteFile(destPath, f.payload, 0o644)
}

type publishedEvent struct {
	key       string
	eventType string
	event     any
}

type fakeEvents struct {
	mu        sync.Mutex
	published []publishedEvent
	err       error
}

func (f *fakeEvents) PublishJSON(_ context.Context, key, eventType string, event any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.published = append(f.published, publishedEvent{key: key, eventType: eventType, event: event})
	return f.err
}
