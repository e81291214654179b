package fetch

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/your-org/segmentflow/internal/pipeline"
)

func TestSharedDriveURL(t *testing.T) {
	tests := []struct {
		locator string
		want    string
	}{
		{
			locator: "1AbCdEfGh",
			want:    "https://drive.google.com/uc?export=download&id=1AbCdEfGh",
		},
		{
			locator: "https://drive.google.com/file/d/1AbCdEfGh/view?usp=sharing",
			want:    "https://drive.google.com/uc?export=download&id=1AbCdEfGh",
		},
		{
			locator: "https://drive.google.com/open?id=1AbCdEfGh&authuser=0",
			want:    "https://drive.google.com/uc?export=download&id=1AbCdEfGh",
		},
	}
	for _, tt := range tests {
		if got := sharedDriveURL(tt.locator); got != tt.want {
			t.Errorf("sharedDriveURL(%q) = %q, want %q", tt.locator, got, tt.want)
		}
	}
}

func TestFetchDirectURL(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("audio-payload")) //nolint:errcheck
	}))
	defer server.Close()

	d := New("yt-dlp", 5*time.Second)
	dest := filepath.Join(t.TempDir(), "out.mp3")

	if err := d.Fetch(context.Background(), pipeline.SourceDirectURL, server.URL, dest); err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	data, err := os.ReadFile(dest)
	if err != nil {
		t.Fatalf("read fetched file: %v", err)
	}
	if string(data) != "audio-payload" {
		t.Errorf("fetched = %q", data)
	}
}

func TestFetchDirectURLBadStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "gone", http.StatusNotFound)
	}))
	defer server.Close()

	d := New("yt-dlp", 5*time.Second)
	dest := filepath.Join(t.TempDir(), "out.mp3")

	if err := d.Fetch(context.Background(), pipeline.SourceDirectURL, server.URL, dest); err == nil {
		t.Error("Fetch succeeded on a 404 response")
	}
}

func TestFetchUnsupportedKind(t *testing.T) {
	d := New("yt-dlp", time.Second)
	err := d.Fetch(context.Background(), pipeline.SourceObjectStore, "bucket/key", "out.wav")
	if !errors.Is(err, ErrUnsupportedSource) {
		t.Errorf("err = %v, want ErrUnsupportedSource", err)
	}
}
