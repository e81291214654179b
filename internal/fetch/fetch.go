package fetch

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/your-org/segmentflow/internal/pipeline"
)

// ErrUnsupportedSource is returned for source kinds this fetcher cannot serve.
var ErrUnsupportedSource = errors.New("fetch: unsupported source kind")

// Fetcher retrieves one remote asset to a local path. Object-store sources are
// handled by the download stage directly and never reach a Fetcher.
type Fetcher interface {
	Fetch(ctx context.Context, kind pipeline.SourceKind, locator, destPath string) error
}

// Downloader fetches assets from video sites (via yt-dlp), shared drives, and
// direct URLs.
type Downloader struct {
	YTDLPPath  string
	HTTPClient *http.Client
}

// New constructs a Downloader.
func New(ytdlpPath string, httpTimeout time.Duration) *Downloader {
	return &Downloader{
		YTDLPPath:  ytdlpPath,
		HTTPClient: &http.Client{Timeout: httpTimeout},
	}
}

// Fetch dispatches on the source kind and writes the asset to destPath.
func (d *Downloader) Fetch(ctx context.Context, kind pipeline.SourceKind, locator, destPath string) error {
	switch kind {
	case pipeline.SourceVideoSite:
		return d.fetchVideoSite(ctx, locator, destPath)
	case pipeline.SourceSharedDrive:
		return d.fetchHTTP(ctx, sharedDriveURL(locator), destPath)
	case pipeline.SourceDirectURL:
		return d.fetchHTTP(ctx, locator, destPath)
	default:
		return fmt.Errorf("%w: %s", ErrUnsupportedSource, kind)
	}
}

// fetchVideoSite extracts audio with yt-dlp. yt-dlp picks the container
// extension itself, so the output template is extensionless and the produced
// file is renamed onto destPath afterwards.
func (d *Downloader) fetchVideoSite(ctx context.Context, url, destPath string) error {
	template := strings.TrimSuffix(destPath, filepath.Ext(destPath))

	args := []string{
		"--extract-audio",
		"--audio-format", "wav",
		"--audio-quality", "0",
		"--postprocessor-args", "-ar 16000 -ac 1",
		"--no-playlist",
		"-o", template + ".%(ext)s",
		url,
	}

	cmd := exec.CommandContext(ctx, d.YTDLPPath, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	cmd.Stdout = &stderr
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("%s failed: %w: %s", d.YTDLPPath, err, strings.TrimSpace(stderr.String()))
	}

	if _, err := os.Stat(destPath); err == nil {
		return nil
	}

	dir := filepath.Dir(destPath)
	entries, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("scan %s: %w", dir, err)
	}
	base := filepath.Base(template)
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasPrefix(entry.Name(), base) {
			continue
		}
		produced := filepath.Join(dir, entry.Name())
		if produced == destPath {
			return nil
		}
		return os.Rename(produced, destPath)
	}
	return fmt.Errorf("%s produced no output for %s", d.YTDLPPath, url)
}

func (d *Downloader) fetchHTTP(ctx context.Context, url, destPath string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}

	resp, err := d.HTTPClient.Do(req)
	if err != nil {
		return fmt.Errorf("fetch %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("fetch %s: unexpected status %s", url, resp.Status)
	}

	out, err := os.Create(destPath)
	if err != nil {
		return fmt.Errorf("create %s: %w", destPath, err)
	}
	defer out.Close()

	if _, err := io.Copy(out, resp.Body); err != nil {
		return fmt.Errorf("write %s: %w", destPath, err)
	}
	return nil
}

// sharedDriveURL converts a shared-drive locator (full link or bare file ID)
// into a direct download URL.
func sharedDriveURL(locator string) string {
	id := locator
	if strings.Contains(locator, "drive.google.com") {
		switch {
		case strings.Contains(locator, "/d/"):
			id = strings.SplitN(strings.SplitN(locator, "/d/", 2)[1], "/", 2)[0]
		case strings.Contains(locator, "id="):
			id = strings.SplitN(strings.SplitN(locator, "id=", 2)[1], "&", 2)[0]
		}
	}
	return "https://drive.google.com/uc?export=download&id=" + id
}
