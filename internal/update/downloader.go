package update

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"

	"github.com/shirou/gopsutil/v3/disk"

	"github.com/adamancini/unipatch/internal/fsys"
)

// HTTPDownloader streams artifacts to disk through a filesystem gateway.
type HTTPDownloader struct {
	client    *http.Client
	fs        fsys.Gateway
	userAgent string
	freeSpace func(ctx context.Context, dir string) (uint64, error)
}

// NewHTTPDownloader creates a downloader writing through fs.
// The client has no overall timeout; large packages take as long as they take.
func NewHTTPDownloader(fs fsys.Gateway) *HTTPDownloader {
	return &HTTPDownloader{
		client:    &http.Client{},
		fs:        fs,
		userAgent: "unipatch",
		freeSpace: diskFree,
	}
}

// WithClient replaces the HTTP client (for testing)
func (d *HTTPDownloader) WithClient(client *http.Client) *HTTPDownloader {
	d.client = client
	return d
}

// FetchToFile downloads url to dst, reporting percentages to onProgress.
// When the server sends no Content-Length only the final 100 is reported.
func (d *HTTPDownloader) FetchToFile(ctx context.Context, url, dst string, onProgress func(pct int)) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	if d.userAgent != "" {
		req.Header.Set("User-Agent", d.userAgent)
	}

	resp, err := d.client.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("server returned status %d", resp.StatusCode)
	}

	if err := d.checkSpace(ctx, dst, resp.ContentLength); err != nil {
		return err
	}

	var reader io.Reader = resp.Body
	if onProgress != nil {
		reader = &progressReader{
			reader:   resp.Body,
			total:    resp.ContentLength,
			progress: onProgress,
			last:     -1,
		}
	}

	// net/http reports a body shorter than Content-Length as an error, so a
	// truncated transfer never reaches the rename in WriteStream.
	if _, err := d.fs.WriteStream(dst, reader); err != nil {
		return fmt.Errorf("failed to write artifact: %w", err)
	}

	if onProgress != nil {
		onProgress(100)
	}

	return nil
}

// checkSpace fails early when the announced size does not fit on the
// destination volume. Unknown sizes and failed probes are let through.
func (d *HTTPDownloader) checkSpace(ctx context.Context, dst string, size int64) error {
	if size <= 0 || d.freeSpace == nil {
		return nil
	}
	free, err := d.freeSpace(ctx, existingParent(filepath.Dir(dst)))
	if err != nil {
		return nil
	}
	if uint64(size) > free {
		return fmt.Errorf("not enough disk space for %s: need %d bytes, %d available", dst, size, free)
	}
	return nil
}

func diskFree(ctx context.Context, dir string) (uint64, error) {
	usage, err := disk.UsageWithContext(ctx, dir)
	if err != nil {
		return 0, err
	}
	return usage.Free, nil
}

// existingParent returns dir or its nearest ancestor that exists.
func existingParent(dir string) string {
	for {
		if _, err := os.Stat(dir); err == nil {
			return dir
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return dir
		}
		dir = parent
	}
}

// progressReader wraps a reader to report percentage progress
type progressReader struct {
	reader     io.Reader
	total      int64
	downloaded int64
	last       int
	progress   func(pct int)
}

func (pr *progressReader) Read(p []byte) (int, error) {
	n, err := pr.reader.Read(p)
	pr.downloaded += int64(n)
	if pr.total > 0 {
		// 100 is reported by FetchToFile once the file is in place.
		pct := int(pr.downloaded * 100 / pr.total)
		if pct > 99 {
			pct = 99
		}
		if pct != pr.last {
			pr.last = pct
			pr.progress(pct)
		}
	}
	return n, err
}
