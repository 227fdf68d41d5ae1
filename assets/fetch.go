package assets

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"
)

// Fetcher opens an asset by URL or path. size is -1 when the transport does
// not report a length.
type Fetcher interface {
	Open(ctx context.Context, url string) (rc io.ReadCloser, size int64, err error)
}

// DefaultFetcher serves http(s) URLs over net/http and everything else from disk.
type DefaultFetcher struct {
	Client *http.Client
}

// NewFetcher returns a DefaultFetcher whose HTTP client gives up after timeout.
func NewFetcher(timeout time.Duration) *DefaultFetcher {
	return &DefaultFetcher{Client: &http.Client{Timeout: timeout}}
}

func isRemote(url string) bool {
	return strings.HasPrefix(url, "http://") || strings.HasPrefix(url, "https://")
}

func (f *DefaultFetcher) Open(ctx context.Context, url string) (io.ReadCloser, int64, error) {
	if isRemote(url) {
		return f.openHTTP(ctx, url)
	}
	file, err := os.Open(url)
	if err != nil {
		return nil, -1, fmt.Errorf("fetch: %w", err)
	}
	info, err := file.Stat()
	if err != nil {
		file.Close()
		return nil, -1, fmt.Errorf("fetch: %w", err)
	}
	return file, info.Size(), nil
}

func (f *DefaultFetcher) openHTTP(ctx context.Context, url string) (io.ReadCloser, int64, error) {
	client := f.Client
	if client == nil {
		client = http.DefaultClient
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, -1, fmt.Errorf("fetch: %w", err)
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, -1, fmt.Errorf("fetch: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, -1, fmt.Errorf("fetch: HTTP %d", resp.StatusCode)
	}
	return resp.Body, resp.ContentLength, nil
}
