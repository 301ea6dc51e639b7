package crawler

import (
	"context"
	"fmt"
	"time"

	"github.com/samvad-hq/samvad-board-crawler/internal/metrics"
	"github.com/samvad-hq/samvad-board-crawler/pkg/httpclient"
)

const maxHTMLBodyBytes = 4 << 20 // 4 MiB

// PageFetcher downloads forum pages with the source's headers and a per-call timeout.
type PageFetcher struct {
	client  httpclient.Client
	headers map[string]string
}

// NewPageFetcher wraps client; headers are sent with every request.
func NewPageFetcher(client httpclient.Client, headers map[string]string) *PageFetcher {
	return &PageFetcher{client: client, headers: headers}
}

// Fetch returns the body of url. Non-2xx responses and transport failures
// come back as *FetchError.
func (f *PageFetcher) Fetch(ctx context.Context, url string, timeout time.Duration) ([]byte, error) {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	resp, err := f.client.Get(ctx, url, f.headers)
	if err != nil {
		metrics.RecordPageFetch("error")
		return nil, &FetchError{URL: url, Err: err}
	}
	if code := resp.StatusCode(); code < 200 || code > 299 {
		metrics.RecordPageFetch("status")
		return nil, &FetchError{URL: url, Status: code}
	}

	// A cut page would parse into a silently incomplete record.
	body := resp.Body()
	if len(body) > maxHTMLBodyBytes {
		metrics.RecordPageFetch("too_large")
		return nil, &FetchError{URL: url, Err: fmt.Errorf("%w: %d bytes", ErrBodyTooLarge, len(body))}
	}
	metrics.RecordPageFetch("ok")
	return body, nil
}
