package crawler

import (
	"context"
	"time"

	"github.com/samvad-hq/samvad-board-crawler/internal/domain"
	"github.com/samvad-hq/samvad-board-crawler/pkg/publishers"
)

// Stream is the per-connection sink a crawl writes to.
type Stream interface {
	// SendJSON writes one JSON message; it returns ErrConnectionClosed once the client is gone.
	SendJSON(ctx context.Context, v any) error
	// SendText writes one plain text message.
	SendText(ctx context.Context, text string) error
	// Done is closed when the stream can no longer be written to.
	Done() <-chan struct{}
}

// EventPublisher mirrors streamed records downstream.
type EventPublisher interface {
	Publish(ctx context.Context, evt publishers.Event) (int, error)
}

// WindowCache remembers the publish window of listing pages that no longer change.
type WindowCache interface {
	GetWindow(ctx context.Context, board string, page int) (domain.PageWindow, bool, error)
	PutWindow(ctx context.Context, board string, page int, w domain.PageWindow) error
}

// Fetcher downloads one page body.
type Fetcher interface {
	Fetch(ctx context.Context, url string, timeout time.Duration) ([]byte, error)
}

// WindowProber reports the publish window of a listing page.
type WindowProber interface {
	Probe(ctx context.Context, board string, page, lastPage int) (domain.PageWindow, error)
}
