package crawler

import (
	"errors"
	"fmt"
)

var (
	// ErrConnectionClosed is returned when the client stream went away mid-crawl.
	ErrConnectionClosed = errors.New("connection closed")
	// ErrSessionNotFound is returned when cancelling an unknown channel.
	ErrSessionNotFound = errors.New("session not found")
	// ErrNoDatedArticles is returned when a listing page has no article with a usable date.
	ErrNoDatedArticles = errors.New("no dated articles on page")
	// ErrQueueClosed is returned when pushing to a closed queue.
	ErrQueueClosed = errors.New("queue closed")
	// ErrBodyTooLarge marks a page whose body exceeds the fetch size cap.
	ErrBodyTooLarge = errors.New("response body too large")
	// ErrInvalidRequest wraps every client request validation failure.
	ErrInvalidRequest = errors.New("invalid request")
)

// FetchError reports a failed page download.
type FetchError struct {
	URL    string
	Status int
	Err    error
}

func (e *FetchError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("fetch %s: status %d", e.URL, e.Status)
	}
	return fmt.Sprintf("fetch %s: %v", e.URL, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// ExtractError reports a page whose HTML could not be interpreted.
type ExtractError struct {
	What string
	Err  error
}

func (e *ExtractError) Error() string {
	return fmt.Sprintf("extract %s: %v", e.What, e.Err)
}

func (e *ExtractError) Unwrap() error { return e.Err }

func invalidRequest(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidRequest, fmt.Sprintf(format, args...))
}
