package crawler

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/samvad-hq/samvad-board-crawler/pkg/httpclient"
)

type stubResponse struct {
	body   []byte
	status int
}

func (r stubResponse) Body() []byte    { return r.body }
func (r stubResponse) StatusCode() int { return r.status }

// stubClient answers every GET with a fixed response.
type stubClient struct {
	resp        stubResponse
	err         error
	gotHeaders  map[string]string
	gotDeadline bool
}

func (c *stubClient) Get(ctx context.Context, _ string, headers map[string]string) (httpclient.Response, error) {
	c.gotHeaders = headers
	_, c.gotDeadline = ctx.Deadline()
	if c.err != nil {
		return nil, c.err
	}
	return c.resp, nil
}

func TestPageFetcherSuccess(t *testing.T) {
	client := &stubClient{resp: stubResponse{body: []byte("<html/>"), status: 200}}
	f := NewPageFetcher(client, map[string]string{"Cookie": "over18=1"})

	body, err := f.Fetch(context.Background(), "https://example/bbs/b/index.html", 3*time.Second)
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if string(body) != "<html/>" {
		t.Fatalf("unexpected body %q", body)
	}
	if client.gotHeaders["Cookie"] != "over18=1" {
		t.Fatalf("cookie header not forwarded: %v", client.gotHeaders)
	}
	if !client.gotDeadline {
		t.Fatalf("expected per-call deadline on the request context")
	}
}

func TestPageFetcherNon2xx(t *testing.T) {
	f := NewPageFetcher(&stubClient{resp: stubResponse{status: 503}}, nil)

	_, err := f.Fetch(context.Background(), "https://example/x", time.Second)
	var fetchErr *FetchError
	if !errors.As(err, &fetchErr) {
		t.Fatalf("expected *FetchError, got %T", err)
	}
	if fetchErr.Status != 503 || fetchErr.URL != "https://example/x" {
		t.Fatalf("unexpected fetch error %+v", fetchErr)
	}
}

func TestPageFetcherTransportError(t *testing.T) {
	f := NewPageFetcher(&stubClient{err: context.DeadlineExceeded}, nil)

	_, err := f.Fetch(context.Background(), "https://example/x", time.Second)
	var fetchErr *FetchError
	if !errors.As(err, &fetchErr) || fetchErr.Status != 0 {
		t.Fatalf("expected transport FetchError, got %v", err)
	}
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected wrapped deadline error, got %v", err)
	}
}

func TestPageFetcherRejectsOversizedBody(t *testing.T) {
	big := make([]byte, maxHTMLBodyBytes+1)
	f := NewPageFetcher(&stubClient{resp: stubResponse{body: big, status: 200}}, nil)

	body, err := f.Fetch(context.Background(), "https://example/bbs/b/M.1.A.1.html", time.Second)
	if body != nil {
		t.Fatalf("oversized body must not be returned, got %d bytes", len(body))
	}
	var fetchErr *FetchError
	if !errors.As(err, &fetchErr) || fetchErr.URL != "https://example/bbs/b/M.1.A.1.html" {
		t.Fatalf("expected *FetchError, got %v", err)
	}
	if !errors.Is(err, ErrBodyTooLarge) {
		t.Fatalf("expected ErrBodyTooLarge, got %v", err)
	}
}

func TestPageFetcherAcceptsBodyAtCap(t *testing.T) {
	f := NewPageFetcher(&stubClient{resp: stubResponse{body: make([]byte, maxHTMLBodyBytes), status: 200}}, nil)

	body, err := f.Fetch(context.Background(), "https://example/x", time.Second)
	if err != nil || len(body) != maxHTMLBodyBytes {
		t.Fatalf("body at the cap should pass, got %d bytes, err %v", len(body), err)
	}
}
