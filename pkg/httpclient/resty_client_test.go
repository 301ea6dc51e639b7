package httpclient

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestRestyClientSendsHeadersAndCookies(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c, err := r.Cookie("over18")
		if err != nil || c.Value != "1" {
			http.Error(w, "missing cookie", http.StatusForbidden)
			return
		}
		if got := r.Header.Get("User-Agent"); got != "board-test" {
			http.Error(w, "bad agent", http.StatusBadRequest)
			return
		}
		_, _ = w.Write([]byte("<html>ok</html>"))
	}))
	defer srv.Close()

	client := NewRestyClient(2 * time.Second)
	resp, err := client.Get(context.Background(), srv.URL, map[string]string{
		"Cookie":     "over18=1",
		"User-Agent": "board-test",
	})
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if resp.StatusCode() != http.StatusOK {
		t.Fatalf("unexpected status %d body %s", resp.StatusCode(), resp.Body())
	}
	if string(resp.Body()) != "<html>ok</html>" {
		t.Fatalf("unexpected body %q", resp.Body())
	}
}

func TestRestyClientHonoursContextDeadline(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	if _, err := NewRestyClient(5*time.Second).Get(ctx, srv.URL, nil); err == nil {
		t.Fatalf("expected deadline error")
	}
}
