package app

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/samvad-hq/samvad-board-crawler/internal/crawler"
	"github.com/samvad-hq/samvad-board-crawler/internal/domain"
	"github.com/samvad-hq/samvad-board-crawler/pkg/providers"
)

// LineStream writes each message as one line to w. It never closes on its
// own, so Done only fires when the owning context is cancelled.
type LineStream struct {
	mu   sync.Mutex
	w    io.Writer
	done <-chan struct{}
}

// NewLineStream returns a stream writing JSON lines to w until ctx ends.
func NewLineStream(ctx context.Context, w io.Writer) *LineStream {
	return &LineStream{w: w, done: ctx.Done()}
}

func (s *LineStream) SendJSON(ctx context.Context, v any) error {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("encode message: %w", err)
	}
	return s.write(ctx, buf.Bytes())
}

func (s *LineStream) SendText(ctx context.Context, text string) error {
	return s.write(ctx, []byte(text+"\n"))
}

func (s *LineStream) Done() <-chan struct{} { return s.done }

func (s *LineStream) write(ctx context.Context, line []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := s.w.Write(line); err != nil {
		return fmt.Errorf("%w: %v", crawler.ErrConnectionClosed, err)
	}
	return nil
}

// Crawl runs one request to completion, streaming records to w.
func (r *Runtime) Crawl(ctx context.Context, req domain.CrawlRequest, w io.Writer) (crawler.Stats, error) {
	job, err := r.service.Prepare(req)
	if err != nil {
		return crawler.Stats{}, err
	}
	return r.service.Run(ctx, job, "cli", NewLineStream(ctx, w))
}

// LocateResult reports where a date starts on a board.
type LocateResult struct {
	Board    string `json:"board"`
	Date     string `json:"date"`
	LastPage int    `json:"last_page"`
	Page     int    `json:"page"`
}

// Locate finds the listing page holding the first articles of date (YYYYMMDD).
func (r *Runtime) Locate(ctx context.Context, typ, board, date string) (LocateResult, error) {
	src, err := r.Source(typ)
	if err != nil {
		return LocateResult{}, err
	}
	target, err := time.ParseInLocation("20060102", strings.TrimSpace(date), providers.BoardZone)
	if err != nil {
		return LocateResult{}, fmt.Errorf("%w: date %q must be YYYYMMDD", crawler.ErrInvalidRequest, date)
	}

	lastPage, err := r.service.LastPage(ctx, src, board)
	if err != nil {
		return LocateResult{}, err
	}
	page, err := r.service.Locate(ctx, src, board, lastPage, target)
	if err != nil {
		return LocateResult{}, err
	}
	return LocateResult{Board: board, Date: date, LastPage: lastPage, Page: page}, nil
}
