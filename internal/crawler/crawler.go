package crawler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/samvad-hq/samvad-board-crawler/internal/domain"
	"github.com/samvad-hq/samvad-board-crawler/internal/logger"
	"github.com/samvad-hq/samvad-board-crawler/internal/metrics"
	"github.com/samvad-hq/samvad-board-crawler/pkg/httpclient"
	"github.com/samvad-hq/samvad-board-crawler/pkg/providers"
)

// Options tunes a Service.
type Options struct {
	ListingWorkers int
	ArticleWorkers int
	FetchTimeout   time.Duration
	IndexTimeout   time.Duration
	EarlyExit      bool
	EmitItemErrors bool
}

// Service turns crawl requests into streamed records.
type Service struct {
	sources   providers.SourceRegistry
	client    httpclient.Client
	opts      Options
	cache     WindowCache
	publisher EventPublisher
	log       logger.Logger
}

// NewService wires a crawler with the source registry and HTTP client.
// cache and publisher may be nil.
func NewService(sources providers.SourceRegistry, client httpclient.Client, opts Options, cache WindowCache, publisher EventPublisher, log logger.Logger) *Service {
	if opts.FetchTimeout <= 0 {
		opts.FetchTimeout = 30 * time.Second
	}
	if opts.IndexTimeout <= 0 {
		opts.IndexTimeout = 3 * time.Second
	}
	return &Service{
		sources:   sources,
		client:    client,
		opts:      opts,
		cache:     cache,
		publisher: publisher,
		log:       logger.Ensure(log),
	}
}

// Prepare validates req into a Job.
func (s *Service) Prepare(req domain.CrawlRequest) (Job, error) {
	if s == nil || s.sources == nil {
		return Job{}, fmt.Errorf("crawler service is not initialized")
	}
	return NewJob(req, s.sources)
}

// LastPage reads the newest listing page number of board.
func (s *Service) LastPage(ctx context.Context, src providers.Source, board string) (int, error) {
	body, err := s.fetcherFor(src).Fetch(ctx, src.IndexURL(board), s.opts.IndexTimeout)
	if err != nil {
		return 0, fmt.Errorf("last page of %s: %w", board, err)
	}
	last, err := src.LastPage(body, board)
	if err != nil {
		return 0, &ExtractError{What: "index page of " + board, Err: err}
	}
	return last, nil
}

// Locate returns the page where a crawl of board starting on target begins.
func (s *Service) Locate(ctx context.Context, src providers.Source, board string, lastPage int, target time.Time) (int, error) {
	probe := NewProbe(src, s.fetcherFor(src), s.opts.FetchTimeout, s.cache, s.log)
	return NewLocator(probe, s.opts.EarlyExit, s.log).Locate(ctx, board, lastPage, target)
}

// Run executes one crawl: last page lookup, start page search, then the
// worker pipeline streaming into stream.
func (s *Service) Run(ctx context.Context, job Job, channelID string, stream Stream) (Stats, error) {
	runID := uuid.NewString()
	board := job.Request.Board
	started := time.Now()

	last, err := s.LastPage(ctx, job.Source, board)
	if err != nil {
		metrics.RecordCrawlRun("failed")
		return Stats{}, err
	}
	start, err := s.Locate(ctx, job.Source, board, last, job.Window.Start)
	if err != nil {
		metrics.RecordCrawlRun("failed")
		return Stats{}, fmt.Errorf("locate start page: %w", err)
	}

	s.log.InfoObj("crawl started", "crawl_run", map[string]any{
		"run_id":     runID,
		"channel_id": channelID,
		"source":     job.Source.ID(),
		"board":      board,
		"start_date": job.Request.StartDate,
		"end_date":   job.Request.EndDate,
		"keyword":    job.Request.Keyword,
		"start_page": start,
		"last_page":  last,
	})

	pipeline := NewPipeline(job.Source, s.fetcherFor(job.Source), PipelineConfig{
		ListingWorkers: s.opts.ListingWorkers,
		ArticleWorkers: s.opts.ArticleWorkers,
		FetchTimeout:   s.opts.FetchTimeout,
		EmitItemErrors: s.opts.EmitItemErrors,
	}, s.publisher, s.log)

	stats, err := pipeline.Run(ctx, Run{
		ID:        runID,
		ChannelID: channelID,
		Board:     board,
		Filter:    job.Filter,
		StartPage: start,
		LastPage:  last,
	}, stream)

	status := "completed"
	switch {
	case errors.Is(err, ErrConnectionClosed), errors.Is(err, context.Canceled):
		status = "cancelled"
	case err != nil:
		status = "failed"
	}
	metrics.RecordCrawlRun(status)

	s.log.InfoObj("crawl finished", "crawl_result", map[string]any{
		"run_id":      runID,
		"channel_id":  channelID,
		"board":       board,
		"status":      status,
		"pages":       stats.Pages,
		"refs":        stats.Refs,
		"emitted":     stats.Emitted,
		"rejected":    stats.Rejected,
		"failed":      stats.Failed,
		"duration_ms": time.Since(started).Milliseconds(),
	})
	return stats, err
}

func (s *Service) fetcherFor(src providers.Source) Fetcher {
	return NewPageFetcher(s.client, src.Headers())
}
