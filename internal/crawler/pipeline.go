package crawler

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"

	"github.com/samvad-hq/samvad-board-crawler/internal/domain"
	"github.com/samvad-hq/samvad-board-crawler/internal/logger"
	"github.com/samvad-hq/samvad-board-crawler/internal/metrics"
	"github.com/samvad-hq/samvad-board-crawler/pkg/providers"
	"github.com/samvad-hq/samvad-board-crawler/pkg/publishers"
)

// DoneMessage is the text frame that ends a crawl on the stream.
const DoneMessage = "done"

// PipelineConfig sizes the worker pools.
type PipelineConfig struct {
	ListingWorkers int
	ArticleWorkers int
	FetchTimeout   time.Duration
	EmitItemErrors bool
}

// Run describes one crawl handed to the pipeline.
type Run struct {
	ID        string
	ChannelID string
	Board     string
	Filter    Filter
	StartPage int
	LastPage  int
}

// Stats summarises a finished pipeline run.
type Stats struct {
	Pages    int64 `json:"pages"`
	Refs     int64 `json:"refs"`
	Emitted  int64 `json:"emitted"`
	Rejected int64 `json:"rejected"`
	Failed   int64 `json:"failed"`
}

type counters struct {
	pages, refs, emitted, rejected, failed atomic.Int64
}

func (c *counters) snapshot() Stats {
	return Stats{
		Pages:    c.pages.Load(),
		Refs:     c.refs.Load(),
		Emitted:  c.emitted.Load(),
		Rejected: c.rejected.Load(),
		Failed:   c.failed.Load(),
	}
}

// queuedRef remembers which listing page a ref came from.
type queuedRef struct {
	Page int
	Ref  domain.ArticleRef
}

// Pipeline runs the listing and article worker pools of a crawl.
type Pipeline struct {
	source    providers.Source
	fetcher   Fetcher
	cfg       PipelineConfig
	publisher EventPublisher
	log       logger.Logger
}

// NewPipeline builds a pipeline; publisher may be nil.
func NewPipeline(source providers.Source, fetcher Fetcher, cfg PipelineConfig, publisher EventPublisher, log logger.Logger) *Pipeline {
	if cfg.ListingWorkers <= 0 {
		cfg.ListingWorkers = 1
	}
	if cfg.ArticleWorkers <= 0 {
		cfg.ArticleWorkers = 1
	}
	return &Pipeline{
		source:    source,
		fetcher:   fetcher,
		cfg:       cfg,
		publisher: publisher,
		log:       logger.Ensure(log),
	}
}

// Run crawls pages [run.StartPage, run.LastPage] and streams every record
// that passes run.Filter. Once both pools have returned it writes
// DoneMessage, provided the stream is still open and ctx is live.
func (p *Pipeline) Run(ctx context.Context, run Run, stream Stream) (Stats, error) {
	if run.StartPage < 1 || run.StartPage > run.LastPage {
		return Stats{}, fmt.Errorf("invalid page range [%d, %d]", run.StartPage, run.LastPage)
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		select {
		case <-stream.Done():
			cancel()
		case <-runCtx.Done():
		}
	}()

	seed := make([]int, 0, run.LastPage-run.StartPage+1)
	for page := run.StartPage; page <= run.LastPage; page++ {
		seed = append(seed, page)
	}
	pages := NewQueue(seed...)
	pages.Close()
	refs := NewQueue[queuedRef]()

	var c counters

	var listingWG sync.WaitGroup
	for i := 0; i < p.cfg.ListingWorkers; i++ {
		listingWG.Add(1)
		go func(id int) {
			defer listingWG.Done()
			p.listingWorker(runCtx, id, run, pages, refs, stream, &c)
		}(i)
	}
	listingDone := make(chan struct{})
	go func() {
		listingWG.Wait()
		refs.Close()
		close(listingDone)
	}()

	var articleWG sync.WaitGroup
	for i := 0; i < p.cfg.ArticleWorkers; i++ {
		articleWG.Add(1)
		go func(id int) {
			defer articleWG.Done()
			p.articleWorker(runCtx, id, run, refs, stream, &c)
		}(i)
	}

	articleWG.Wait()
	<-listingDone

	stats := c.snapshot()
	if !streamOpen(stream) {
		return stats, ErrConnectionClosed
	}
	if err := ctx.Err(); err != nil {
		return stats, err
	}
	if err := stream.SendText(ctx, DoneMessage); err != nil {
		return stats, err
	}
	return stats, nil
}

func (p *Pipeline) listingWorker(ctx context.Context, id int, run Run, pages *Queue[int], refs *Queue[queuedRef], stream Stream, c *counters) {
	for {
		if !live(ctx, stream) {
			p.log.DebugObj("listing worker stopping", "worker", map[string]any{"run_id": run.ID, "worker": id})
			return
		}
		page, ok := pages.Pop(ctx)
		if !ok {
			return
		}

		err := p.guard(run, domain.StageListing, func() error {
			return p.processListing(ctx, run, page, refs, c)
		})
		if err == nil {
			continue
		}
		if errors.Is(err, ErrConnectionClosed) || ctx.Err() != nil {
			return
		}
		if p.reportItemError(ctx, run, stream, c, domain.NewItemError(domain.StageListing, page, domain.ArticleRef{URL: p.source.ListingURL(run.Board, page)}, err)) {
			return
		}
	}
}

func (p *Pipeline) processListing(ctx context.Context, run Run, page int, refs *Queue[queuedRef], c *counters) error {
	body, err := p.fetcher.Fetch(ctx, p.source.ListingURL(run.Board, page), p.cfg.FetchTimeout)
	if err != nil {
		return err
	}
	found, err := p.source.ExtractListing(body)
	if err != nil {
		return &ExtractError{What: fmt.Sprintf("listing page %d", page), Err: err}
	}
	c.pages.Add(1)

	for _, ref := range found {
		if ref.Deleted() {
			continue
		}
		if err := refs.Push(queuedRef{Page: page, Ref: ref}); err != nil {
			return err
		}
		c.refs.Add(1)
	}
	return nil
}

func (p *Pipeline) articleWorker(ctx context.Context, id int, run Run, refs *Queue[queuedRef], stream Stream, c *counters) {
	for {
		if !live(ctx, stream) {
			p.log.DebugObj("article worker stopping", "worker", map[string]any{"run_id": run.ID, "worker": id})
			return
		}
		item, ok := refs.Pop(ctx)
		if !ok {
			return
		}

		err := p.guard(run, domain.StageArticle, func() error {
			return p.processArticle(ctx, run, item, stream, c)
		})
		if err == nil {
			continue
		}
		if errors.Is(err, ErrConnectionClosed) || ctx.Err() != nil {
			p.log.DebugObj("article worker connection closed", "worker", map[string]any{"run_id": run.ID, "worker": id})
			return
		}
		if p.reportItemError(ctx, run, stream, c, domain.NewItemError(domain.StageArticle, item.Page, item.Ref, err)) {
			return
		}
	}
}

func (p *Pipeline) processArticle(ctx context.Context, run Run, item queuedRef, stream Stream, c *counters) error {
	body, err := p.fetcher.Fetch(ctx, item.Ref.URL, p.cfg.FetchTimeout)
	if err != nil {
		return err
	}
	rec, err := p.source.ExtractArticle(body, item.Ref, run.Board)
	if err != nil {
		return &ExtractError{What: "article " + item.Ref.ID, Err: err}
	}

	out, ok, reason := run.Filter.Apply(rec)
	if !ok {
		c.rejected.Add(1)
		metrics.RecordRejected(reason)
		p.log.DebugObj("article filtered out", "article_rejected", map[string]any{
			"run_id":     run.ID,
			"article_id": item.Ref.ID,
			"reason":     reason,
		})
		return nil
	}

	if err := stream.SendJSON(ctx, out); err != nil {
		return err
	}
	c.emitted.Add(1)
	metrics.RecordEmitted()
	p.mirror(ctx, run, out)
	return nil
}

// mirror publishes a streamed record; failures never affect the stream.
func (p *Pipeline) mirror(ctx context.Context, run Run, rec domain.ArticleRecord) {
	if p.publisher == nil {
		return
	}
	if _, err := p.publisher.Publish(ctx, publishers.NewEvent(run.ID, run.ChannelID, run.Filter.Keyword, rec)); err != nil {
		p.log.WarnObj("mirror publish failed", "publish_error", map[string]any{
			"run_id":     run.ID,
			"article_id": rec.ArticleID,
			"error":      err.Error(),
		})
	}
}

// reportItemError logs and counts a skipped item and optionally streams it.
// It returns true when the stream is gone and the worker should stop.
func (p *Pipeline) reportItemError(ctx context.Context, run Run, stream Stream, c *counters, ie domain.ItemError) bool {
	c.failed.Add(1)
	metrics.RecordItemFailure(ie.Stage)
	p.log.WarnObj("crawl item skipped", "item_error", map[string]any{
		"run_id":     run.ID,
		"board":      run.Board,
		"stage":      ie.Stage,
		"page":       ie.Page,
		"article_id": ie.ArticleID,
		"url":        ie.URL,
		"error":      ie.Error,
	})

	if !p.cfg.EmitItemErrors {
		return false
	}
	return errors.Is(stream.SendJSON(ctx, ie), ErrConnectionClosed)
}

// guard runs one worker iteration and turns a panic into an error.
func (p *Pipeline) guard(run Run, stage string, fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			p.log.ErrorObj("crawl worker panic recovered", "panic", map[string]any{
				"run_id": run.ID,
				"stage":  stage,
				"panic":  fmt.Sprint(r),
				"stack":  string(debug.Stack()),
			})
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return fn()
}

func live(ctx context.Context, stream Stream) bool {
	return ctx.Err() == nil && streamOpen(stream)
}

func streamOpen(stream Stream) bool {
	select {
	case <-stream.Done():
		return false
	default:
		return true
	}
}
