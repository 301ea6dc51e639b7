package crawler

import (
	"context"
	"fmt"
	"time"

	"github.com/samvad-hq/samvad-board-crawler/internal/domain"
	"github.com/samvad-hq/samvad-board-crawler/internal/logger"
	"github.com/samvad-hq/samvad-board-crawler/internal/metrics"
	"github.com/samvad-hq/samvad-board-crawler/pkg/providers"
)

// pinnedMark flags announcement entries on the newest listing page.
const pinnedMark = "M"

// Probe reads the publish window of a listing page from the dates of its
// first and last datable articles.
type Probe struct {
	source  providers.Source
	fetcher Fetcher
	timeout time.Duration
	cache   WindowCache
	log     logger.Logger
}

// NewProbe builds a probe; cache may be nil.
func NewProbe(source providers.Source, fetcher Fetcher, timeout time.Duration, cache WindowCache, log logger.Logger) *Probe {
	return &Probe{
		source:  source,
		fetcher: fetcher,
		timeout: timeout,
		cache:   cache,
		log:     logger.Ensure(log),
	}
}

// Probe returns the window of page. The newest page (page == lastPage) is
// never cached since it still receives posts.
func (p *Probe) Probe(ctx context.Context, board string, page, lastPage int) (domain.PageWindow, error) {
	cacheable := p.cache != nil && page != lastPage
	if cacheable {
		w, ok, err := p.cache.GetWindow(ctx, board, page)
		if err != nil {
			p.log.WarnObj("window cache read failed", "cache_error", map[string]any{
				"board": board,
				"page":  page,
				"error": err.Error(),
			})
		} else if ok {
			metrics.RecordLocatorProbe("cache")
			return w, nil
		}
	}

	w, err := p.probe(ctx, board, page, page == lastPage)
	if err != nil {
		metrics.RecordLocatorProbe("error")
		return domain.PageWindow{}, err
	}
	metrics.RecordLocatorProbe("ok")

	if cacheable {
		if err := p.cache.PutWindow(ctx, board, page, w); err != nil {
			p.log.WarnObj("window cache write failed", "cache_error", map[string]any{
				"board": board,
				"page":  page,
				"error": err.Error(),
			})
		}
	}
	return w, nil
}

func (p *Probe) probe(ctx context.Context, board string, page int, latest bool) (domain.PageWindow, error) {
	body, err := p.fetcher.Fetch(ctx, p.source.ListingURL(board, page), p.timeout)
	if err != nil {
		return domain.PageWindow{}, err
	}
	refs, err := p.source.ExtractListing(body)
	if err != nil {
		return domain.PageWindow{}, &ExtractError{What: fmt.Sprintf("listing page %d", page), Err: err}
	}
	refs = qualifyingRefs(refs, latest)

	front := -1
	var w domain.PageWindow
	for i := range refs {
		if err := ctx.Err(); err != nil {
			return domain.PageWindow{}, err
		}
		if t, ok := p.articleDate(ctx, board, refs[i]); ok {
			front = i
			w.First, w.Last = t, t
			break
		}
	}
	if front < 0 {
		return domain.PageWindow{}, &ExtractError{What: fmt.Sprintf("listing page %d", page), Err: ErrNoDatedArticles}
	}

	for i := len(refs) - 1; i > front; i-- {
		if err := ctx.Err(); err != nil {
			return domain.PageWindow{}, err
		}
		if t, ok := p.articleDate(ctx, board, refs[i]); ok {
			w.Last = t
			break
		}
	}
	return w, nil
}

// articleDate fetches ref and returns its publish time; failures are skipped.
func (p *Probe) articleDate(ctx context.Context, board string, ref domain.ArticleRef) (time.Time, bool) {
	body, err := p.fetcher.Fetch(ctx, ref.URL, p.timeout)
	if err != nil {
		p.log.DebugObj("probe article fetch failed", "probe_skip", map[string]any{
			"url":   ref.URL,
			"error": err.Error(),
		})
		return time.Time{}, false
	}
	rec, err := p.source.ExtractArticle(body, ref, board)
	if err != nil || rec.PublishedAt.IsZero() {
		p.log.DebugObj("probe article has no usable date", "probe_skip", map[string]any{
			"url":  ref.URL,
			"date": rec.Date,
		})
		return time.Time{}, false
	}
	return rec.PublishedAt, true
}

// qualifyingRefs drops deleted entries and, on the newest page, pinned ones.
func qualifyingRefs(refs []domain.ArticleRef, latest bool) []domain.ArticleRef {
	out := make([]domain.ArticleRef, 0, len(refs))
	for _, ref := range refs {
		if ref.Deleted() {
			continue
		}
		if latest && (ref.Pinned || ref.Mark == pinnedMark) {
			continue
		}
		out = append(out, ref)
	}
	return out
}
