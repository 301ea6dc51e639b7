package crawler

import (
	"context"
	"fmt"
	"time"

	"github.com/samvad-hq/samvad-board-crawler/internal/logger"
)

// Locator finds the listing page where a crawl should start.
type Locator struct {
	prober    WindowProber
	earlyExit bool
	log       logger.Logger
}

// NewLocator builds a locator. With earlyExit the first page whose window
// covers the target wins; otherwise the search keeps going left to the
// earliest such page.
func NewLocator(prober WindowProber, earlyExit bool, log logger.Logger) *Locator {
	return &Locator{prober: prober, earlyExit: earlyExit, log: logger.Ensure(log)}
}

// Locate binary searches [1, lastPage] for target's calendar day. When no
// page covers the day it returns the first page published after it,
// clamped to [1, lastPage]. A failed probe steers the search left.
func (l *Locator) Locate(ctx context.Context, board string, lastPage int, target time.Time) (int, error) {
	if lastPage <= 0 {
		return 0, fmt.Errorf("locate %s: invalid last page %d", board, lastPage)
	}
	if lastPage == 1 {
		return 1, nil
	}

	day := dayOf(target)
	lo, hi, hit := 1, lastPage, 0
	for lo <= hi {
		if err := ctx.Err(); err != nil {
			return 0, err
		}
		mid := lo + (hi-lo)/2

		w, err := l.prober.Probe(ctx, board, mid, lastPage)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return 0, ctxErr
			}
			l.log.WarnObj("locator probe failed", "locator_probe", map[string]any{
				"board": board,
				"page":  mid,
				"error": err.Error(),
			})
			hi = mid - 1
			continue
		}

		first, last := dayOf(w.First), dayOf(w.Last)
		l.log.DebugObj("locator probe", "locator_probe", map[string]any{
			"board": board,
			"page":  mid,
			"first": first.Format("2006-01-02"),
			"last":  last.Format("2006-01-02"),
		})

		switch {
		case !day.Before(first) && !day.After(last):
			if l.earlyExit {
				return mid, nil
			}
			hit = mid
			hi = mid - 1
		case first.Before(day):
			lo = mid + 1
		default:
			hi = mid - 1
		}
	}

	if hit > 0 {
		return hit, nil
	}
	return clampPage(lo, lastPage), nil
}

func clampPage(p, lastPage int) int {
	if p < 1 {
		return 1
	}
	if p > lastPage {
		return lastPage
	}
	return p
}
