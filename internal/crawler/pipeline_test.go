package crawler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/samvad-hq/samvad-board-crawler/internal/domain"
	"github.com/samvad-hq/samvad-board-crawler/pkg/publishers"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingPublisher struct {
	mu     sync.Mutex
	events []publishers.Event
	err    error
}

func (p *recordingPublisher) Publish(_ context.Context, evt publishers.Event) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, evt)
	if p.err != nil {
		return 0, p.err
	}
	return 1, nil
}

func newTestPipeline(f Fetcher, workers int, emitErrors bool, pub EventPublisher) *Pipeline {
	return NewPipeline(fakeSource{}, f, PipelineConfig{
		ListingWorkers: workers,
		ArticleWorkers: workers,
		FetchTimeout:   time.Second,
		EmitItemErrors: emitErrors,
	}, pub, nil)
}

func TestPipelineExhaustsEveryArticle(t *testing.T) {
	const pages, perPage = 6, 7
	for _, workers := range []int{1, 3, 8} {
		t.Run(fmt.Sprintf("workers=%d", workers), func(t *testing.T) {
			board := uniformBoard("b", pages, perPage, func(page, i int) time.Time { return day(2021, 1, page) })
			fetcher := newFakeFetcher()
			board.install(fetcher)
			stream := newFakeStream()

			stats, err := newTestPipeline(fetcher, workers, true, nil).Run(context.Background(), Run{
				ID: "r", Board: "b", StartPage: 1, LastPage: pages,
			}, stream)
			require.NoError(t, err)

			records, itemErrs, texts, order := stream.snapshot()
			assert.Len(t, records, pages*perPage)
			assert.Empty(t, itemErrs)
			assert.Equal(t, []string{DoneMessage}, texts)
			assert.Equal(t, "text:"+DoneMessage, order[len(order)-1], "done must be the final message")

			seen := map[string]bool{}
			for _, r := range records {
				assert.False(t, seen[r.ArticleID], "article %s emitted twice", r.ArticleID)
				seen[r.ArticleID] = true
			}
			assert.Equal(t, Stats{Pages: pages, Refs: pages * perPage, Emitted: pages * perPage}, stats)
			for page := 1; page <= pages; page++ {
				assert.Equal(t, 1, fetcher.callCount(fakeSource{}.ListingURL("b", page)))
			}
		})
	}
}

func TestPipelineStartsAtStartPage(t *testing.T) {
	board := uniformBoard("b", 5, 2, func(page, i int) time.Time { return day(2021, 1, page) })
	fetcher := newFakeFetcher()
	board.install(fetcher)
	stream := newFakeStream()

	stats, err := newTestPipeline(fetcher, 2, true, nil).Run(context.Background(), Run{Board: "b", StartPage: 4, LastPage: 5}, stream)
	require.NoError(t, err)
	assert.EqualValues(t, 4, stats.Emitted)
	assert.Zero(t, fetcher.callCount(fakeSource{}.ListingURL("b", 3)))
}

func TestPipelinePartialFailures(t *testing.T) {
	const pages, perPage = 4, 5
	board := uniformBoard("b", pages, perPage, func(page, i int) time.Time { return day(2021, 1, 1) })
	fetcher := newFakeFetcher()
	board.install(fetcher)
	failed := []string{"M.1.0", "M.2.3", "M.4.4"}
	for _, id := range failed {
		fetcher.fail(articleURL("b", id), errors.New("connection reset"))
	}
	fetcher.set(articleURL("b", "M.3.1"), []byte("panic"))
	stream := newFakeStream()

	stats, err := newTestPipeline(fetcher, 3, true, nil).Run(context.Background(), Run{Board: "b", StartPage: 1, LastPage: pages}, stream)
	require.NoError(t, err)

	records, itemErrs, texts, _ := stream.snapshot()
	assert.Len(t, records, pages*perPage-len(failed)-1)
	assert.Len(t, itemErrs, len(failed)+1)
	assert.EqualValues(t, len(failed)+1, stats.Failed)
	assert.Equal(t, []string{DoneMessage}, texts)
	for _, ie := range itemErrs {
		assert.Equal(t, "error", ie.Type)
		assert.Equal(t, domain.StageArticle, ie.Stage)
		assert.NotEmpty(t, ie.Error)
	}
}

func TestPipelineListingFailureIsReported(t *testing.T) {
	board := uniformBoard("b", 3, 2, func(page, i int) time.Time { return day(2021, 1, 1) })
	fetcher := newFakeFetcher()
	board.install(fetcher)
	fetcher.fail(fakeSource{}.ListingURL("b", 2), errors.New("timeout"))
	stream := newFakeStream()

	stats, err := newTestPipeline(fetcher, 2, false, nil).Run(context.Background(), Run{Board: "b", StartPage: 1, LastPage: 3}, stream)
	require.NoError(t, err)

	records, itemErrs, texts, _ := stream.snapshot()
	assert.Len(t, records, 4)
	assert.Empty(t, itemErrs, "item errors are not streamed when disabled")
	assert.EqualValues(t, 1, stats.Failed)
	assert.EqualValues(t, 2, stats.Pages)
	assert.Equal(t, []string{DoneMessage}, texts)
}

func TestPipelineAppliesFilter(t *testing.T) {
	board := uniformBoard("b", 1, 5, func(page, i int) time.Time { return day(2021, 1, 8) })
	board.pages[1][2].content = "there is foo here"
	fetcher := newFakeFetcher()
	board.install(fetcher)
	stream := newFakeStream()
	pub := &recordingPublisher{err: errors.New("sink down")}

	stats, err := newTestPipeline(fetcher, 2, true, pub).Run(context.Background(), Run{
		ID:        "run-1",
		ChannelID: "chan",
		Board:     "b",
		Filter:    Filter{Keyword: "foo", EndDate: day(2021, 1, 8)},
		StartPage: 1,
		LastPage:  1,
	}, stream)
	require.NoError(t, err)

	records, _, texts, _ := stream.snapshot()
	require.Len(t, records, 1)
	assert.Equal(t, "there is foo here", records[0].Content)
	assert.EqualValues(t, 4, stats.Rejected)
	assert.Equal(t, []string{DoneMessage}, texts)

	require.Len(t, pub.events, 1, "publisher failures must not affect the stream")
	assert.Equal(t, "run-1", pub.events[0].RunID)
	assert.Equal(t, "chan", pub.events[0].ChannelID)
}

func TestPipelineStopsWhenStreamCloses(t *testing.T) {
	board := uniformBoard("b", 20, 10, func(page, i int) time.Time { return day(2021, 1, 1) })
	fetcher := newFakeFetcher()
	board.install(fetcher)
	stream := newFakeStream().closeAfter(5)

	stats, err := newTestPipeline(fetcher, 4, true, nil).Run(context.Background(), Run{Board: "b", StartPage: 1, LastPage: 20}, stream)
	require.ErrorIs(t, err, ErrConnectionClosed)

	records, _, texts, _ := stream.snapshot()
	assert.Len(t, records, 5)
	assert.Empty(t, texts, "done must not be sent to a closed stream")
	assert.Less(t, stats.Emitted, int64(200))
}

func TestPipelineStopsOnContextCancel(t *testing.T) {
	board := uniformBoard("b", 2, 2, func(page, i int) time.Time { return day(2021, 1, 1) })
	fetcher := newFakeFetcher()
	board.install(fetcher)
	gate := make(chan struct{})
	fetcher.block[fakeSource{}.ListingURL("b", 1)] = gate
	fetcher.block[fakeSource{}.ListingURL("b", 2)] = gate
	stream := newFakeStream()

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() {
		_, err := newTestPipeline(fetcher, 2, true, nil).Run(ctx, Run{Board: "b", StartPage: 1, LastPage: 2}, stream)
		errCh <- err
	}()

	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case err := <-errCh:
		require.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("pipeline did not stop after cancellation")
	}
	_, _, texts, _ := stream.snapshot()
	assert.Empty(t, texts)
}

func TestPipelineRejectsBadRange(t *testing.T) {
	_, err := newTestPipeline(newFakeFetcher(), 1, true, nil).Run(context.Background(), Run{StartPage: 3, LastPage: 2}, newFakeStream())
	require.Error(t, err)
}
