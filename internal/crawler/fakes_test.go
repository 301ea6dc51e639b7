package crawler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/samvad-hq/samvad-board-crawler/internal/domain"
	"github.com/samvad-hq/samvad-board-crawler/pkg/providers"
)

// fakeSource serves a synthetic board whose pages are JSON documents.
type fakeSource struct{}

func (fakeSource) ID() string                 { return "fake" }
func (fakeSource) Headers() map[string]string { return map[string]string{"Cookie": "over18=1"} }
func (fakeSource) IndexURL(board string) string {
	return "fake://" + board + "/index"
}
func (fakeSource) ListingURL(board string, page int) string {
	return fmt.Sprintf("fake://%s/page/%d", board, page)
}
func (fakeSource) LastPage(body []byte, _ string) (int, error) {
	return strconv.Atoi(string(body))
}
func (fakeSource) ExtractListing(body []byte) ([]domain.ArticleRef, error) {
	var refs []domain.ArticleRef
	if err := json.Unmarshal(body, &refs); err != nil {
		return nil, err
	}
	return refs, nil
}
func (fakeSource) ExtractArticle(body []byte, ref domain.ArticleRef, board string) (domain.ArticleRecord, error) {
	if string(body) == "panic" {
		panic("broken article page")
	}
	var rec domain.ArticleRecord
	if err := json.Unmarshal(body, &rec); err != nil {
		return domain.ArticleRecord{}, err
	}
	rec.URL = ref.URL
	rec.ArticleID = ref.ID
	rec.Board = board
	if t, err := providers.ParseArticleDate(rec.Date); err == nil {
		rec.PublishedAt = t
	}
	return rec, nil
}

type fakeSources struct{ src providers.Source }

func (f fakeSources) SourceFor(typ string) (providers.Source, error) {
	if typ != "PTT" && typ != "fake" {
		return nil, errors.New("unknown type")
	}
	return f.src, nil
}

// fakeFetcher maps URLs to bodies or errors and counts calls.
type fakeFetcher struct {
	mu     sync.Mutex
	bodies map[string][]byte
	errs   map[string]error
	calls  map[string]int
	block  map[string]chan struct{}
}

func newFakeFetcher() *fakeFetcher {
	return &fakeFetcher{
		bodies: map[string][]byte{},
		errs:   map[string]error{},
		calls:  map[string]int{},
		block:  map[string]chan struct{}{},
	}
}

func (f *fakeFetcher) Fetch(ctx context.Context, url string, _ time.Duration) ([]byte, error) {
	f.mu.Lock()
	f.calls[url]++
	body, ok := f.bodies[url]
	err := f.errs[url]
	gate := f.block[url]
	f.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, &FetchError{URL: url, Err: ctx.Err()}
		}
	}
	if err != nil {
		return nil, &FetchError{URL: url, Err: err}
	}
	if !ok {
		return nil, &FetchError{URL: url, Status: 404}
	}
	return body, nil
}

func (f *fakeFetcher) set(url string, body []byte) {
	f.mu.Lock()
	f.bodies[url] = body
	f.mu.Unlock()
}

func (f *fakeFetcher) fail(url string, err error) {
	f.mu.Lock()
	f.errs[url] = err
	f.mu.Unlock()
}

func (f *fakeFetcher) callCount(url string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[url]
}

// articleStub describes one synthetic article.
type articleStub struct {
	ref     domain.ArticleRef
	date    time.Time
	content string
	msgs    []domain.Message
}

// fakeBoard builds page and article bodies for a synthetic board.
type fakeBoard struct {
	name  string
	pages map[int][]articleStub
}

func articleURL(board, id string) string { return "fake://" + board + "/article/" + id }

// uniformBoard has lastPage pages of perPage articles; dateOf picks each article's date.
func uniformBoard(name string, lastPage, perPage int, dateOf func(page, i int) time.Time) *fakeBoard {
	b := &fakeBoard{name: name, pages: map[int][]articleStub{}}
	for page := 1; page <= lastPage; page++ {
		for i := 0; i < perPage; i++ {
			id := fmt.Sprintf("M.%d.%d", page, i)
			b.pages[page] = append(b.pages[page], articleStub{
				ref:     domain.ArticleRef{ID: id, URL: articleURL(name, id), Title: id},
				date:    dateOf(page, i),
				content: "content of " + id,
			})
		}
	}
	return b
}

func (b *fakeBoard) install(f *fakeFetcher) {
	src := fakeSource{}
	f.set(src.IndexURL(b.name), []byte(strconv.Itoa(len(b.pages))))
	for page, arts := range b.pages {
		refs := make([]domain.ArticleRef, 0, len(arts))
		for _, a := range arts {
			refs = append(refs, a.ref)
			if a.ref.Deleted() {
				continue
			}
			body, _ := json.Marshal(domain.ArticleRecord{
				Title:    a.ref.Title,
				Author:   "author",
				Date:     a.date.In(providers.BoardZone).Format("Mon Jan _2 15:04:05 2006"),
				Content:  a.content,
				IP:       "None",
				Messages: a.msgs,
			})
			f.set(a.ref.URL, body)
		}
		body, _ := json.Marshal(refs)
		f.set(src.ListingURL(b.name, page), body)
	}
}

// fakeStream records everything written to it.
type fakeStream struct {
	mu        sync.Mutex
	records   []domain.ArticleRecord
	itemErrs  []domain.ItemError
	texts     []string
	order     []string
	done      chan struct{}
	closed    bool
	closeAt   int
	sendCount int
}

func newFakeStream() *fakeStream { return &fakeStream{done: make(chan struct{})} }

// closeAfter makes the stream close itself after n successful JSON writes.
func (s *fakeStream) closeAfter(n int) *fakeStream {
	s.closeAt = n
	return s
}

func (s *fakeStream) SendJSON(_ context.Context, v any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrConnectionClosed
	}
	switch m := v.(type) {
	case domain.ArticleRecord:
		s.records = append(s.records, m)
		s.order = append(s.order, "record")
	case domain.ItemError:
		s.itemErrs = append(s.itemErrs, m)
		s.order = append(s.order, "error")
	default:
		return fmt.Errorf("unexpected message %T", v)
	}
	s.sendCount++
	if s.closeAt > 0 && s.sendCount >= s.closeAt {
		s.closeLocked()
	}
	return nil
}

func (s *fakeStream) SendText(_ context.Context, text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrConnectionClosed
	}
	s.texts = append(s.texts, text)
	s.order = append(s.order, "text:"+text)
	return nil
}

func (s *fakeStream) Done() <-chan struct{} { return s.done }

func (s *fakeStream) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closeLocked()
}

func (s *fakeStream) closeLocked() {
	if !s.closed {
		s.closed = true
		close(s.done)
	}
}

func (s *fakeStream) snapshot() ([]domain.ArticleRecord, []domain.ItemError, []string, []string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]domain.ArticleRecord(nil), s.records...),
		append([]domain.ItemError(nil), s.itemErrs...),
		append([]string(nil), s.texts...),
		append([]string(nil), s.order...)
}

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 12, 0, 0, 0, providers.BoardZone)
}
