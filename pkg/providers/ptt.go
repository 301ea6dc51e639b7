package providers

import (
	"bytes"
	"errors"
	"fmt"
	"net/url"
	"path"
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/samvad-hq/samvad-board-crawler/internal/domain"
)

// PTTSource understands the www.ptt.cc board layout.
type PTTSource struct {
	id      string
	base    *url.URL
	headers map[string]string
}

var (
	pageIndexRe = regexp.MustCompile(`index(\d+)\.html`)

	errNoMainContent = errors.New("main-content not found")
)

const prevPageLabel = "上頁"

// NewPTTSource builds a PTT source from a provider entry.
func NewPTTSource(p Provider) (*PTTSource, error) {
	raw := p.BaseURL
	if strings.TrimSpace(raw) == "" {
		raw = defaultPTTBaseURL
	}
	base, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("parse base_url: %w", err)
	}
	if base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("base_url %q must be absolute", raw)
	}

	headers := Headers(p)
	if _, ok := headers["Cookie"]; !ok {
		headers["Cookie"] = "over18=1"
	}
	return &PTTSource{id: p.ID, base: base, headers: headers}, nil
}

func (s *PTTSource) ID() string { return s.id }

// Headers returns a copy so callers cannot mutate the source.
func (s *PTTSource) Headers() map[string]string {
	out := make(map[string]string, len(s.headers))
	for k, v := range s.headers {
		out[k] = v
	}
	return out
}

func (s *PTTSource) IndexURL(board string) string {
	return s.resolve(path.Join("/bbs", board, "index.html"))
}

func (s *PTTSource) ListingURL(board string, page int) string {
	return s.resolve(path.Join("/bbs", board, fmt.Sprintf("index%d.html", page)))
}

func (s *PTTSource) resolve(ref string) string {
	u, err := url.Parse(ref)
	if err != nil {
		return s.base.String() + ref
	}
	return s.base.ResolveReference(u).String()
}

// LastPage is the previous-page link's index plus one; a board with no
// previous page has exactly one page.
func (s *PTTSource) LastPage(body []byte, board string) (int, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return 0, fmt.Errorf("parse html: %w", err)
	}

	last := 1
	doc.Find("div.btn-group-paging a").EachWithBreak(func(_ int, a *goquery.Selection) bool {
		if !strings.Contains(a.Text(), prevPageLabel) {
			return true
		}
		href, ok := a.Attr("href")
		if !ok {
			return false
		}
		m := pageIndexRe.FindStringSubmatch(href)
		if m == nil {
			return false
		}
		if n, convErr := strconv.Atoi(m[1]); convErr == nil {
			last = n + 1
		}
		return false
	})
	return last, nil
}

// ExtractListing returns entries in page order. Deleted entries carry no URL
// and entries after the list separator are flagged as pinned.
func (s *PTTSource) ExtractListing(body []byte) ([]domain.ArticleRef, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}

	var (
		refs    []domain.ArticleRef
		pastSep bool
	)
	doc.Find("div.r-list-sep, div.r-ent").Each(func(_ int, node *goquery.Selection) {
		if node.HasClass("r-list-sep") {
			pastSep = true
			return
		}

		ref := domain.ArticleRef{
			Mark:   strings.TrimSpace(node.Find("div.mark").First().Text()),
			Pinned: pastSep,
		}
		link := node.Find("div.title a").First()
		if link.Length() == 0 {
			ref.Title = strings.TrimSpace(node.Find("div.title").First().Text())
			refs = append(refs, ref)
			return
		}
		href, _ := link.Attr("href")
		ref.Title = strings.TrimSpace(link.Text())
		ref.URL = s.resolve(href)
		ref.ID = articleIDFromHref(href)
		refs = append(refs, ref)
	})
	return refs, nil
}

func articleIDFromHref(href string) string {
	return strings.TrimSuffix(path.Base(href), ".html")
}
