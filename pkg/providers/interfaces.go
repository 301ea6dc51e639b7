package providers

import (
	"github.com/samvad-hq/samvad-board-crawler/internal/domain"
	"github.com/samvad-hq/samvad-board-crawler/pkg/httpclient"
)

// Source knows the URL layout and HTML shape of one forum.
// Implementations are pure: they never perform I/O themselves.
type Source interface {
	ID() string
	// Headers returns the request headers (including cookies) for every fetch.
	Headers() map[string]string
	// IndexURL is the newest listing page of a board.
	IndexURL(board string) string
	// ListingURL is the numbered listing page of a board.
	ListingURL(board string, page int) string
	// LastPage reads the newest page number from the body of IndexURL.
	LastPage(body []byte, board string) (int, error)
	// ExtractListing returns the article references on a listing page in page order.
	ExtractListing(body []byte) ([]domain.ArticleRef, error)
	// ExtractArticle parses one article page.
	ExtractArticle(body []byte, ref domain.ArticleRef, board string) (domain.ArticleRecord, error)
}

// SourceRegistry resolves the Source for a client request type.
type SourceRegistry interface {
	SourceFor(typ string) (Source, error)
}

// HTTPClient aliases the shared httpclient.Client interface for clarity within providers.
type HTTPClient = httpclient.Client
