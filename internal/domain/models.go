package domain

import "time"

// Domain contains core models shared by the crawler, providers and transport.

// DateLayout is the wire layout for request dates (YYYYMMDD).
const DateLayout = "20060102"

// ArticleRef points at a single article discovered on a listing page.
type ArticleRef struct {
	ID     string `json:"article_id"`
	URL    string `json:"url"`
	Title  string `json:"title"`
	Mark   string `json:"mark,omitempty"`
	Pinned bool   `json:"pinned,omitempty"`
}

// Deleted reports whether the listing entry no longer links to an article.
func (r ArticleRef) Deleted() bool { return r.URL == "" }

// MessageCount tallies the push/response reactions of an article.
type MessageCount struct {
	Total    int `json:"all"`
	Net      int `json:"count"`
	Positive int `json:"push"`
	Negative int `json:"boo"`
	Neutral  int `json:"neutral"`
}

// Message is a single push/response attached to an article.
type Message struct {
	Tag        string `json:"push_tag"`
	UserID     string `json:"push_userid"`
	Content    string `json:"push_content"`
	IPDateTime string `json:"push_ipdatetime"`
}

// ArticleRecord is the parsed form of an article page.
type ArticleRecord struct {
	URL          string       `json:"url"`
	Board        string       `json:"board"`
	ArticleID    string       `json:"article_id"`
	Title        string       `json:"article_title"`
	Author       string       `json:"author"`
	Date         string       `json:"date"`
	PublishedAt  time.Time    `json:"-"`
	Content      string       `json:"content"`
	IP           string       `json:"ip"`
	MessageCount MessageCount `json:"message_count"`
	Messages     []Message    `json:"messages"`
}

// Clone returns a copy that shares no mutable state with r.
func (r ArticleRecord) Clone() ArticleRecord {
	out := r
	if r.Messages != nil {
		out.Messages = append([]Message(nil), r.Messages...)
	}
	return out
}

// PageWindow is the publish-date span of the qualifying articles on one listing page.
type PageWindow struct {
	First time.Time `json:"first"`
	Last  time.Time `json:"last"`
}

// DateWindow is the inclusive calendar-day range a client asked for.
type DateWindow struct {
	Start time.Time
	End   time.Time
}

// CrawlRequest is the client message that starts a crawl.
type CrawlRequest struct {
	Type      string `json:"type"`
	Board     string `json:"board"`
	StartDate string `json:"start_date"`
	EndDate   string `json:"end_date"`
	Keyword   string `json:"key_word"`
}

// Item error stages.
const (
	StageListing = "listing"
	StageArticle = "article"
)

// ItemError reports a page or article that was skipped because it failed.
type ItemError struct {
	Type      string `json:"type"`
	Stage     string `json:"stage"`
	Page      int    `json:"page,omitempty"`
	ArticleID string `json:"article_id,omitempty"`
	URL       string `json:"url,omitempty"`
	Error     string `json:"error"`
}

// NewItemError builds an ItemError with the type tag set.
func NewItemError(stage string, page int, ref ArticleRef, err error) ItemError {
	ie := ItemError{
		Type:      "error",
		Stage:     stage,
		Page:      page,
		ArticleID: ref.ID,
		URL:       ref.URL,
	}
	if err != nil {
		ie.Error = err.Error()
	}
	return ie
}
