package crawler

import (
	"strconv"
	"strings"
	"time"

	"github.com/samvad-hq/samvad-board-crawler/internal/domain"
)

// Rejection reasons reported by Filter.Apply.
const (
	RejectAfterEndDate = "published after end date"
	RejectNoDate       = "publish date missing"
	RejectNoKeyword    = "keyword not found"
)

// Filter narrows article records to a keyword and an end date.
// The date bound only applies when a keyword is set.
type Filter struct {
	Keyword string
	EndDate time.Time
}

// Matches reports whether rec passes the keyword/end-date filter.
func Matches(rec domain.ArticleRecord, keyword string, endDate time.Time) bool {
	_, ok, _ := Filter{Keyword: keyword, EndDate: endDate}.Apply(rec)
	return ok
}

// Apply returns the narrowed copy of rec, whether it passed, and the
// rejection reason otherwise. rec itself is never modified.
func (f Filter) Apply(rec domain.ArticleRecord) (domain.ArticleRecord, bool, string) {
	out := rec.Clone()
	if f.Keyword == "" {
		return out, true, ""
	}

	if out.PublishedAt.IsZero() {
		return domain.ArticleRecord{}, false, RejectNoDate
	}
	if dayOf(out.PublishedAt).After(dayOf(f.EndDate)) {
		return domain.ArticleRecord{}, false, RejectAfterEndDate
	}
	if !strings.Contains(recordText(out), f.Keyword) {
		return domain.ArticleRecord{}, false, RejectNoKeyword
	}

	kept := make([]domain.Message, 0, len(out.Messages))
	for _, m := range out.Messages {
		if strings.Contains(messageText(m), f.Keyword) {
			kept = append(kept, m)
		}
	}
	out.Messages = kept
	if !strings.Contains(out.Content, f.Keyword) {
		out.Content = ""
	}
	return out, true, ""
}

// fieldSep joins searchable fields so a keyword cannot match across two of them.
const fieldSep = "\x00"

// recordText is the raw text of every field of rec as streamed, without
// JSON escaping, so keywords holding quotes or control characters still match.
func recordText(rec domain.ArticleRecord) string {
	c := rec.MessageCount
	parts := []string{
		rec.URL, rec.Board, rec.ArticleID, rec.Title, rec.Author, rec.Date,
		rec.Content, rec.IP,
		strconv.Itoa(c.Total), strconv.Itoa(c.Net), strconv.Itoa(c.Positive),
		strconv.Itoa(c.Negative), strconv.Itoa(c.Neutral),
	}
	for _, m := range rec.Messages {
		parts = append(parts, messageText(m))
	}
	return strings.Join(parts, fieldSep)
}

func messageText(m domain.Message) string {
	return strings.Join([]string{m.Tag, m.UserID, m.Content, m.IPDateTime}, fieldSep)
}
