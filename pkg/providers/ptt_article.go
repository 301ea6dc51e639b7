package providers

import (
	"bytes"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/samvad-hq/samvad-board-crawler/internal/domain"
	"golang.org/x/net/html"
)

// ArticleDateLayout is the layout of the article header date once runs of
// spaces are collapsed, e.g. "Fri Jan 8 12:34:56 2021".
const ArticleDateLayout = "Mon Jan 2 15:04:05 2006"

// BoardZone is the fixed offset the forum prints its dates in.
var BoardZone = time.FixedZone("CST", 8*60*60)

const (
	tagPositive = "推"
	tagNegative = "噓"

	signatureMark = "※ 發信站:"
	noIP          = "None"
)

var (
	ipv4Re       = regexp.MustCompile(`\d+\.\d+\.\d+\.\d+`)
	whitespaceRe = regexp.MustCompile(`\s+`)
	// Keeps CJK ideographs and CJK punctuation, letters, digits, whitespace
	// and the URL-ish symbols; everything else is stripped from content.
	disallowedRe = regexp.MustCompile(`[^\x{4e00}-\x{9fa5}\x{3002}\x{ff1b}\x{ff0c}\x{ff1a}\x{201c}\x{201d}\x{ff08}\x{ff09}\x{3001}\x{ff1f}\x{300a}\x{300b}\s\p{L}\p{N}_:/-_.?~%()]`)
)

// ParseArticleDate parses an article header date in BoardZone.
func ParseArticleDate(raw string) (time.Time, error) {
	norm := strings.Join(strings.Fields(raw), " ")
	if norm == "" {
		return time.Time{}, fmt.Errorf("empty article date")
	}
	t, err := time.ParseInLocation(ArticleDateLayout, norm, BoardZone)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse article date %q: %w", raw, err)
	}
	return t, nil
}

// ExtractArticle parses one article page into a record. A header date that
// cannot be parsed leaves PublishedAt zero.
func (s *PTTSource) ExtractArticle(body []byte, ref domain.ArticleRef, board string) (domain.ArticleRecord, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return domain.ArticleRecord{}, fmt.Errorf("parse html: %w", err)
	}
	main := doc.Find("#main-content").First()
	if main.Length() == 0 {
		return domain.ArticleRecord{}, errNoMainContent
	}

	rec := domain.ArticleRecord{
		URL:       ref.URL,
		Board:     board,
		ArticleID: ref.ID,
		Messages:  []domain.Message{},
	}

	metas := main.Find("div.article-metaline")
	rec.Author = metaValue(metas, 0)
	rec.Title = metaValue(metas, 1)
	rec.Date = metaValue(metas, 2)
	if t, err := ParseArticleDate(rec.Date); err == nil {
		rec.PublishedAt = t
	}
	metas.Remove()
	main.Find("div.article-metaline-right").Remove()

	pushes := main.Find("div.push")
	rec.Messages, rec.MessageCount = parsePushes(pushes)
	pushes.Remove()

	rec.IP = signatureIP(main)
	rec.Content = cleanContent(textNodes(main), ref.ID)
	return rec, nil
}

func metaValue(metas *goquery.Selection, i int) string {
	if i >= metas.Length() {
		return ""
	}
	return strings.TrimSpace(metas.Eq(i).Find("span.article-meta-value").First().Text())
}

func parsePushes(pushes *goquery.Selection) ([]domain.Message, domain.MessageCount) {
	messages := make([]domain.Message, 0, pushes.Length())
	var count domain.MessageCount

	pushes.Each(func(_ int, push *goquery.Selection) {
		tag := push.Find("span.push-tag").First()
		if tag.Length() == 0 {
			return
		}
		msg := domain.Message{
			Tag:        strings.TrimSpace(tag.Text()),
			UserID:     strings.TrimSpace(push.Find("span.push-userid").First().Text()),
			Content:    pushContent(push.Find("span.push-content").First()),
			IPDateTime: strings.TrimSpace(push.Find("span.push-ipdatetime").First().Text()),
		}
		messages = append(messages, msg)

		switch msg.Tag {
		case tagPositive:
			count.Positive++
		case tagNegative:
			count.Negative++
		default:
			count.Neutral++
		}
	})

	count.Total = count.Positive + count.Negative + count.Neutral
	count.Net = count.Positive - count.Negative
	return messages, count
}

// pushContent joins the text pieces of a push and drops the leading colon.
func pushContent(sel *goquery.Selection) string {
	if sel.Length() == 0 {
		return ""
	}
	var parts []string
	walkText(sel.Nodes, func(s string) { parts = append(parts, s) })
	joined := strings.Join(parts, " ")
	if r := []rune(joined); len(r) > 0 {
		joined = string(r[1:])
	}
	return strings.TrimSpace(joined)
}

func signatureIP(main *goquery.Selection) string {
	ip := noIP
	walkText(main.Nodes, func(s string) {
		if ip != noIP || !strings.Contains(s, signatureMark) {
			return
		}
		if m := ipv4Re.FindString(s); m != "" {
			ip = m
		}
	})
	return ip
}

func cleanContent(lines []string, articleID string) string {
	kept := make([]string, 0, len(lines))
	for _, line := range lines {
		if strings.HasPrefix(line, "※") || strings.HasPrefix(line, "◆") || strings.HasPrefix(line, "--") {
			continue
		}
		line = disallowedRe.ReplaceAllString(line, "")
		if line == "" {
			continue
		}
		if articleID != "" && strings.Contains(line, articleID) {
			continue
		}
		kept = append(kept, line)
	}
	return strings.TrimSpace(whitespaceRe.ReplaceAllString(strings.Join(kept, " "), " "))
}

// textNodes returns the trimmed, non-empty text nodes under sel in document order.
func textNodes(sel *goquery.Selection) []string {
	var out []string
	walkText(sel.Nodes, func(s string) {
		if trimmed := strings.TrimSpace(s); trimmed != "" {
			out = append(out, trimmed)
		}
	})
	return out
}

func walkText(nodes []*html.Node, fn func(string)) {
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			fn(n.Data)
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	for _, n := range nodes {
		walk(n)
	}
}
