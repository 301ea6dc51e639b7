package crawler

import (
	"reflect"
	"testing"
	"time"

	"github.com/samvad-hq/samvad-board-crawler/internal/domain"
)

func sampleRecord() domain.ArticleRecord {
	return domain.ArticleRecord{
		URL:         "https://www.ptt.cc/bbs/b/M.1.A.1.html",
		Board:       "b",
		ArticleID:   "M.1.A.1",
		Title:       "[問卦] hello",
		Author:      "alice",
		Date:        "Fri Jan  8 10:00:00 2021",
		PublishedAt: day(2021, time.January, 8),
		Content:     "nothing special here",
		IP:          "1.2.3.4",
		Messages: []domain.Message{
			{Tag: "推", UserID: "bob", Content: "foo is great"},
			{Tag: "→", UserID: "carol", Content: "meh"},
			{Tag: "噓", UserID: "foo_fan", Content: "no"},
		},
	}
}

func TestFilterCases(t *testing.T) {
	end := day(2021, time.January, 8)

	cases := []struct {
		name         string
		keyword      string
		mutate       func(*domain.ArticleRecord)
		wantOK       bool
		wantReason   string
		wantMessages int
		wantContent  string
	}{
		{name: "empty keyword passes unchanged", wantOK: true, wantMessages: 3, wantContent: "nothing special here"},
		{name: "keyword absent", keyword: "zzz", wantReason: RejectNoKeyword},
		{name: "keyword only in messages", keyword: "foo", wantOK: true, wantMessages: 2, wantContent: ""},
		{
			name:    "keyword in content keeps content",
			keyword: "special",
			wantOK:  true, wantMessages: 0, wantContent: "nothing special here",
		},
		{
			name:    "published after end date",
			keyword: "foo",
			mutate: func(r *domain.ArticleRecord) {
				r.PublishedAt = day(2021, time.January, 9)
			},
			wantReason: RejectAfterEndDate,
		},
		{
			name:    "same calendar day as end date passes",
			keyword: "foo",
			mutate: func(r *domain.ArticleRecord) {
				r.PublishedAt = time.Date(2021, time.January, 8, 23, 59, 0, 0, end.Location())
			},
			wantOK: true, wantMessages: 2,
		},
		{
			name:    "unparseable date rejected",
			keyword: "foo",
			mutate: func(r *domain.ArticleRecord) {
				r.PublishedAt = time.Time{}
			},
			wantReason: RejectNoDate,
		},
		{
			name:    "late date ignored without keyword",
			keyword: "",
			mutate: func(r *domain.ArticleRecord) {
				r.PublishedAt = day(2022, time.January, 1)
			},
			wantOK: true, wantMessages: 3, wantContent: "nothing special here",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := sampleRecord()
			if tc.mutate != nil {
				tc.mutate(&rec)
			}
			out, ok, reason := Filter{Keyword: tc.keyword, EndDate: end}.Apply(rec)
			if ok != tc.wantOK {
				t.Fatalf("ok = %v, want %v (reason %q)", ok, tc.wantOK, reason)
			}
			if !ok {
				if reason != tc.wantReason {
					t.Fatalf("reason = %q, want %q", reason, tc.wantReason)
				}
				return
			}
			if len(out.Messages) != tc.wantMessages {
				t.Fatalf("kept %d messages, want %d", len(out.Messages), tc.wantMessages)
			}
			if tc.wantContent != "" || tc.keyword != "" {
				if out.Content != tc.wantContent {
					t.Fatalf("content = %q, want %q", out.Content, tc.wantContent)
				}
			}
			if Matches(rec, tc.keyword, end) != ok {
				t.Fatalf("Matches disagrees with Apply")
			}
		})
	}
}

func TestFilterDoesNotMutateInputAndIsIdempotent(t *testing.T) {
	rec := sampleRecord()
	orig := sampleRecord()
	f := Filter{Keyword: "foo", EndDate: day(2021, time.January, 31)}

	first, ok1, _ := f.Apply(rec)
	second, ok2, _ := f.Apply(rec)

	if !reflect.DeepEqual(rec, orig) {
		t.Fatalf("Apply modified its input")
	}
	if ok1 != ok2 || !reflect.DeepEqual(first, second) {
		t.Fatalf("Apply is not idempotent: %+v vs %+v", first, second)
	}

	again, ok3, _ := f.Apply(first)
	if !ok3 || !reflect.DeepEqual(again.Messages, first.Messages) {
		t.Fatalf("re-applying to the narrowed record changed it")
	}
}

func TestFilterMatchesUnescapedText(t *testing.T) {
	rec := sampleRecord()
	rec.Content = "<b>推文</b> & more"
	out, ok, _ := Filter{Keyword: "<b>推文", EndDate: day(2021, 12, 31)}.Apply(rec)
	if !ok || out.Content != rec.Content {
		t.Fatalf("expected keyword with HTML characters to match, ok=%v content=%q", ok, out.Content)
	}
}

func TestFilterMatchesCharactersJSONWouldEscape(t *testing.T) {
	end := day(2021, 12, 31)

	cases := []struct {
		name    string
		keyword string
		content string
		push    string
	}{
		{name: "double quotes", keyword: `"foo"`, content: `he said "foo" loudly`, push: `: "foo" again`},
		{name: "backslash", keyword: `C:\ptt`, content: `saved to C:\ptt\logs`, push: `C:\ptt too`},
		{name: "tab", keyword: "a\tb", content: "col a\tb", push: "x a\tb"},
		{name: "line separator", keyword: "end\u2028start", content: "end\u2028start", push: "end\u2028start"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := sampleRecord()
			rec.Content = tc.content
			rec.Messages = append(rec.Messages, domain.Message{Tag: "推", UserID: "dan", Content: tc.push})

			out, ok, reason := Filter{Keyword: tc.keyword, EndDate: end}.Apply(rec)
			if !ok {
				t.Fatalf("expected match, rejected with %q", reason)
			}
			if out.Content != tc.content {
				t.Fatalf("content = %q, want %q", out.Content, tc.content)
			}
			if len(out.Messages) != 1 || out.Messages[0].Content != tc.push {
				t.Fatalf("expected only the matching push, got %+v", out.Messages)
			}
		})
	}
}

func TestFilterKeywordDoesNotSpanFields(t *testing.T) {
	rec := sampleRecord()
	rec.Content = "ends with 1."
	rec.IP = "2.3.4"
	rec.Messages = nil

	if _, ok, reason := (Filter{Keyword: "1.2.3.4", EndDate: day(2021, 12, 31)}).Apply(rec); ok || reason != RejectNoKeyword {
		t.Fatalf("keyword must not match across content and ip, ok=%v reason=%q", ok, reason)
	}
}
