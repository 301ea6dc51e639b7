package crawler

import (
	"encoding/json"
	"regexp"
	"strings"
	"time"

	"github.com/samvad-hq/samvad-board-crawler/internal/domain"
	"github.com/samvad-hq/samvad-board-crawler/pkg/providers"
)

var boardNameRe = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)

// Job is a validated crawl request bound to its source.
type Job struct {
	Request domain.CrawlRequest
	Source  providers.Source
	Window  domain.DateWindow
	Filter  Filter
}

// DecodeRequest parses a raw client message.
func DecodeRequest(raw []byte) (domain.CrawlRequest, error) {
	var req domain.CrawlRequest
	if err := json.Unmarshal(raw, &req); err != nil {
		return domain.CrawlRequest{}, invalidRequest("malformed json: %v", err)
	}
	return req, nil
}

// NewJob validates req and resolves its source.
func NewJob(req domain.CrawlRequest, sources providers.SourceRegistry) (Job, error) {
	req.Type = strings.TrimSpace(req.Type)
	req.Board = strings.TrimSpace(req.Board)

	if req.Type == "" {
		return Job{}, invalidRequest("type is required")
	}
	if sources == nil {
		return Job{}, invalidRequest("no sources configured")
	}
	src, err := sources.SourceFor(req.Type)
	if err != nil {
		return Job{}, invalidRequest("unknown type %q", req.Type)
	}
	if !boardNameRe.MatchString(req.Board) {
		return Job{}, invalidRequest("board %q is not a valid board name", req.Board)
	}

	start, err := parseRequestDate("start_date", req.StartDate)
	if err != nil {
		return Job{}, err
	}
	end, err := parseRequestDate("end_date", req.EndDate)
	if err != nil {
		return Job{}, err
	}
	if start.After(end) {
		return Job{}, invalidRequest("start_date %s is after end_date %s", req.StartDate, req.EndDate)
	}

	return Job{
		Request: req,
		Source:  src,
		Window:  domain.DateWindow{Start: start, End: end},
		Filter:  Filter{Keyword: req.Keyword, EndDate: end},
	}, nil
}

// parseRequestDate reads a YYYYMMDD date as a calendar day in the board's zone.
func parseRequestDate(field, raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if len(raw) != len(domain.DateLayout) {
		return time.Time{}, invalidRequest("%s must be YYYYMMDD, got %q", field, raw)
	}
	t, err := time.ParseInLocation(domain.DateLayout, raw, providers.BoardZone)
	if err != nil {
		return time.Time{}, invalidRequest("%s must be YYYYMMDD, got %q", field, raw)
	}
	return t, nil
}

// dayOf truncates t to its calendar day in the board's zone.
func dayOf(t time.Time) time.Time {
	t = t.In(providers.BoardZone)
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, providers.BoardZone)
}
