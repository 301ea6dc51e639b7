package publishers

import (
	"time"

	"github.com/samvad-hq/samvad-board-crawler/internal/domain"
)

// Event represents one streamed article mirrored downstream.
type Event struct {
	RunID       string               `json:"run_id"`
	ChannelID   string               `json:"channel_id,omitempty"`
	Board       string               `json:"board"`
	Keyword     string               `json:"key_word,omitempty"`
	Article     domain.ArticleRecord `json:"article"`
	CollectedAt time.Time            `json:"collected_at"`
}

// NewEvent constructs an Event for a record streamed by run runID.
func NewEvent(runID, channelID, keyword string, article domain.ArticleRecord) Event {
	return Event{
		RunID:       runID,
		ChannelID:   channelID,
		Board:       article.Board,
		Keyword:     keyword,
		Article:     article,
		CollectedAt: time.Now().UTC(),
	}
}
