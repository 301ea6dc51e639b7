// Package session tracks the live streaming connection of each channel id.
package session

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/samvad-hq/samvad-board-crawler/internal/crawler"
)

// Conn is a client stream the coordinator can shut down.
type Conn interface {
	crawler.Stream
	Close() error
}

// Session is one open connection bound to a channel id.
type Session struct {
	ChannelID string
	Stream    Conn

	ctx    context.Context
	cancel context.CancelFunc
	runs   sync.WaitGroup
	active atomic.Int64
}

func newSession(parent context.Context, channelID string, stream Conn) *Session {
	ctx, cancel := context.WithCancel(parent)
	s := &Session{ChannelID: channelID, Stream: stream, ctx: ctx, cancel: cancel}
	go func() {
		select {
		case <-stream.Done():
			cancel()
		case <-ctx.Done():
		}
	}()
	return s
}

// Context is cancelled when the session is cancelled or its stream closes.
func (s *Session) Context() context.Context { return s.ctx }

// ActiveRuns reports how many crawls are running on the session.
func (s *Session) ActiveRuns() int64 { return s.active.Load() }

// Alive reports whether the session can still be written to.
func (s *Session) Alive() bool {
	select {
	case <-s.ctx.Done():
		return false
	case <-s.Stream.Done():
		return false
	default:
		return true
	}
}

// Wait blocks until every crawl started on the session has returned.
func (s *Session) Wait() { s.runs.Wait() }

// shutdown cancels the session and closes its stream.
func (s *Session) shutdown() error {
	s.cancel()
	return s.Stream.Close()
}
