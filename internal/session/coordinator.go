package session

import (
	"context"
	"fmt"

	"github.com/samvad-hq/samvad-board-crawler/internal/crawler"
	"github.com/samvad-hq/samvad-board-crawler/internal/logger"
	"github.com/samvad-hq/samvad-board-crawler/internal/metrics"
)

// Coordinator opens, cancels and tracks sessions.
type Coordinator struct {
	base     context.Context
	registry *Registry
	log      logger.Logger
}

// NewCoordinator builds a coordinator whose sessions derive from base.
func NewCoordinator(base context.Context, registry *Registry, log logger.Logger) *Coordinator {
	if base == nil {
		base = context.Background()
	}
	if registry == nil {
		registry = NewRegistry()
	}
	return &Coordinator{base: base, registry: registry, log: logger.Ensure(log)}
}

// Registry exposes the underlying registry.
func (c *Coordinator) Registry() *Registry { return c.registry }

// Open registers stream under channelID. A session already open on the
// same id is cancelled and its stream closed.
func (c *Coordinator) Open(channelID string, stream Conn) *Session {
	sess := newSession(c.base, channelID, stream)
	metrics.IncActiveSessions()

	if prev := c.registry.swap(sess); prev != nil {
		c.log.InfoObj("session superseded", "session", map[string]any{"channel_id": channelID})
		if err := prev.shutdown(); err != nil {
			c.log.DebugObj("close superseded stream failed", "session", map[string]any{
				"channel_id": channelID,
				"error":      err.Error(),
			})
		}
	}
	c.log.InfoObj("client connected", "session", map[string]any{"channel_id": channelID})
	return sess
}

// Close deregisters sess if it is still current and cancels its runs.
func (c *Coordinator) Close(sess *Session) {
	if sess == nil {
		return
	}
	c.registry.remove(sess)
	sess.cancel()
	metrics.DecActiveSessions()
	c.log.InfoObj("client connection closed", "session", map[string]any{"channel_id": sess.ChannelID})
}

// Cancel closes the stream of channelID and reports the outcome as the
// plain-text status returned to callers.
func (c *Coordinator) Cancel(channelID string) (string, bool) {
	sess, ok := c.registry.take(channelID)
	if !ok {
		c.log.WarnObj("cancel failed", "session", map[string]any{
			"channel_id": channelID,
			"error":      crawler.ErrSessionNotFound.Error(),
		})
		return fmt.Sprintf("id: %s, websocket cancel failed", channelID), false
	}
	if err := sess.shutdown(); err != nil {
		c.log.WarnObj("cancel close failed", "session", map[string]any{
			"channel_id": channelID,
			"error":      err.Error(),
		})
	}
	c.log.InfoObj("session cancelled", "session", map[string]any{"channel_id": channelID})
	return fmt.Sprintf("id: %s, websocket canceled", channelID), true
}

// Start runs fn on its own goroutine, tracked by sess. A panic in fn is
// logged and swallowed.
func (c *Coordinator) Start(sess *Session, fn func(ctx context.Context)) {
	sess.runs.Add(1)
	sess.active.Add(1)
	go func() {
		defer sess.runs.Done()
		defer sess.active.Add(-1)
		defer func() {
			if r := recover(); r != nil {
				c.log.ErrorObj("session run panic recovered", "session", map[string]any{
					"channel_id": sess.ChannelID,
					"panic":      fmt.Sprint(r),
				})
			}
		}()
		fn(sess.ctx)
	}()
}

// CloseAll cancels and closes every open session.
func (c *Coordinator) CloseAll() {
	for _, sess := range c.registry.drain() {
		if err := sess.shutdown(); err != nil {
			c.log.DebugObj("close stream on shutdown failed", "session", map[string]any{
				"channel_id": sess.ChannelID,
				"error":      err.Error(),
			})
		}
	}
}
