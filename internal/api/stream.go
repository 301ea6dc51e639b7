package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"sync"
	"time"

	"github.com/gobwas/ws"
	"github.com/gobwas/ws/wsutil"
	"github.com/samvad-hq/samvad-board-crawler/internal/crawler"
)

// wsStream writes crawl output to one WebSocket connection. Writes are
// serialised; any write failure closes the stream.
type wsStream struct {
	conn         net.Conn
	writeTimeout time.Duration

	writeMu   sync.Mutex
	done      chan struct{}
	closeOnce sync.Once
}

func newWSStream(conn net.Conn, writeTimeout time.Duration) *wsStream {
	return &wsStream{conn: conn, writeTimeout: writeTimeout, done: make(chan struct{})}
}

func (s *wsStream) SendJSON(ctx context.Context, v any) error {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("encode message: %w", err)
	}
	return s.send(ctx, bytes.TrimRight(buf.Bytes(), "\n"))
}

func (s *wsStream) SendText(ctx context.Context, text string) error {
	return s.send(ctx, []byte(text))
}

func (s *wsStream) Done() <-chan struct{} { return s.done }

// Close sends a normal closure frame and closes the connection. Safe to call repeatedly.
func (s *wsStream) Close() error {
	var err error
	s.closeOnce.Do(func() {
		close(s.done)
		s.writeMu.Lock()
		s.setDeadline()
		_ = ws.WriteFrame(s.conn, ws.NewCloseFrame(ws.NewCloseFrameBody(ws.StatusNormalClosure, "")))
		s.writeMu.Unlock()
		err = s.conn.Close()
	})
	return err
}

func (s *wsStream) closed() bool {
	select {
	case <-s.done:
		return true
	default:
		return false
	}
}

func (s *wsStream) send(ctx context.Context, data []byte) error {
	if s.closed() {
		return crawler.ErrConnectionClosed
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := s.writeText(data); err != nil {
		_ = s.Close()
		return fmt.Errorf("%w: %v", crawler.ErrConnectionClosed, err)
	}
	return nil
}

func (s *wsStream) writeText(data []byte) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	if s.closed() {
		return crawler.ErrConnectionClosed
	}
	s.setDeadline()
	return wsutil.WriteServerMessage(s.conn, ws.OpText, data)
}

// setDeadline bounds the next write; must hold writeMu.
func (s *wsStream) setDeadline() {
	if s.writeTimeout > 0 {
		_ = s.conn.SetWriteDeadline(time.Now().Add(s.writeTimeout))
	}
}

// controlWriter lets the frame reader answer pings and closes under the write lock.
func (s *wsStream) controlWriter() io.Writer { return lockedWriter{s: s} }

type lockedWriter struct{ s *wsStream }

func (w lockedWriter) Write(p []byte) (int, error) {
	w.s.writeMu.Lock()
	defer w.s.writeMu.Unlock()
	w.s.setDeadline()
	return w.s.conn.Write(p)
}
