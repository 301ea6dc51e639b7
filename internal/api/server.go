// Package api exposes the HTTP and WebSocket interface of the crawler.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gobwas/ws"
	"github.com/gobwas/ws/wsutil"
	"github.com/samvad-hq/samvad-board-crawler/internal/crawler"
	"github.com/samvad-hq/samvad-board-crawler/internal/domain"
	"github.com/samvad-hq/samvad-board-crawler/internal/logger"
	"github.com/samvad-hq/samvad-board-crawler/internal/metrics"
	"github.com/samvad-hq/samvad-board-crawler/internal/session"
)

// Crawler is the part of crawler.Service the transport needs.
type Crawler interface {
	Prepare(req domain.CrawlRequest) (crawler.Job, error)
	Run(ctx context.Context, job crawler.Job, channelID string, stream crawler.Stream) (crawler.Stats, error)
}

// Options tunes the server.
type Options struct {
	WriteTimeout   time.Duration
	RequestTimeout time.Duration
}

// Server wires HTTP handlers to the crawl service and session coordinator.
type Server struct {
	router   chi.Router
	crawler  Crawler
	sessions *session.Coordinator
	opts     Options
	log      logger.Logger
}

// errorMessage is streamed for requests that cannot be run.
type errorMessage struct {
	Type  string `json:"type"`
	Error string `json:"error"`
}

// NewServer constructs a Server with middleware and routes.
func NewServer(c Crawler, sessions *session.Coordinator, opts Options, log logger.Logger) *Server {
	if opts.RequestTimeout <= 0 {
		opts.RequestTimeout = 30 * time.Second
	}
	s := &Server{
		crawler:  c,
		sessions: sessions,
		opts:     opts,
		log:      logger.Ensure(log),
	}

	r := chi.NewRouter()
	r.Use(requestIDMiddleware)
	r.Use(accessLogMiddleware(s.log))
	r.Use(recoverMiddleware(s.log))

	r.Group(func(r chi.Router) {
		r.Use(timeoutMiddleware(opts.RequestTimeout))
		r.Get("/healthz", s.healthz)
		r.Method(http.MethodGet, "/metrics", metrics.Handler())
		r.Get("/socket/cancel/{channel_id}", s.cancelSocket)
	})
	r.Get("/socket/{channel_id}", s.serveSocket)

	s.router = r
	return s
}

// Handler returns the Router for use with http.Server.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// cancelSocket always answers 200 with a plain-text status line.
func (s *Server) cancelSocket(w http.ResponseWriter, r *http.Request) {
	msg, _ := s.sessions.Cancel(chi.URLParam(r, "channel_id"))
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = io.WriteString(w, msg)
}

func (s *Server) serveSocket(w http.ResponseWriter, r *http.Request) {
	channelID := chi.URLParam(r, "channel_id")
	conn, rw, _, err := ws.UpgradeHTTP(r, w)
	if err != nil {
		s.log.WarnObj("websocket upgrade failed", "socket", map[string]any{
			"channel_id": channelID,
			"request_id": RequestID(r.Context()),
			"error":      err.Error(),
		})
		return
	}

	stream := newWSStream(conn, s.opts.WriteTimeout)
	sess := s.sessions.Open(channelID, stream)
	defer func() {
		s.sessions.Close(sess)
		_ = stream.Close()
	}()

	var src io.Reader = conn
	if rw != nil {
		src = rw.Reader
	}
	controlHandler := wsutil.ControlFrameHandler(stream.controlWriter(), ws.StateServerSide)
	rd := &wsutil.Reader{
		Source:         src,
		State:          ws.StateServerSide,
		CheckUTF8:      true,
		OnIntermediate: controlHandler,
	}

	for {
		hdr, err := rd.NextFrame()
		if err != nil {
			s.logReadEnd(channelID, err)
			return
		}
		if hdr.OpCode.IsControl() {
			if err := controlHandler(hdr, rd); err != nil {
				s.logReadEnd(channelID, err)
				return
			}
			continue
		}
		if hdr.OpCode != ws.OpText {
			if err := rd.Discard(); err != nil {
				return
			}
			continue
		}

		data, err := io.ReadAll(rd)
		if err != nil {
			s.logReadEnd(channelID, err)
			return
		}
		s.handleMessage(sess, stream, data)
	}
}

// handleMessage validates one client request and starts its crawl. Each
// request on a connection runs concurrently with the others.
func (s *Server) handleMessage(sess *session.Session, stream *wsStream, data []byte) {
	ctx := sess.Context()

	req, err := crawler.DecodeRequest(data)
	var job crawler.Job
	if err == nil {
		job, err = s.crawler.Prepare(req)
	}
	if err != nil {
		s.log.WarnObj("invalid crawl request", "socket", map[string]any{
			"channel_id": sess.ChannelID,
			"error":      err.Error(),
		})
		_ = stream.SendJSON(ctx, errorMessage{Type: "error", Error: err.Error()})
		return
	}

	s.sessions.Start(sess, func(ctx context.Context) {
		_, err := s.crawler.Run(ctx, job, sess.ChannelID, stream)
		if err == nil || errors.Is(err, crawler.ErrConnectionClosed) || errors.Is(err, context.Canceled) {
			return
		}
		s.log.ErrorObj("crawl failed", "socket", map[string]any{
			"channel_id": sess.ChannelID,
			"board":      job.Request.Board,
			"error":      err.Error(),
		})
		_ = stream.SendJSON(ctx, errorMessage{Type: "error", Error: err.Error()})
	})
}

func (s *Server) logReadEnd(channelID string, err error) {
	var closed wsutil.ClosedError
	if errors.As(err, &closed) || errors.Is(err, io.EOF) {
		return
	}
	s.log.DebugObj("websocket read ended", "socket", map[string]any{
		"channel_id": channelID,
		"error":      err.Error(),
	})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		logger.ErrorObj("write JSON failed", "http_error", map[string]any{"error": err.Error()})
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorMessage{Type: "error", Error: msg})
}
