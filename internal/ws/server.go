// Package ws terminates the realtime WebSocket surface: it authenticates
// connections, joins them to their lecture room, keeps them alive with
// heartbeats, and feeds binary audio frames into the ingest pipeline.
package ws

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/coder/websocket"

	"github.com/MrWong99/lectern/internal/auth"
	"github.com/MrWong99/lectern/internal/ingest"
	"github.com/MrWong99/lectern/internal/ledger"
	"github.com/MrWong99/lectern/internal/observe"
	"github.com/MrWong99/lectern/internal/room"
	"github.com/MrWong99/lectern/internal/store"
	"github.com/MrWong99/lectern/internal/subtitle"
)

// Application close codes, from the 4000-4999 private range.
const (
	// StatusUnauthorized closes connections with a missing or invalid token.
	StatusUnauthorized websocket.StatusCode = 4001

	// StatusNotFound closes connections to lectures that do not exist or
	// that the authenticated user may not access. One code for both cases
	// so a probing client cannot tell them apart.
	StatusNotFound websocket.StatusCode = 4004
)

const defaultHeartbeatInterval = 30 * time.Second

// Config assembles a [Server]. Auth, Lectures, Utterances, Registry, Ledger
// and Pipeline are required.
type Config struct {
	Auth       *auth.Service
	Lectures   store.LectureStore
	Utterances store.UtteranceStore
	Registry   *room.Registry
	Ledger     *ledger.Ledger
	Pipeline   *ingest.Pipeline
	Metrics    *observe.Metrics

	// HeartbeatInterval is the period between keepalive ping frames.
	// Default: 30s.
	HeartbeatInterval time.Duration

	// OriginPatterns is passed through to the websocket handshake. Empty
	// means same-origin clients only.
	OriginPatterns []string
}

// Server owns the lifecycle of every live WebSocket connection.
type Server struct {
	auth       *auth.Service
	lectures   store.LectureStore
	utterances store.UtteranceStore
	registry   *room.Registry
	ledger     *ledger.Ledger
	pipeline   *ingest.Pipeline
	metrics    *observe.Metrics
	heartbeat  time.Duration
	origins    []string
}

// NewServer creates a Server from cfg.
func NewServer(cfg Config) (*Server, error) {
	switch {
	case cfg.Auth == nil:
		return nil, errors.New("ws: auth service is required")
	case cfg.Lectures == nil:
		return nil, errors.New("ws: lecture store is required")
	case cfg.Utterances == nil:
		return nil, errors.New("ws: utterance store is required")
	case cfg.Registry == nil:
		return nil, errors.New("ws: room registry is required")
	case cfg.Ledger == nil:
		return nil, errors.New("ws: sequence ledger is required")
	case cfg.Pipeline == nil:
		return nil, errors.New("ws: ingest pipeline is required")
	}
	if cfg.Metrics == nil {
		cfg.Metrics = observe.DefaultMetrics()
	}
	if cfg.HeartbeatInterval <= 0 {
		cfg.HeartbeatInterval = defaultHeartbeatInterval
	}
	return &Server{
		auth:       cfg.Auth,
		lectures:   cfg.Lectures,
		utterances: cfg.Utterances,
		registry:   cfg.Registry,
		ledger:     cfg.Ledger,
		pipeline:   cfg.Pipeline,
		metrics:    cfg.Metrics,
		heartbeat:  cfg.HeartbeatInterval,
		origins:    cfg.OriginPatterns,
	}, nil
}

// Register mounts the WebSocket endpoint on mux.
func (s *Server) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /ws/lectures/{id}", s.handleLecture)
}

func (s *Server) handleLecture(w http.ResponseWriter, r *http.Request) {
	lectureID, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		http.Error(w, "invalid lecture id", http.StatusBadRequest)
		return
	}

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: s.origins,
	})
	if err != nil {
		slog.Debug("websocket accept failed", "lecture_id", lectureID, "error", err)
		return
	}
	defer conn.CloseNow()

	ctx := r.Context()

	user, err := s.auth.Verify(ctx, r.URL.Query().Get("token"))
	if err != nil {
		conn.Close(StatusUnauthorized, "invalid token")
		return
	}

	lecture, err := s.lectures.Get(ctx, lectureID)
	switch {
	case errors.Is(err, store.ErrNotFound):
		conn.Close(StatusNotFound, "lecture not found")
		return
	case err != nil:
		slog.Error("lecture lookup failed", "lecture_id", lectureID, "error", err)
		conn.Close(websocket.StatusInternalError, "internal error")
		return
	case lecture.CreatorID != user.ID:
		conn.Close(StatusNotFound, "lecture not found")
		return
	}

	if err := s.ledger.Initialize(ctx, lectureID); err != nil {
		slog.Error("ledger initialization failed", "lecture_id", lectureID, "error", err)
		conn.Close(websocket.StatusInternalError, "internal error")
		return
	}

	handle := newHandle(conn)
	s.registry.Join(lectureID, handle)
	s.metrics.ActiveConnections.Add(ctx, 1)
	if s.registry.Size(lectureID) == 1 {
		s.metrics.ActiveRooms.Add(ctx, 1)
	}
	defer func() {
		s.registry.Leave(lectureID, handle)
		s.metrics.ActiveConnections.Add(context.WithoutCancel(ctx), -1)
		if s.registry.Size(lectureID) == 0 {
			s.metrics.ActiveRooms.Add(context.WithoutCancel(ctx), -1)
		}
	}()

	slog.Info("connection joined",
		"lecture_id", lectureID, "conn_id", handle.ID(), "user", user.Username)

	welcome := ingest.NewInfoFrame(fmt.Sprintf("Connected to lecture %d", lectureID), user.Username)
	if err := handle.Send(ctx, welcome); err != nil {
		return
	}

	hbCtx, stopHeartbeat := context.WithCancel(ctx)
	defer stopHeartbeat()
	go s.superviseHeartbeat(hbCtx, handle, lectureID)

	startMS, err := s.utterances.LastEndMS(ctx, lectureID, subtitle.StreamRealtime)
	if err != nil {
		slog.Warn("resuming at offset 0, last end offset unavailable",
			"lecture_id", lectureID, "error", err)
		startMS = 0
	}
	s.readLoop(ctx, conn, ingest.NewConn(lectureID, subtitle.StreamRealtime, handle, startMS))
}

// readLoop consumes inbound messages until the connection drops. Binary
// messages are audio frames for the pipeline; the only meaningful text
// message is the client's "pong" heartbeat reply, which needs no handling.
func (s *Server) readLoop(ctx context.Context, conn *websocket.Conn, ic *ingest.Conn) {
	for {
		typ, data, err := conn.Read(ctx)
		if err != nil {
			slog.Debug("connection closed",
				"lecture_id", ic.LectureID, "error", err)
			return
		}
		switch typ {
		case websocket.MessageText:
			if string(data) != "pong" {
				slog.Debug("ignoring unexpected text message",
					"lecture_id", ic.LectureID, "size", len(data))
			}
		case websocket.MessageBinary:
			if _, _, err := s.pipeline.ProcessFrame(ctx, ic, data); err != nil {
				slog.Error("frame processing failed",
					"lecture_id", ic.LectureID, "error", err)
				conn.Close(websocket.StatusInternalError, "internal error")
				return
			}
		}
	}
}

// superviseHeartbeat sends a ping frame every heartbeat interval until the
// context is cancelled or a send fails. A failed send only stops the
// heartbeat; the read loop observes the dead connection on its own.
func (s *Server) superviseHeartbeat(ctx context.Context, h room.Handle, lectureID int64) {
	ticker := time.NewTicker(s.heartbeat)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			sendCtx, cancel := context.WithTimeout(ctx, s.heartbeat)
			err := h.Send(sendCtx, ingest.NewPingFrame())
			cancel()
			if err != nil {
				slog.Debug("heartbeat send failed",
					"lecture_id", lectureID, "conn_id", h.ID(), "error", err)
				return
			}
		}
	}
}
