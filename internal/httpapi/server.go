// Package httpapi serves the JSON management API: login and logout, lecture
// creation and lifecycle, and paginated access to persisted utterances.
//
// All /api routes except login and logout expect an authenticated user in
// the request context, placed there by [auth.Middleware].
package httpapi

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/MrWong99/lectern/internal/auth"
	"github.com/MrWong99/lectern/internal/storage"
	"github.com/MrWong99/lectern/internal/store"
	"github.com/MrWong99/lectern/internal/subtitle"
)

// ExemptPaths are the /api routes that authenticate themselves instead of
// relying on [auth.Middleware].
var ExemptPaths = []string{"/api/auth/login", "/api/auth/logout"}

const (
	defaultPageSize = 20
	maxPageSize     = 100

	defaultUtterancePageSize = 50
	maxUtterancePageSize     = 500
)

// Server holds the handlers for the management API.
type Server struct {
	auth       *auth.Service
	lectures   store.LectureStore
	utterances store.UtteranceStore
	exports    *storage.Exports
}

// Option configures optional Server collaborators.
type Option func(*Server)

// WithExports enables the transcript export endpoint, caching generated
// files in the given store.
func WithExports(exports *storage.Exports) Option {
	return func(s *Server) { s.exports = exports }
}

// NewServer creates a Server. Auth, lectures and utterances are required.
func NewServer(authSvc *auth.Service, lectures store.LectureStore, utterances store.UtteranceStore, opts ...Option) (*Server, error) {
	switch {
	case authSvc == nil:
		return nil, errors.New("httpapi: auth service is required")
	case lectures == nil:
		return nil, errors.New("httpapi: lecture store is required")
	case utterances == nil:
		return nil, errors.New("httpapi: utterance store is required")
	}
	s := &Server{auth: authSvc, lectures: lectures, utterances: utterances}
	for _, o := range opts {
		o(s)
	}
	return s, nil
}

// Register mounts all API routes on mux.
func (s *Server) Register(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/auth/login", s.handleLogin)
	mux.HandleFunc("POST /api/auth/logout", s.handleLogout)
	mux.HandleFunc("POST /api/lectures", s.handleCreateLecture)
	mux.HandleFunc("GET /api/lectures", s.handleListLectures)
	mux.HandleFunc("GET /api/lectures/{id}", s.handleGetLecture)
	mux.HandleFunc("POST /api/lectures/{id}/end", s.handleEndLecture)
	mux.HandleFunc("GET /api/lectures/{id}/utterances", s.handleListUtterances)
	if s.exports != nil {
		mux.HandleFunc("GET /api/lectures/{id}/export", s.handleExport)
	}
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type loginResponse struct {
	Token string   `json:"token"`
	User  userBody `json:"user"`
}

type userBody struct {
	ID       int64  `json:"id"`
	Username string `json:"username"`
	Role     string `json:"role"`
}

type lectureBody struct {
	ID        int64      `json:"id"`
	Title     string     `json:"title"`
	CreatorID int64      `json:"creator_id"`
	Status    string     `json:"status"`
	CreatedAt time.Time  `json:"created_at"`
	EndedAt   *time.Time `json:"ended_at,omitempty"`
}

type utteranceBody struct {
	Seq        uint64 `json:"seq"`
	StartMS    int64  `json:"start_ms"`
	EndMS      int64  `json:"end_ms"`
	TextSource string `json:"text_source"`
	TextTarget string `json:"text_target"`
}

func toLectureBody(l store.Lecture) lectureBody {
	return lectureBody{
		ID:        l.ID,
		Title:     l.Title,
		CreatorID: l.CreatorID,
		Status:    string(l.Status),
		CreatedAt: l.CreatedAt,
		EndedAt:   l.EndedAt,
	}
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	session, err := s.auth.Login(r.Context(), req.Username, req.Password)
	if err != nil {
		if errors.Is(err, auth.ErrInvalidCredentials) {
			writeError(w, http.StatusUnauthorized, "invalid credentials")
			return
		}
		slog.Error("login failed", "username", req.Username, "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, loginResponse{
		Token: session.Token,
		User: userBody{
			ID:       session.User.ID,
			Username: session.User.Username,
			Role:     session.User.Role,
		},
	})
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	header := r.Header.Get("Authorization")
	scheme, token, found := strings.Cut(header, " ")
	if !found || !strings.EqualFold(scheme, "Bearer") || token == "" {
		writeError(w, http.StatusBadRequest, "missing bearer token")
		return
	}
	if err := s.auth.Logout(r.Context(), strings.TrimSpace(token)); err != nil {
		if errors.Is(err, auth.ErrInvalidToken) {
			writeError(w, http.StatusNotFound, "unknown token")
			return
		}
		slog.Error("logout failed", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type createLectureRequest struct {
	Title string `json:"title"`
}

func (s *Server) handleCreateLecture(w http.ResponseWriter, r *http.Request) {
	user, ok := auth.UserFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "authentication required")
		return
	}
	var req createLectureRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if strings.TrimSpace(req.Title) == "" {
		writeError(w, http.StatusBadRequest, "title is required")
		return
	}
	lecture, err := s.lectures.Create(r.Context(), strings.TrimSpace(req.Title), user.ID)
	if err != nil {
		slog.Error("lecture creation failed", "user_id", user.ID, "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusCreated, toLectureBody(lecture))
}

func (s *Server) handleListLectures(w http.ResponseWriter, r *http.Request) {
	user, ok := auth.UserFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "authentication required")
		return
	}
	limit, offset := pagination(r, defaultPageSize, maxPageSize)
	lectures, err := s.lectures.List(r.Context(), user.ID, limit, offset)
	if err != nil {
		slog.Error("lecture listing failed", "user_id", user.ID, "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	items := make([]lectureBody, 0, len(lectures))
	for _, l := range lectures {
		items = append(items, toLectureBody(l))
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"items":  items,
		"limit":  limit,
		"offset": offset,
	})
}

func (s *Server) handleGetLecture(w http.ResponseWriter, r *http.Request) {
	lecture, ok := s.ownedLecture(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, toLectureBody(lecture))
}

func (s *Server) handleEndLecture(w http.ResponseWriter, r *http.Request) {
	lecture, ok := s.ownedLecture(w, r)
	if !ok {
		return
	}
	if err := s.lectures.End(r.Context(), lecture.ID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "lecture not found")
			return
		}
		slog.Error("ending lecture failed", "lecture_id", lecture.ID, "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	ended, err := s.lectures.Get(r.Context(), lecture.ID)
	if err != nil {
		slog.Error("reloading ended lecture failed", "lecture_id", lecture.ID, "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, toLectureBody(ended))
}

func (s *Server) handleListUtterances(w http.ResponseWriter, r *http.Request) {
	lecture, ok := s.ownedLecture(w, r)
	if !ok {
		return
	}
	stream := subtitle.Stream(r.URL.Query().Get("stream"))
	if stream == "" {
		stream = subtitle.StreamRealtime
	}
	if !stream.IsValid() {
		writeError(w, http.StatusBadRequest, "invalid stream")
		return
	}
	limit, offset := pagination(r, defaultUtterancePageSize, maxUtterancePageSize)
	events, err := s.utterances.List(r.Context(), lecture.ID, stream, limit, offset)
	if err != nil {
		slog.Error("utterance listing failed", "lecture_id", lecture.ID, "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	items := make([]utteranceBody, 0, len(events))
	for _, ev := range events {
		items = append(items, utteranceBody{
			Seq:        ev.Seq,
			StartMS:    ev.StartMS,
			EndMS:      ev.EndMS,
			TextSource: ev.TextSource,
			TextTarget: ev.TextTarget,
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"lecture_id": lecture.ID,
		"stream":     string(stream),
		"items":      items,
		"limit":      limit,
		"offset":     offset,
	})
}

var exportContentTypes = map[storage.Format]string{
	storage.FormatVTT:  "text/vtt; charset=utf-8",
	storage.FormatSRT:  "application/x-subrip",
	storage.FormatJSON: "application/json",
}

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	lecture, ok := s.ownedLecture(w, r)
	if !ok {
		return
	}
	format := storage.Format(r.URL.Query().Get("format"))
	if format == "" {
		format = storage.FormatVTT
	}
	if !format.IsValid() {
		writeError(w, http.StatusBadRequest, "invalid export format")
		return
	}
	stream := subtitle.Stream(r.URL.Query().Get("stream"))
	if stream == "" {
		stream = subtitle.StreamRealtime
	}
	if !stream.IsValid() {
		writeError(w, http.StatusBadRequest, "invalid stream")
		return
	}

	name := storage.ExportName(lecture.ID, stream, format)

	// A finished lecture's transcript is immutable, so its export can be
	// served from the file store.
	finished := lecture.Status == store.LectureDone || lecture.Status == store.LectureSummarizing
	if finished {
		if cached, err := s.exports.Read(name); err == nil {
			serveExport(w, format, cached)
			return
		}
	}

	events, err := s.collectEvents(r, lecture.ID, stream)
	if err != nil {
		slog.Error("export collection failed", "lecture_id", lecture.ID, "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	data, err := storage.Render(format, events)
	if err != nil {
		slog.Error("export rendering failed", "lecture_id", lecture.ID, "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if finished {
		if err := s.exports.Write(name, data); err != nil {
			slog.Warn("export caching failed", "file", name, "error", err)
		}
	}
	serveExport(w, format, data)
}

// collectEvents pages through the full utterance log for the lecture.
func (s *Server) collectEvents(r *http.Request, lectureID int64, stream subtitle.Stream) ([]subtitle.Event, error) {
	var all []subtitle.Event
	for offset := 0; ; offset += maxUtterancePageSize {
		page, err := s.utterances.List(r.Context(), lectureID, stream, maxUtterancePageSize, offset)
		if err != nil {
			return nil, err
		}
		all = append(all, page...)
		if len(page) < maxUtterancePageSize {
			return all, nil
		}
	}
}

func serveExport(w http.ResponseWriter, format storage.Format, data []byte) {
	w.Header().Set("Content-Type", exportContentTypes[format])
	w.WriteHeader(http.StatusOK)
	w.Write(data)
}

// ownedLecture resolves the {id} path value to a lecture owned by the
// authenticated user, writing the error response itself when it cannot.
func (s *Server) ownedLecture(w http.ResponseWriter, r *http.Request) (store.Lecture, bool) {
	user, ok := auth.UserFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "authentication required")
		return store.Lecture{}, false
	}
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusNotFound, "lecture not found")
		return store.Lecture{}, false
	}
	lecture, err := s.lectures.Get(r.Context(), id)
	switch {
	case errors.Is(err, store.ErrNotFound):
		writeError(w, http.StatusNotFound, "lecture not found")
		return store.Lecture{}, false
	case err != nil:
		slog.Error("lecture lookup failed", "lecture_id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return store.Lecture{}, false
	case lecture.CreatorID != user.ID:
		writeError(w, http.StatusForbidden, "not the lecture creator")
		return store.Lecture{}, false
	}
	return lecture, true
}

// pagination reads limit and offset query parameters, applying the given
// default and cap to limit. Negative or unparseable values fall back to the
// defaults.
func pagination(r *http.Request, def, max int) (limit, offset int) {
	limit = def
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if v, err := strconv.Atoi(raw); err == nil && v > 0 {
			limit = v
		}
	}
	if limit > max {
		limit = max
	}
	if raw := r.URL.Query().Get("offset"); raw != "" {
		if v, err := strconv.Atoi(raw); err == nil && v >= 0 {
			offset = v
		}
	}
	return limit, offset
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("response encoding failed", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
