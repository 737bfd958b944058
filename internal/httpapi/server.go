// Package httpapi exposes dashboard sessions over a small JSON API. Each
// session lives in memory and is driven exactly like the terminal dashboard.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"iasmeen/internal/i18n"
	"iasmeen/internal/logging"
	"iasmeen/internal/session"
	"iasmeen/internal/store"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
)

// Factory creates the session for a new client. loc is the client's
// localizer; the session should review in its language.
type Factory func(loc *i18n.Localizer) *session.Session

// History is the read side of the history store.
type History interface {
	Recent(ctx context.Context, limit int) ([]store.Analysis, error)
	ByRegistrable(ctx context.Context, domain string, limit int) ([]store.Analysis, error)
}

// Options configures a Server.
type Options struct {
	MaxUploadBytes int64
	HistoryLimit   int
	AllowedOrigin  string // CORS; empty disables the header
}

type entry struct {
	sess    *session.Session
	loc     *i18n.Localizer
	created time.Time
}

// Server implements the HTTP handlers.
type Server struct {
	factory Factory
	history History
	opts    Options

	mu       sync.RWMutex
	sessions map[string]*entry
}

// New creates a Server. history may be nil, disabling /api/history.
func New(factory Factory, history History, opts Options) *Server {
	if opts.MaxUploadBytes <= 0 {
		opts.MaxUploadBytes = 10 << 20
	}
	if opts.HistoryLimit <= 0 {
		opts.HistoryLimit = 50
	}
	return &Server{factory: factory, history: history, opts: opts, sessions: make(map[string]*entry)}
}

// Routes returns the chi router.
func (s *Server) Routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(s.logRequests)
	if s.opts.AllowedOrigin != "" {
		r.Use(s.cors)
	}

	r.Get("/healthz", s.healthz)
	r.Route("/api", func(r chi.Router) {
		r.Post("/sessions", s.createSession)
		r.Route("/sessions/{id}", func(r chi.Router) {
			r.Get("/", s.getSession)
			r.Put("/target", s.selectTarget)
			r.Put("/language", s.selectLanguage)
			r.Post("/search", s.search)
			r.Post("/upload", s.upload)
			r.Post("/reliability", s.reliability)
			r.Post("/reset", s.reset)
			r.Get("/report", s.report)
		})
		r.Get("/history", s.listHistory)
	})
	return r
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		logging.HTTP("%s %s -> %d (%v) req=%s", r.Method, r.URL.Path, ww.Status(), time.Since(start), middleware.GetReqID(r.Context()))
	})
}

func (s *Server) cors(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", s.opts.AllowedOrigin)
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) lookup(w http.ResponseWriter, r *http.Request) (string, *entry, bool) {
	id := chi.URLParam(r, "id")
	s.mu.RLock()
	e, ok := s.sessions[id]
	s.mu.RUnlock()
	if !ok {
		writeError(w, http.StatusNotFound, "session not found")
		return id, nil, false
	}
	return id, e, true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logging.Get(logging.CategoryHTTP).Warn("failed to encode response: %v", err)
	}
}

type errorResponse struct {
	Error string `json:"error"`
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

func decodeBody(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return errors.New("invalid JSON body")
	}
	return nil
}

func (s *Server) healthz(w http.ResponseWriter, _ *http.Request) {
	s.mu.RLock()
	n := len(s.sessions)
	s.mu.RUnlock()
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "sessions": n})
}

func (s *Server) createSession(w http.ResponseWriter, r *http.Request) {
	loc := i18n.Default()
	if lang := r.URL.Query().Get("lang"); lang != "" {
		parsed, err := i18n.ParseLanguage(lang)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		if err := loc.SetLanguage(parsed); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
	}
	id := uuid.NewString()
	e := &entry{sess: s.factory(loc), loc: loc, created: time.Now()}

	s.mu.Lock()
	s.sessions[id] = e
	s.mu.Unlock()

	logging.HTTP("session %s created (lang=%s)", id, loc.Language())
	writeJSON(w, http.StatusCreated, newStateResponse(id, e.loc, e.sess.Snapshot()))
}
