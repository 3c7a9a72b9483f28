// Package api is the Command Surface's HTTP transport: a thin adapter
// translating requests into registry/scheduler operations (spec §4.9).
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	"vidflow/internal/analytics"
	"vidflow/internal/config"
	"vidflow/internal/events"
	"vidflow/internal/metadata"
	"vidflow/internal/scheduler"
	"vidflow/internal/security"
	"vidflow/internal/storage"
	"vidflow/internal/task"
)

// Controller is the subset of the Subprocess Controller the Command
// Surface drives directly (cancel/pause/resume).
type Controller interface {
	Cancel(t *task.Task) error
	Pause(t *task.Task) error
	Resume(t *task.Task) error
}

// Server is the chi-based Command Surface.
type Server struct {
	registry   *task.Registry
	pumper     *scheduler.Scheduler
	controller Controller
	fetcher    *metadata.Fetcher
	history    *storage.Storage
	audit      *security.AuditLogger
	emitter    *events.Emitter
	stats      *analytics.Tracker
	cfg        config.Config

	router     *chi.Mux
	activeReqs int64
	maxReqs    int64
}

// New constructs the Command Surface server.
func New(registry *task.Registry, pumper *scheduler.Scheduler, controller Controller, fetcher *metadata.Fetcher, history *storage.Storage, audit *security.AuditLogger, emitter *events.Emitter, stats *analytics.Tracker, cfg config.Config) *Server {
	s := &Server{
		registry:   registry,
		pumper:     pumper,
		controller: controller,
		fetcher:    fetcher,
		history:    history,
		audit:      audit,
		emitter:    emitter,
		stats:      stats,
		cfg:        cfg,
		router:     chi.NewRouter(),
		maxReqs:    32,
	}
	s.setupRoutes()
	return s
}

// Handler returns the underlying http.Handler, useful for tests.
func (s *Server) Handler() http.Handler { return s.router }

// Serve binds and serves on the configured listen address. It blocks while
// serving and returns an error if the bind fails or serving stops; callers
// typically run it in a goroutine.
func (s *Server) Serve() error {
	conn, err := net.Listen("tcp", s.cfg.ListenAddr)
	if err != nil {
		return fmt.Errorf("api: bind %s: %w", s.cfg.ListenAddr, err)
	}
	return http.Serve(conn, s.router)
}

func (s *Server) setupRoutes() {
	s.router.Use(middleware.Logger)
	s.router.Use(middleware.Recoverer)
	s.router.Use(s.securityMiddleware)
	s.router.Use(s.concurrencyLimitMiddleware)

	s.router.Post("/v1/downloads", s.handleStartDownload)
	s.router.Get("/v1/downloads", s.handleListDownloads)
	s.router.Get("/v1/downloads/{id}", s.handleGetDownload)
	s.router.Delete("/v1/downloads/{id}", s.handleCancelDownload)
	s.router.Post("/v1/downloads/{id}/pause", s.handlePauseDownload)
	s.router.Post("/v1/downloads/{id}/resume", s.handleResumeDownload)
	s.router.Post("/v1/metadata", s.handleGetMetadata)
	s.router.Get("/v1/stats", s.handleGetStats)
}

func (s *Server) concurrencyLimitMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		current := atomic.AddInt64(&s.activeReqs, 1)
		defer atomic.AddInt64(&s.activeReqs, -1)

		if current > s.maxReqs {
			s.audit.Log(clientIP(r), r.UserAgent(), r.Method+" "+r.URL.Path, http.StatusTooManyRequests, "overloaded")
			http.Error(w, "too many requests", http.StatusTooManyRequests)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) securityMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ip := clientIP(r)
		action := r.Method + " " + r.URL.Path

		if ip != "127.0.0.1" && ip != "::1" && ip != "" {
			s.audit.Log(ip, r.UserAgent(), action, http.StatusForbidden, "external access denied")
			http.Error(w, "forbidden", http.StatusForbidden)
			return
		}

		if token := r.Header.Get("X-Vidflow-Token"); token != s.cfg.AuthToken {
			s.audit.Log(ip, r.UserAgent(), action, http.StatusUnauthorized, "invalid token")
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		s.audit.Log(ip, r.UserAgent(), action, http.StatusOK, "authorized")
		next.ServeHTTP(w, r)
	})
}

func clientIP(r *http.Request) string {
	ip, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return ip
}

type startDownloadRequest struct {
	URL        string `json:"url"`
	Title      string `json:"title"`
	Path       string `json:"path"`
	FormatSpec string `json:"format_spec"`
	Cookies    string `json:"cookies"`
}

type startDownloadResponse struct {
	TaskID string `json:"task_id"`
}

func (s *Server) handleStartDownload(w http.ResponseWriter, r *http.Request) {
	var req startDownloadRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "bad request: "+err.Error(), http.StatusBadRequest)
		return
	}
	if req.URL == "" {
		http.Error(w, "url is required", http.StatusBadRequest)
		return
	}

	dir := req.Path
	if dir == "" {
		dir = s.cfg.DownloadDir
	}

	t := task.New(uuid.New().String(), req.URL, req.Title, dir, req.FormatSpec, req.Cookies)
	s.registry.Insert(t)
	s.pumper.Pump()

	writeJSON(w, http.StatusCreated, startDownloadResponse{TaskID: t.ID})
}

func (s *Server) handleListDownloads(w http.ResponseWriter, r *http.Request) {
	views := s.registry.Views()
	if r.URL.Query().Get("include_history") == "true" && s.history != nil {
		records, err := s.history.ListHistory(200)
		if err == nil {
			for _, rec := range records {
				if s.registry.Get(rec.ID) != nil {
					continue // already in the live view
				}
				views = append(views, historyToView(rec))
			}
		}
	}
	writeJSON(w, http.StatusOK, views)
}

func (s *Server) handleGetDownload(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	t := s.registry.Get(id)
	if t == nil {
		http.Error(w, "not found", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, t.Snapshot())
}

func (s *Server) handleCancelDownload(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	t := s.registry.Get(id)
	if t == nil {
		http.Error(w, "not found", http.StatusNotFound)
		return
	}
	if err := s.controller.Cancel(t); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusOK)
}

func (s *Server) handlePauseDownload(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	t := s.registry.Get(id)
	if t == nil {
		http.Error(w, "not found", http.StatusNotFound)
		return
	}
	if err := s.controller.Pause(t); err != nil {
		http.Error(w, err.Error(), http.StatusConflict)
		return
	}
	w.WriteHeader(http.StatusOK)
}

func (s *Server) handleResumeDownload(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	t := s.registry.Get(id)
	if t == nil {
		http.Error(w, "not found", http.StatusNotFound)
		return
	}
	if err := s.controller.Resume(t); err != nil {
		http.Error(w, err.Error(), http.StatusConflict)
		return
	}
	w.WriteHeader(http.StatusOK)
}

type metadataRequest struct {
	URL string `json:"url"`
}

func (s *Server) handleGetMetadata(w http.ResponseWriter, r *http.Request) {
	var req metadataRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "bad request: "+err.Error(), http.StatusBadRequest)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 30*time.Second)
	defer cancel()

	md, err := s.fetcher.Fetch(ctx, req.URL)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadGateway)
		return
	}
	writeJSON(w, http.StatusOK, md)
}

func (s *Server) handleGetStats(w http.ResponseWriter, r *http.Request) {
	if s.stats == nil {
		writeJSON(w, http.StatusOK, analytics.Snapshot{DailyBytes: map[string]int64{}})
		return
	}
	writeJSON(w, http.StatusOK, s.stats.Snapshot())
}

func historyToView(rec storage.HistoryRecord) task.View {
	return task.View{
		ID:           rec.ID,
		URL:          rec.URL,
		Title:        rec.Title,
		Status:       task.Status(rec.Status),
		Progress:     rec.Progress,
		FinalPath:    rec.FinalPath,
		ErrorMessage: rec.ErrorMessage,
		CanRetry:     rec.Status == string(task.StatusError),
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
