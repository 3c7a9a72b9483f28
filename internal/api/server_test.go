package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"vidflow/internal/analytics"
	"vidflow/internal/config"
	"vidflow/internal/events"
	"vidflow/internal/metadata"
	"vidflow/internal/scheduler"
	"vidflow/internal/security"
	"vidflow/internal/task"
)

type fakeController struct {
	cancelled, paused, resumed []string
	failNext                   bool
}

func (f *fakeController) Cancel(t *task.Task) error {
	if f.failNext {
		return context.DeadlineExceeded
	}
	f.cancelled = append(f.cancelled, t.ID)
	return nil
}

func (f *fakeController) Pause(t *task.Task) error {
	f.paused = append(f.paused, t.ID)
	return nil
}

func (f *fakeController) Resume(t *task.Task) error {
	f.resumed = append(f.resumed, t.ID)
	return nil
}

func newTestServer(t *testing.T) (*Server, *task.Registry, *fakeController) {
	t.Helper()
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	registry := task.NewRegistry()
	fc := &fakeController{}
	cfg := config.Default()
	cfg.AuthToken = "test-token"

	sched := scheduler.New(context.Background(), registry, noopSpawner{}, 2, log)
	emitter := events.New(cfg, log)
	audit := security.NewAuditLogger(t.TempDir(), log)
	fetcher := metadata.NewFetcher(cfg.DownloaderBin)
	stats := analytics.NewTracker(nil, cfg.DownloadDir)

	s := New(registry, sched, fc, fetcher, nil, audit, emitter, stats, cfg)
	return s, registry, fc
}

type noopSpawner struct{}

func (noopSpawner) Start(ctx context.Context, t *task.Task) error { return nil }

func authedRequest(method, path, token string, body []byte) *http.Request {
	req := httptest.NewRequest(method, path, bytes.NewReader(body))
	req.Header.Set("X-Vidflow-Token", token)
	req.RemoteAddr = "127.0.0.1:55555"
	return req
}

func TestStartDownloadRequiresURL(t *testing.T) {
	s, _, _ := newTestServer(t)
	req := authedRequest(http.MethodPost, "/v1/downloads", "test-token", []byte(`{}`))
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
}

func TestStartDownloadCreatesTask(t *testing.T) {
	s, registry, _ := newTestServer(t)
	body, _ := json.Marshal(startDownloadRequest{URL: "https://example.com/v"})
	req := authedRequest(http.MethodPost, "/v1/downloads", "test-token", body)
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)

	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", w.Code, w.Body.String())
	}
	var resp startDownloadResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if registry.Get(resp.TaskID) == nil {
		t.Fatal("task not inserted into registry")
	}
}

func TestUnauthorizedRequestRejected(t *testing.T) {
	s, _, _ := newTestServer(t)
	req := authedRequest(http.MethodGet, "/v1/downloads", "wrong-token", nil)
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", w.Code)
	}
}

func TestNonLoopbackRejected(t *testing.T) {
	s, _, _ := newTestServer(t)
	req := httptest.NewRequest(http.MethodGet, "/v1/downloads", nil)
	req.Header.Set("X-Vidflow-Token", "test-token")
	req.RemoteAddr = "203.0.113.5:443"
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)
	if w.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", w.Code)
	}
}

func TestCancelUnknownTaskNotFound(t *testing.T) {
	s, _, _ := newTestServer(t)
	req := authedRequest(http.MethodDelete, "/v1/downloads/missing", "test-token", nil)
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)
	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", w.Code)
	}
}

func TestPauseDelegatesToController(t *testing.T) {
	s, registry, fc := newTestServer(t)
	tk := task.New("t1", "https://example.com", "", "", "", "")
	registry.Insert(tk)

	req := authedRequest(http.MethodPost, "/v1/downloads/t1/pause", "test-token", nil)
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if len(fc.paused) != 1 || fc.paused[0] != "t1" {
		t.Fatalf("controller not invoked: %+v", fc.paused)
	}
}

func TestListDownloadsReturnsRegistryViews(t *testing.T) {
	s, registry, _ := newTestServer(t)
	registry.Insert(task.New("a", "u", "", "", "", ""))
	registry.Insert(task.New("b", "u", "", "", "", ""))

	req := authedRequest(http.MethodGet, "/v1/downloads", "test-token", nil)
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)

	var views []task.View
	if err := json.Unmarshal(w.Body.Bytes(), &views); err != nil {
		t.Fatal(err)
	}
	if len(views) != 2 {
		t.Fatalf("expected 2 views, got %d", len(views))
	}
}

func TestStatsEndpointDegradesGracefullyWithNoHistory(t *testing.T) {
	s, _, _ := newTestServer(t)
	req := authedRequest(http.MethodGet, "/v1/stats", "test-token", nil)
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var snap analytics.Snapshot
	if err := json.Unmarshal(w.Body.Bytes(), &snap); err != nil {
		t.Fatal(err)
	}
	if snap.TotalDownloadedBytes != 0 {
		t.Fatalf("expected zero total, got %d", snap.TotalDownloadedBytes)
	}
}
