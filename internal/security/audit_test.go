package security

import (
	"io"
	"log/slog"
	"testing"
)

func TestAuditLogRoundTrip(t *testing.T) {
	dir := t.TempDir()
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	a := NewAuditLogger(dir, log)
	defer a.Close()

	a.Log("127.0.0.1", "curl/8.0", "POST /v1/downloads", 200, "created abc")
	a.Log("127.0.0.1", "curl/8.0", "POST /v1/downloads", 401, "bad token")

	entries := a.RecentLogs(10)
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}
	if entries[0].Status != 401 {
		t.Fatalf("expected most recent entry first, got %+v", entries[0])
	}
}

func TestAuditLogRespectsLimit(t *testing.T) {
	dir := t.TempDir()
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	a := NewAuditLogger(dir, log)
	defer a.Close()

	for i := 0; i < 5; i++ {
		a.Log("127.0.0.1", "ua", "GET /v1/downloads", 200, "")
	}

	entries := a.RecentLogs(2)
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}
}
