package task

import "testing"

func TestRegistryOldestQueued(t *testing.T) {
	r := NewRegistry()
	a := New("a", "u", "t", "/tmp", "best", "")
	b := New("b", "u", "t", "/tmp", "best", "")
	r.Insert(a)
	r.Insert(b)

	got := r.OldestQueued()
	if got == nil || got.ID != "a" {
		t.Fatalf("expected oldest queued to be 'a', got %v", got)
	}

	a.Transition(StatusPreparing)
	got = r.OldestQueued()
	if got == nil || got.ID != "b" {
		t.Fatalf("expected oldest queued to be 'b' after a left Queued, got %v", got)
	}
}

func TestRegistryActiveCount(t *testing.T) {
	r := NewRegistry()
	a := New("a", "u", "t", "/tmp", "best", "")
	b := New("b", "u", "t", "/tmp", "best", "")
	c := New("c", "u", "t", "/tmp", "best", "")
	r.Insert(a)
	r.Insert(b)
	r.Insert(c)

	a.Transition(StatusPreparing)
	a.Transition(StatusDownloading)
	b.Transition(StatusPreparing)
	b.Transition(StatusDownloading)
	b.Transition(StatusPaused)

	if got := r.ActiveCount(); got != 2 {
		t.Fatalf("ActiveCount = %d, want 2 (Downloading + Paused)", got)
	}
}

func TestRegistryGetMissing(t *testing.T) {
	r := NewRegistry()
	if r.Get("nope") != nil {
		t.Fatal("expected nil for missing task")
	}
}
