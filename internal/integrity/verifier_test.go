package integrity

import (
	"os"
	"path/filepath"
	"testing"
)

func TestVerifyMissingFile(t *testing.T) {
	v := NewVerifier("ffprobe")
	if err := v.Verify(filepath.Join(t.TempDir(), "nope.mp4")); err == nil {
		t.Fatal("expected error for missing artifact")
	}
}

func TestVerifyEmptyFile(t *testing.T) {
	dir := t.TempDir()
	p := filepath.Join(dir, "empty.mp4")
	if err := os.WriteFile(p, nil, 0o644); err != nil {
		t.Fatal(err)
	}
	v := NewVerifier("ffprobe")
	if err := v.Verify(p); err == nil {
		t.Fatal("expected error for empty artifact")
	}
}

func TestTruncateHelper(t *testing.T) {
	if got := truncate("abcdef", 3); got != "abc" {
		t.Fatalf("got %q", got)
	}
	if got := truncate("ab", 3); got != "ab" {
		t.Fatalf("got %q", got)
	}
}
