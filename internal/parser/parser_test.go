package parser

import "testing"

func TestParseDestination(t *testing.T) {
	e := Parse("[download] Destination: /tmp/out.mp4")
	if e.Kind != KindSetDestination || e.Path != "/tmp/out.mp4" {
		t.Fatalf("got %+v", e)
	}
}

func TestParseMerger(t *testing.T) {
	e := Parse(`[Merger] Merging formats into "/tmp/out.mkv"`)
	if e.Kind != KindBeginMerging || e.Path != "/tmp/out.mkv" {
		t.Fatalf("got %+v", e)
	}
}

func TestParseAlreadyDownloaded(t *testing.T) {
	e := Parse("[download] /tmp/out.mp4 has already been downloaded")
	if e.Kind != KindSetDestination || e.Path != "/tmp/out.mp4" {
		t.Fatalf("got %+v", e)
	}
}

func TestParseProgressLine(t *testing.T) {
	e := Parse("1000|10000|500.0|18")
	if e.Kind != KindProgress {
		t.Fatalf("expected progress event, got %+v", e)
	}
	if e.DownloadedBytes != 1000 || e.TotalBytes != 10000 {
		t.Fatalf("got %+v", e)
	}
	if !e.HasSpeed || e.Speed != 500.0 {
		t.Fatalf("got %+v", e)
	}
	if !e.HasETA || e.ETA != 18 {
		t.Fatalf("got %+v", e)
	}
	if pct := e.Percent(); pct != 10 {
		t.Fatalf("percent = %v, want 10", pct)
	}
}

func TestParseProgressLineNA(t *testing.T) {
	e := Parse("1000|NA|NA|NA")
	if e.Kind != KindProgress {
		t.Fatalf("expected progress event, got %+v", e)
	}
	if e.TotalBytes != 0 {
		t.Fatalf("NA total should be 0, got %d", e.TotalBytes)
	}
	if e.HasSpeed || e.HasETA {
		t.Fatalf("NA speed/eta should be absent, got %+v", e)
	}
	if pct := e.Percent(); pct != 0 {
		t.Fatalf("percent with total=0 should be 0, got %v", pct)
	}
}

func TestParseUnrecognizedLine(t *testing.T) {
	e := Parse("some random stderr-ish noise")
	if e.Kind != KindIgnore {
		t.Fatalf("expected Ignore, got %+v", e)
	}
}

func TestParseTooFewFields(t *testing.T) {
	e := Parse("1000|10000|500.0")
	if e.Kind != KindIgnore {
		t.Fatalf("expected Ignore for malformed field count, got %+v", e)
	}
}
