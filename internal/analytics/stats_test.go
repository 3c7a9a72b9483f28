package analytics

import "testing"

func TestSnapshotWithNilHistoryDegradesToZero(t *testing.T) {
	tr := NewTracker(nil, "")
	snap := tr.Snapshot()
	if snap.TotalDownloadedBytes != 0 || snap.TotalFilesCompleted != 0 {
		t.Fatalf("expected zero totals with nil history, got %+v", snap)
	}
	if snap.DailyBytes == nil {
		t.Fatal("expected non-nil DailyBytes map")
	}
}

func TestCurrentSpeedRoundTrip(t *testing.T) {
	tr := NewTracker(nil, "")
	tr.SetCurrentSpeed(4096)
	if got := tr.CurrentSpeed(); got != 4096 {
		t.Fatalf("got %d", got)
	}
}

func TestRecordCompletionNilHistoryNoPanic(t *testing.T) {
	tr := NewTracker(nil, "")
	tr.RecordCompletion(1024) // must not panic
}
