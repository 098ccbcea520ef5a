package stats

import (
	"errors"
	"testing"
	"time"
)

// fakeClock returns a controllable now function.
func fakeClock(start time.Time) (func() time.Time, func(time.Duration)) {
	now := start
	return func() time.Time { return now }, func(d time.Duration) { now = now.Add(d) }
}

func TestWindowSnapshotPercentiles(t *testing.T) {
	w := NewWindow(time.Hour)
	for _, ms := range []int64{100, 200, 300, 400, 500} {
		w.Record(time.Duration(ms)*time.Millisecond, false)
	}

	snap := w.Snapshot()
	if snap.Count != 5 {
		t.Fatalf("expected count=5, got %d", snap.Count)
	}
	if snap.MinMs != 100 || snap.MaxMs != 500 {
		t.Fatalf("expected min=100 max=500, got min=%d max=%d", snap.MinMs, snap.MaxMs)
	}
	if snap.AvgMs != 300 {
		t.Fatalf("expected avg=300, got %f", snap.AvgMs)
	}
	if snap.P50Ms != 300 {
		t.Fatalf("expected p50=300, got %f", snap.P50Ms)
	}
	if snap.P95Ms != 480 {
		t.Fatalf("expected p95=480, got %f", snap.P95Ms)
	}
	if snap.P99Ms != 496 {
		t.Fatalf("expected p99=496, got %f", snap.P99Ms)
	}
}

func TestWindowPrunesExpiredSamples(t *testing.T) {
	w := NewWindow(time.Minute)
	now, advance := fakeClock(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))
	w.now = now

	w.Record(100*time.Millisecond, false)
	advance(2 * time.Minute)

	if snap := w.Snapshot(); snap.Count != 0 {
		t.Fatalf("expected count=0 after prune, got %d", snap.Count)
	}

	w.Record(200*time.Millisecond, false)
	snap := w.Snapshot()
	if snap.Count != 1 || snap.MinMs != 200 || snap.MaxMs != 200 {
		t.Fatalf("expected one sample of 200ms, got %+v", snap)
	}
}

func TestWindowFailuresExcludedFromLatency(t *testing.T) {
	w := NewWindow(time.Hour)
	w.Record(10*time.Millisecond, false)
	w.Record(5*time.Second, true)

	snap := w.Snapshot()
	if snap.Count != 1 || snap.Failures != 1 {
		t.Fatalf("expected count=1 failures=1, got %+v", snap)
	}
	if snap.MaxMs != 10 {
		t.Fatalf("failed sample leaked into latency: max=%d", snap.MaxMs)
	}
}

func TestWindowTime(t *testing.T) {
	w := NewWindow(time.Hour)
	now, advance := fakeClock(time.Now())
	w.now = now

	boom := errors.New("boom")
	err := w.Time(func() error {
		advance(40 * time.Millisecond)
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected error to pass through, got %v", err)
	}
	_ = w.Time(func() error {
		advance(25 * time.Millisecond)
		return nil
	})

	snap := w.Snapshot()
	if snap.Failures != 1 || snap.Count != 1 || snap.MinMs != 25 {
		t.Fatalf("unexpected snapshot %+v", snap)
	}
}

func TestWindowRecordClampsNegativeDuration(t *testing.T) {
	w := NewWindow(time.Hour)
	w.Record(-10*time.Millisecond, false)
	snap := w.Snapshot()
	if snap.Count != 1 || snap.MinMs != 0 {
		t.Fatalf("expected clamped duration=0, got %+v", snap)
	}
}

func TestEmptySnapshot(t *testing.T) {
	if snap := NewWindow(0).Snapshot(); snap != (Snapshot{}) {
		t.Fatalf("expected zero snapshot, got %+v", snap)
	}
}
