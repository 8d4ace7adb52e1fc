package cycle

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"gigalert/internal/model"
	"gigalert/internal/stats"
)

// slowAdapter sleeps during Fetch and tracks how many fetches are in
// flight at once.
type slowAdapter struct {
	delay      time.Duration
	inFlight   atomic.Int32
	maxSeen    atomic.Int32
	fetchCount atomic.Int32
}

func (s *slowAdapter) Name() string { return "slow" }

func (s *slowAdapter) Fetch(ctx context.Context, _ []string) ([]model.Job, error) {
	n := s.inFlight.Add(1)
	defer s.inFlight.Add(-1)
	for {
		prev := s.maxSeen.Load()
		if n <= prev || s.maxSeen.CompareAndSwap(prev, n) {
			break
		}
	}
	s.fetchCount.Add(1)

	select {
	case <-ctx.Done():
	case <-time.After(s.delay):
	}
	return nil, nil
}

func TestScheduler_RunsImmediatelyThenOnInterval(t *testing.T) {
	adapter := &slowAdapter{}
	r := makeRunner([]model.SourceAdapter{adapter}, &fakeDirectory{}, newMemStore(), newRecordingNotifier(), stats.NopSink{}, defaultOpts())
	s := NewScheduler(r, 20*time.Millisecond, "", discardLogger())

	ctx, cancel := context.WithTimeout(context.Background(), 110*time.Millisecond)
	defer cancel()
	if err := s.Run(ctx); err != nil {
		t.Fatalf("Run: %v", err)
	}

	// One immediate cycle plus a few ticks. Exact count depends on
	// timing; at least three proves the loop is ticking.
	if got := adapter.fetchCount.Load(); got < 3 {
		t.Errorf("fetch count = %d, want at least 3", got)
	}
}

func TestScheduler_CyclesNeverOverlap(t *testing.T) {
	// The cycle takes far longer than the interval; the loop must wait
	// for it instead of stacking runs.
	adapter := &slowAdapter{delay: 50 * time.Millisecond}
	r := makeRunner([]model.SourceAdapter{adapter}, &fakeDirectory{}, newMemStore(), newRecordingNotifier(), stats.NopSink{}, defaultOpts())
	s := NewScheduler(r, time.Millisecond, "", discardLogger())

	ctx, cancel := context.WithTimeout(context.Background(), 180*time.Millisecond)
	defer cancel()
	if err := s.Run(ctx); err != nil {
		t.Fatalf("Run: %v", err)
	}

	if got := adapter.maxSeen.Load(); got > 1 {
		t.Errorf("observed %d concurrent cycles, want at most 1", got)
	}
	if got := adapter.fetchCount.Load(); got < 2 {
		t.Errorf("fetch count = %d, want at least 2", got)
	}
}

func TestScheduler_InvalidCronSpec(t *testing.T) {
	r := makeRunner(nil, &fakeDirectory{}, newMemStore(), newRecordingNotifier(), stats.NopSink{}, defaultOpts())
	s := NewScheduler(r, time.Minute, "not a cron spec", discardLogger())

	if err := s.Run(context.Background()); err == nil {
		t.Fatal("expected an error for an unparsable cron spec")
	}
}

func TestScheduler_CycleFailureDoesNotStopLoop(t *testing.T) {
	// A directory outage fails individual cycles; the loop keeps going
	// and exits cleanly on cancellation.
	dir := &fakeDirectory{err: context.DeadlineExceeded}
	adapter := &slowAdapter{}
	r := makeRunner([]model.SourceAdapter{adapter}, dir, newMemStore(), newRecordingNotifier(), stats.NopSink{}, defaultOpts())
	s := NewScheduler(r, 10*time.Millisecond, "", discardLogger())

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	if err := s.Run(ctx); err != nil {
		t.Fatalf("Run: %v", err)
	}
}
