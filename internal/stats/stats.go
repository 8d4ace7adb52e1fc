// Package stats publishes per-cycle counters for operator reporting.
// Each cycle's snapshot overwrites the previous one; no history is kept
// here.
package stats

import "context"

// FeedStats holds the per-source outcome of one cycle.
type FeedStats struct {
	Count int    `json:"count"`
	Error string `json:"error,omitempty"`
}

// CycleStats is the snapshot published at the end of every cycle.
type CycleStats struct {
	CycleSeconds  float64              `json:"cycle_seconds"`
	SentThisCycle int                  `json:"sent_this_cycle"`
	Feeds         map[string]FeedStats `json:"feeds"`
}

// NewCycleStats returns an empty snapshot ready to be filled in.
func NewCycleStats() *CycleStats {
	return &CycleStats{Feeds: make(map[string]FeedStats)}
}

// Sink receives the finalized snapshot of a cycle.
type Sink interface {
	Publish(ctx context.Context, s *CycleStats) error
}

// MultiSink fans a snapshot out to several sinks. Publish failures are
// collected per sink by the caller's logger; the first error is
// returned after all sinks have been attempted.
type MultiSink []Sink

func (m MultiSink) Publish(ctx context.Context, s *CycleStats) error {
	var firstErr error
	for _, sink := range m {
		if err := sink.Publish(ctx, s); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// NopSink discards snapshots. Used in check mode.
type NopSink struct{}

func (NopSink) Publish(context.Context, *CycleStats) error { return nil }
