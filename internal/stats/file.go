package stats

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
)

// FileSink writes the snapshot as pretty-printed JSON. The write goes
// to a temp file first and is renamed into place so readers never see a
// half-written snapshot.
type FileSink struct {
	path string
}

// NewFileSink publishes snapshots to the given path.
func NewFileSink(path string) *FileSink {
	return &FileSink{path: path}
}

func (f *FileSink) Publish(_ context.Context, s *CycleStats) error {
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal cycle stats: %w", err)
	}

	tmp := f.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("write cycle stats: %w", err)
	}
	if err := os.Rename(tmp, f.path); err != nil {
		return fmt.Errorf("replace cycle stats: %w", err)
	}
	return nil
}

// Read loads the last published snapshot from path. Missing file yields
// an empty snapshot, matching "no cycle has completed yet".
func Read(path string) (*CycleStats, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return NewCycleStats(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("read cycle stats: %w", err)
	}

	var s CycleStats
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("parse cycle stats: %w", err)
	}
	if s.Feeds == nil {
		s.Feeds = make(map[string]FeedStats)
	}
	return &s, nil
}
