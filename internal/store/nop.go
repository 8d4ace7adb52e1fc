package store

import (
	"context"
	"time"
)

// NopStore is a no-op store used in check (dry-run) mode. Nothing is
// recorded, so every job appears new on each cycle.
type NopStore struct{}

func NewNopStore() *NopStore { return &NopStore{} }

func (s *NopStore) AlreadySent(context.Context, int64, string) (bool, error) { return false, nil }
func (s *NopStore) MarkSent(context.Context, int64, string) (bool, error)    { return true, nil }
func (s *NopStore) Prune(context.Context, time.Duration) error               { return nil }
