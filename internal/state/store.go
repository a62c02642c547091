package state

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/angeloszaimis/uptime-tracker/internal/service"
)

var (
	ErrNotReady        = errors.New("state store is empty, retry later")
	ErrIndexOutOfRange = errors.New("state store index out of range")
)

// PollInterval is how often WaitSnapshot rechecks an empty store.
const PollInterval = 100 * time.Millisecond

type Store struct {
	mu      sync.RWMutex
	records []service.Record
}

func New() *Store {
	return &Store{}
}

// Snapshot returns a copy of the current records.
func (s *Store) Snapshot() ([]service.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if len(s.records) == 0 {
		return nil, ErrNotReady
	}

	out := make([]service.Record, len(s.records))
	copy(out, s.records)
	return out, nil
}

// Len returns the number of tracked records.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}

// ReplaceAll swaps in a new record set.
func (s *Store) ReplaceAll(records []service.Record) {
	next := make([]service.Record, len(records))
	copy(next, records)

	s.mu.Lock()
	s.records = next
	s.mu.Unlock()
}

// UpdateAt overwrites the record at index i.
func (s *Store) UpdateAt(i int, rec service.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if i < 0 || i >= len(s.records) {
		return fmt.Errorf("update %d of %d: %w", i, len(s.records), ErrIndexOutOfRange)
	}

	s.records[i] = rec
	return nil
}

// WaitSnapshot polls until the store is non-empty or ctx is done.
func (s *Store) WaitSnapshot(ctx context.Context) ([]service.Record, error) {
	ticker := time.NewTicker(PollInterval)
	defer ticker.Stop()

	for {
		records, err := s.Snapshot()
		if err == nil {
			return records, nil
		}

		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("wait for snapshot: %w", errors.Join(ErrNotReady, ctx.Err()))
		case <-ticker.C:
		}
	}
}
