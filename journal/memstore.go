package journal

import (
	"context"
	"sort"
	"sync"

	"github.com/axon-labs/soma"
)

// MemEventStore is a thread-safe in-memory event store.
type MemEventStore struct {
	mu     sync.RWMutex
	events map[string][]soma.Event // runID -> events
}

// NewMemEventStore creates a new in-memory event store.
func NewMemEventStore() *MemEventStore {
	return &MemEventStore{
		events: make(map[string][]soma.Event),
	}
}

func (s *MemEventStore) Append(_ context.Context, event soma.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events[event.RunID] = append(s.events[event.RunID], event)
	return nil
}

func (s *MemEventStore) List(_ context.Context, runID string, afterSeq uint64, limit int) ([]soma.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []soma.Event
	for _, e := range s.events[runID] {
		if afterSeq > 0 && e.Seq <= afterSeq {
			continue
		}
		result = append(result, e)
	}
	// Events may be appended out of sequence order by concurrent handlers.
	sort.SliceStable(result, func(i, j int) bool { return result[i].Seq < result[j].Seq })
	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

func (s *MemEventStore) LatestSeq(_ context.Context, runID string) (uint64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var maxSeq uint64
	for _, e := range s.events[runID] {
		if e.Seq > maxSeq {
			maxSeq = e.Seq
		}
	}
	return maxSeq, nil
}

// Close is a no-op for the in-memory store.
func (s *MemEventStore) Close() error {
	return nil
}

// Compile-time interface check.
var _ EventStore = (*MemEventStore)(nil)
