package memory

import (
	"context"
	"sort"
	"sync"

	"soroscan/internal/domain"
	"soroscan/internal/storage"
)

// EventStore is an in-memory implementation of storage.EventStore.
type EventStore struct {
	mu   sync.RWMutex
	data []*domain.ContractEvent
	ids  map[string]bool
}

// NewEventStore creates a new in-memory event store.
func NewEventStore() *EventStore {
	return &EventStore{
		data: make([]*domain.ContractEvent, 0),
		ids:  make(map[string]bool),
	}
}

// Compile-time interface check.
var _ storage.EventStore = (*EventStore)(nil)

// Insert adds one event. Returns ErrDuplicateKey if the event id exists.
func (s *EventStore) Insert(_ context.Context, e *domain.ContractEvent) error {
	if e == nil || e.ID == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.ids[e.ID] {
		return storage.ErrDuplicateKey
	}

	// Store a copy
	copy := *e
	s.data = append(s.data, &copy)
	s.ids[e.ID] = true

	return nil
}

// InsertBulk adds multiple events atomically. Fails the whole batch on any
// duplicate, existing or intra-batch.
func (s *EventStore) InsertBulk(_ context.Context, events []*domain.ContractEvent) error {
	if len(events) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	batch := make(map[string]bool)
	for _, e := range events {
		if e == nil || e.ID == "" {
			return storage.ErrInvalidInput
		}
		if s.ids[e.ID] || batch[e.ID] {
			return storage.ErrDuplicateKey
		}
		batch[e.ID] = true
	}

	for _, e := range events {
		copy := *e
		s.data = append(s.data, &copy)
		s.ids[e.ID] = true
	}

	return nil
}

// GetByFilter retrieves events matching the filter within [Since, Until],
// ordered by (timestamp, ledger_sequence, event_index) ascending.
func (s *EventStore) GetByFilter(_ context.Context, f storage.EventFilter) ([]*domain.ContractEvent, error) {
	types := make(map[string]bool, len(f.EventTypes))
	for _, t := range f.EventTypes {
		types[t] = true
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.ContractEvent
	for _, e := range s.data {
		if e.ContractID != f.ContractID {
			continue
		}
		if e.Timestamp.Before(f.Since) || e.Timestamp.After(f.Until) {
			continue
		}
		if len(types) > 0 && !types[e.EventType] {
			continue
		}
		copy := *e
		result = append(result, &copy)
	}

	sortEvents(result)

	return result, nil
}

// DistinctEventTypes returns the distinct event types for a contract,
// sorted ascending.
func (s *EventStore) DistinctEventTypes(_ context.Context, contractID string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	seen := make(map[string]bool)
	for _, e := range s.data {
		if e.ContractID == contractID {
			seen[e.EventType] = true
		}
	}

	result := make([]string, 0, len(seen))
	for t := range seen {
		result = append(result, t)
	}
	sort.Strings(result)

	return result, nil
}

// LatestLedger returns the highest ledger sequence stored for a contract.
func (s *EventStore) LatestLedger(_ context.Context, contractID string) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var latest int64
	for _, e := range s.data {
		if e.ContractID == contractID && e.LedgerSequence > latest {
			latest = e.LedgerSequence
		}
	}

	return latest, nil
}

// sortEvents sorts events by (timestamp, ledger_sequence, event_index).
func sortEvents(events []*domain.ContractEvent) {
	sort.Slice(events, func(i, j int) bool {
		if !events[i].Timestamp.Equal(events[j].Timestamp) {
			return events[i].Timestamp.Before(events[j].Timestamp)
		}
		if events[i].LedgerSequence != events[j].LedgerSequence {
			return events[i].LedgerSequence < events[j].LedgerSequence
		}
		return events[i].EventIndex < events[j].EventIndex
	})
}
