package storage

import (
	"context"
	"time"

	"soroscan/internal/domain"
)

// EventFilter selects events for timeline queries.
// An empty EventTypes slice means no type filter.
type EventFilter struct {
	ContractID string
	Since      time.Time
	Until      time.Time
	EventTypes []string
}

// EventStore persists contract events.
type EventStore interface {
	// Insert adds one event. Returns ErrDuplicateKey if the event id exists.
	Insert(ctx context.Context, e *domain.ContractEvent) error

	// InsertBulk adds multiple events atomically. Fails the whole batch
	// on any duplicate.
	InsertBulk(ctx context.Context, events []*domain.ContractEvent) error

	// GetByFilter retrieves events matching the filter within
	// [Since, Until], ordered by (timestamp, ledger_sequence, event_index)
	// ascending.
	GetByFilter(ctx context.Context, f EventFilter) ([]*domain.ContractEvent, error)

	// DistinctEventTypes returns the distinct event types observed for a
	// contract, sorted ascending.
	DistinctEventTypes(ctx context.Context, contractID string) ([]string, error)

	// LatestLedger returns the highest ledger sequence stored for a
	// contract, or 0 when none. Used as the ingest cursor.
	LatestLedger(ctx context.Context, contractID string) (int64, error)
}

// ContractStore persists the tracked contract registry.
type ContractStore interface {
	// Put registers a contract. Returns ErrDuplicateKey if it exists.
	Put(ctx context.Context, c *domain.Contract) error

	// Get returns a contract by id. Returns ErrNotFound when absent.
	Get(ctx context.Context, contractID string) (*domain.Contract, error)

	// ListActive returns all active contracts ordered by contract id.
	ListActive(ctx context.Context) ([]*domain.Contract, error)
}
