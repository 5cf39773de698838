package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"soroscan/internal/domain"
	"soroscan/internal/storage"
)

// EventStore implements storage.EventStore using PostgreSQL.
type EventStore struct {
	pool *Pool
}

// NewEventStore creates a new EventStore.
func NewEventStore(pool *Pool) *EventStore {
	return &EventStore{pool: pool}
}

// Compile-time interface check.
var _ storage.EventStore = (*EventStore)(nil)

const eventColumns = `
	id, contract_id, event_type, payload, payload_hash,
	ledger_sequence, event_index, timestamp, tx_hash
`

// Insert adds a new contract event. Returns ErrDuplicateKey if the id exists.
func (s *EventStore) Insert(ctx context.Context, e *domain.ContractEvent) error {
	query := `
		INSERT INTO contract_events (` + eventColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`

	_, err := s.pool.Exec(ctx, query,
		e.ID,
		e.ContractID,
		e.EventType,
		e.Payload,
		e.PayloadHash,
		e.LedgerSequence,
		e.EventIndex,
		e.Timestamp,
		e.TxHash,
	)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("insert contract event: %w", err)
	}
	return nil
}

// InsertBulk adds multiple events atomically. Fails entire batch on any duplicate.
func (s *EventStore) InsertBulk(ctx context.Context, events []*domain.ContractEvent) error {
	if len(events) == 0 {
		return nil
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	query := `
		INSERT INTO contract_events (` + eventColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`

	for _, e := range events {
		_, err := tx.Exec(ctx, query,
			e.ID,
			e.ContractID,
			e.EventType,
			e.Payload,
			e.PayloadHash,
			e.LedgerSequence,
			e.EventIndex,
			e.Timestamp,
			e.TxHash,
		)
		if err != nil {
			if isDuplicateKeyError(err) {
				return storage.ErrDuplicateKey
			}
			return fmt.Errorf("insert contract event in bulk: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}

	return nil
}

// GetByFilter retrieves events within [Since, Until], optionally narrowed
// by type, ordered by (timestamp, ledger_sequence, event_index).
func (s *EventStore) GetByFilter(ctx context.Context, f storage.EventFilter) ([]*domain.ContractEvent, error) {
	query := `
		SELECT ` + eventColumns + `
		FROM contract_events
		WHERE contract_id = $1 AND timestamp >= $2 AND timestamp <= $3
	`
	args := []any{f.ContractID, f.Since, f.Until}

	if len(f.EventTypes) > 0 {
		query += ` AND event_type = ANY($4)`
		args = append(args, f.EventTypes)
	}
	query += ` ORDER BY timestamp ASC, ledger_sequence ASC, event_index ASC`

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("get events by filter: %w", err)
	}
	defer rows.Close()

	return scanEvents(rows)
}

// DistinctEventTypes returns the distinct event types for a contract, sorted.
func (s *EventStore) DistinctEventTypes(ctx context.Context, contractID string) ([]string, error) {
	query := `
		SELECT DISTINCT event_type
		FROM contract_events
		WHERE contract_id = $1
		ORDER BY event_type ASC
	`

	rows, err := s.pool.Query(ctx, query, contractID)
	if err != nil {
		return nil, fmt.Errorf("get distinct event types: %w", err)
	}
	defer rows.Close()

	var types []string
	for rows.Next() {
		var t string
		if err := rows.Scan(&t); err != nil {
			return nil, fmt.Errorf("scan event type: %w", err)
		}
		types = append(types, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate event types: %w", err)
	}
	return types, nil
}

// LatestLedger returns the highest stored ledger sequence, or 0 when the
// contract has no events yet.
func (s *EventStore) LatestLedger(ctx context.Context, contractID string) (int64, error) {
	query := `
		SELECT COALESCE(MAX(ledger_sequence), 0)
		FROM contract_events
		WHERE contract_id = $1
	`

	var ledger int64
	if err := s.pool.QueryRow(ctx, query, contractID).Scan(&ledger); err != nil {
		return 0, fmt.Errorf("get latest ledger: %w", err)
	}
	return ledger, nil
}

// scanEvents converts query rows to domain events.
func scanEvents(rows pgx.Rows) ([]*domain.ContractEvent, error) {
	var events []*domain.ContractEvent
	for rows.Next() {
		var e domain.ContractEvent
		err := rows.Scan(
			&e.ID,
			&e.ContractID,
			&e.EventType,
			&e.Payload,
			&e.PayloadHash,
			&e.LedgerSequence,
			&e.EventIndex,
			&e.Timestamp,
			&e.TxHash,
		)
		if err != nil {
			return nil, fmt.Errorf("scan contract event: %w", err)
		}
		events = append(events, &e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate contract events: %w", err)
	}
	return events, nil
}
