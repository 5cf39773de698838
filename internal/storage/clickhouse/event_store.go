package clickhouse

import (
	"context"
	"fmt"
	"time"

	"soroscan/internal/domain"
	"soroscan/internal/storage"
)

// EventStore implements storage.EventStore using ClickHouse. It backs the
// archive copy of the event log: duplicate ids are absorbed by the
// ReplacingMergeTree engine instead of being reported, so Insert and
// InsertBulk never return ErrDuplicateKey.
type EventStore struct {
	conn *Conn
}

// NewEventStore creates a new EventStore.
func NewEventStore(conn *Conn) *EventStore {
	return &EventStore{conn: conn}
}

// Compile-time interface check.
var _ storage.EventStore = (*EventStore)(nil)

// Insert adds one event. Re-inserting an id is a no-op after merges.
func (s *EventStore) Insert(ctx context.Context, e *domain.ContractEvent) error {
	return s.InsertBulk(ctx, []*domain.ContractEvent{e})
}

// InsertBulk adds multiple events in one batch.
func (s *EventStore) InsertBulk(ctx context.Context, events []*domain.ContractEvent) error {
	if len(events) == 0 {
		return nil
	}

	batch, err := s.conn.PrepareBatch(ctx, `
		INSERT INTO contract_events (
			id, contract_id, event_type, payload, payload_hash,
			ledger_sequence, event_index, timestamp, tx_hash
		)
	`)
	if err != nil {
		return fmt.Errorf("prepare batch: %w", err)
	}

	for _, e := range events {
		err = batch.Append(
			e.ID, e.ContractID, e.EventType, string(e.Payload), e.PayloadHash,
			e.LedgerSequence, int32(e.EventIndex), e.Timestamp, e.TxHash,
		)
		if err != nil {
			return fmt.Errorf("append to batch: %w", err)
		}
	}

	if err := batch.Send(); err != nil {
		return fmt.Errorf("send batch: %w", err)
	}

	return nil
}

// GetByFilter retrieves events within [Since, Until], optionally narrowed
// by type, ordered by (timestamp, ledger_sequence, event_index). FINAL
// collapses rows that merges have not deduplicated yet.
func (s *EventStore) GetByFilter(ctx context.Context, f storage.EventFilter) ([]*domain.ContractEvent, error) {
	query := `
		SELECT id, contract_id, event_type, payload, payload_hash,
		       ledger_sequence, event_index, timestamp, tx_hash
		FROM contract_events FINAL
		WHERE contract_id = ? AND timestamp >= ? AND timestamp <= ?
	`
	args := []any{f.ContractID, f.Since, f.Until}

	if len(f.EventTypes) > 0 {
		query += ` AND event_type IN (?)`
		args = append(args, f.EventTypes)
	}
	query += ` ORDER BY timestamp ASC, ledger_sequence ASC, event_index ASC`

	rows, err := s.conn.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("get events by filter: %w", err)
	}
	defer rows.Close()

	var events []*domain.ContractEvent
	for rows.Next() {
		var (
			e       domain.ContractEvent
			payload string
			index   int32
			ts      time.Time
		)
		err := rows.Scan(
			&e.ID, &e.ContractID, &e.EventType, &payload, &e.PayloadHash,
			&e.LedgerSequence, &index, &ts, &e.TxHash,
		)
		if err != nil {
			return nil, fmt.Errorf("scan contract event: %w", err)
		}
		e.Payload = []byte(payload)
		e.EventIndex = int(index)
		e.Timestamp = ts
		events = append(events, &e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate contract events: %w", err)
	}
	return events, nil
}

// DistinctEventTypes returns the distinct event types for a contract, sorted.
func (s *EventStore) DistinctEventTypes(ctx context.Context, contractID string) ([]string, error) {
	query := `
		SELECT DISTINCT event_type
		FROM contract_events
		WHERE contract_id = ?
		ORDER BY event_type ASC
	`

	rows, err := s.conn.Query(ctx, query, contractID)
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
		WHERE contract_id = ?
	`

	var ledger int64
	if err := s.conn.QueryRow(ctx, query, contractID).Scan(&ledger); err != nil {
		return 0, fmt.Errorf("get latest ledger: %w", err)
	}
	return ledger, nil
}
