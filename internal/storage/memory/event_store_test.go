package memory

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"soroscan/internal/domain"
	"soroscan/internal/storage"
)

const testContract = "CAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAATEST"

func testEvent(id string, eventType string, ledger int64, index int, ts time.Time) *domain.ContractEvent {
	return &domain.ContractEvent{
		ID:             id,
		ContractID:     testContract,
		EventType:      eventType,
		Payload:        json.RawMessage(`{"v":1}`),
		PayloadHash:    "hash",
		LedgerSequence: ledger,
		EventIndex:     index,
		Timestamp:      ts,
		TxHash:         "tx-" + id,
	}
}

func TestEventStore_InsertDuplicate(t *testing.T) {
	store := NewEventStore()
	ctx := context.Background()
	now := time.Now().UTC()

	if err := store.Insert(ctx, testEvent("e1", "transfer", 100, 0, now)); err != nil {
		t.Fatalf("insert: %v", err)
	}
	if err := store.Insert(ctx, testEvent("e1", "transfer", 100, 0, now)); err != storage.ErrDuplicateKey {
		t.Errorf("expected ErrDuplicateKey, got %v", err)
	}
}

func TestEventStore_InsertBulkAtomic(t *testing.T) {
	store := NewEventStore()
	ctx := context.Background()
	now := time.Now().UTC()

	batch := []*domain.ContractEvent{
		testEvent("e1", "transfer", 100, 0, now),
		testEvent("e1", "transfer", 100, 1, now),
	}
	if err := store.InsertBulk(ctx, batch); err != storage.ErrDuplicateKey {
		t.Fatalf("expected ErrDuplicateKey for intra-batch duplicate, got %v", err)
	}

	// Nothing from the failed batch should be visible.
	events, err := store.GetByFilter(ctx, storage.EventFilter{
		ContractID: testContract,
		Since:      now.Add(-time.Hour),
		Until:      now.Add(time.Hour),
	})
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if len(events) != 0 {
		t.Errorf("expected empty store after failed batch, got %d events", len(events))
	}
}

func TestEventStore_GetByFilter_OrderAndBounds(t *testing.T) {
	store := NewEventStore()
	ctx := context.Background()
	base := time.Date(2024, 2, 19, 20, 0, 0, 0, time.UTC)

	// Inserted out of order on purpose.
	events := []*domain.ContractEvent{
		testEvent("e3", "transfer", 2002, 0, base.Add(6*time.Minute)),
		testEvent("e1", "transfer", 2000, 0, base.Add(1*time.Minute)),
		testEvent("e2", "approve", 2000, 1, base.Add(1*time.Minute)),
		testEvent("e4", "transfer", 2003, 0, base.Add(2*time.Hour)), // outside window
	}
	if err := store.InsertBulk(ctx, events); err != nil {
		t.Fatalf("insert bulk: %v", err)
	}

	got, err := store.GetByFilter(ctx, storage.EventFilter{
		ContractID: testContract,
		Since:      base,
		Until:      base.Add(10 * time.Minute),
	})
	if err != nil {
		t.Fatalf("get: %v", err)
	}

	wantIDs := []string{"e1", "e2", "e3"}
	if len(got) != len(wantIDs) {
		t.Fatalf("expected %d events, got %d", len(wantIDs), len(got))
	}
	for i, id := range wantIDs {
		if got[i].ID != id {
			t.Errorf("position %d: expected %s, got %s", i, id, got[i].ID)
		}
	}
}

func TestEventStore_GetByFilter_TypeFilter(t *testing.T) {
	store := NewEventStore()
	ctx := context.Background()
	now := time.Now().UTC()

	store.Insert(ctx, testEvent("e1", "transfer", 100, 0, now))
	store.Insert(ctx, testEvent("e2", "burn", 101, 0, now))

	got, err := store.GetByFilter(ctx, storage.EventFilter{
		ContractID: testContract,
		Since:      now.Add(-time.Hour),
		Until:      now.Add(time.Hour),
		EventTypes: []string{"transfer"},
	})
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if len(got) != 1 || got[0].EventType != "transfer" {
		t.Errorf("expected only transfer events, got %v", got)
	}
}

func TestEventStore_DistinctEventTypes(t *testing.T) {
	store := NewEventStore()
	ctx := context.Background()
	now := time.Now().UTC()

	store.Insert(ctx, testEvent("e1", "transfer", 100, 0, now))
	store.Insert(ctx, testEvent("e2", "transfer", 101, 0, now))
	store.Insert(ctx, testEvent("e3", "burn", 102, 0, now))

	types, err := store.DistinctEventTypes(ctx, testContract)
	if err != nil {
		t.Fatalf("distinct: %v", err)
	}
	if len(types) != 2 || types[0] != "burn" || types[1] != "transfer" {
		t.Errorf("expected [burn transfer], got %v", types)
	}
}

func TestEventStore_LatestLedger(t *testing.T) {
	store := NewEventStore()
	ctx := context.Background()
	now := time.Now().UTC()

	latest, err := store.LatestLedger(ctx, testContract)
	if err != nil {
		t.Fatalf("latest: %v", err)
	}
	if latest != 0 {
		t.Errorf("expected 0 for empty store, got %d", latest)
	}

	store.Insert(ctx, testEvent("e1", "transfer", 100, 0, now))
	store.Insert(ctx, testEvent("e2", "transfer", 205, 0, now))

	latest, err = store.LatestLedger(ctx, testContract)
	if err != nil {
		t.Fatalf("latest: %v", err)
	}
	if latest != 205 {
		t.Errorf("expected 205, got %d", latest)
	}
}
