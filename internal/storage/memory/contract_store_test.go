package memory

import (
	"context"
	"testing"
	"time"

	"soroscan/internal/domain"
	"soroscan/internal/storage"
)

func TestContractStore_PutGet(t *testing.T) {
	store := NewContractStore()
	ctx := context.Background()

	c := &domain.Contract{
		ContractID: "CTEST",
		Name:       "token",
		IsActive:   true,
		CreatedAt:  time.Now().UTC(),
	}
	if err := store.Put(ctx, c); err != nil {
		t.Fatalf("put: %v", err)
	}
	if err := store.Put(ctx, c); err != storage.ErrDuplicateKey {
		t.Errorf("expected ErrDuplicateKey, got %v", err)
	}

	got, err := store.Get(ctx, "CTEST")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Name != "token" {
		t.Errorf("expected name token, got %s", got.Name)
	}

	if _, err := store.Get(ctx, "CMISSING"); err != storage.ErrNotFound {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestContractStore_ListActive(t *testing.T) {
	store := NewContractStore()
	ctx := context.Background()

	store.Put(ctx, &domain.Contract{ContractID: "CBBB", Name: "b", IsActive: true})
	store.Put(ctx, &domain.Contract{ContractID: "CAAA", Name: "a", IsActive: true})
	store.Put(ctx, &domain.Contract{ContractID: "CCCC", Name: "c", IsActive: false})

	active, err := store.ListActive(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(active) != 2 {
		t.Fatalf("expected 2 active contracts, got %d", len(active))
	}
	if active[0].ContractID != "CAAA" || active[1].ContractID != "CBBB" {
		t.Errorf("expected sorted [CAAA CBBB], got [%s %s]", active[0].ContractID, active[1].ContractID)
	}
}
