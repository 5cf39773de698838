package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"soroscan/internal/domain"
	"soroscan/internal/storage"
)

func TestContractStore_PutAndGet(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewContractStore(pool)
	ctx := context.Background()

	c := &domain.Contract{
		ContractID:  "CCREGISTRY00000000000000000000000000000000000000000000",
		Name:        "token contract",
		Description: "asset transfers",
		IsActive:    true,
		CreatedAt:   time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
	}
	require.NoError(t, store.Put(ctx, c))

	got, err := store.Get(ctx, c.ContractID)
	require.NoError(t, err)
	assert.Equal(t, c.ContractID, got.ContractID)
	assert.Equal(t, c.Name, got.Name)
	assert.Equal(t, c.Description, got.Description)
	assert.True(t, got.IsActive)
}

func TestContractStore_PutDuplicate(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewContractStore(pool)
	ctx := context.Background()

	c := &domain.Contract{ContractID: "CCDUP", IsActive: true, CreatedAt: time.Now()}
	require.NoError(t, store.Put(ctx, c))
	assert.ErrorIs(t, store.Put(ctx, c), storage.ErrDuplicateKey)
}

func TestContractStore_GetMissing(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewContractStore(pool)
	_, err := store.Get(context.Background(), "CCMISSING")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestContractStore_ListActive(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewContractStore(pool)
	ctx := context.Background()
	now := time.Now().UTC()

	require.NoError(t, store.Put(ctx, &domain.Contract{ContractID: "CCB", IsActive: true, CreatedAt: now}))
	require.NoError(t, store.Put(ctx, &domain.Contract{ContractID: "CCA", IsActive: true, CreatedAt: now}))
	require.NoError(t, store.Put(ctx, &domain.Contract{ContractID: "CCRETIRED", IsActive: false, CreatedAt: now}))

	active, err := store.ListActive(ctx)
	require.NoError(t, err)
	require.Len(t, active, 2)
	assert.Equal(t, "CCA", active[0].ContractID)
	assert.Equal(t, "CCB", active[1].ContractID)
}
