package memory

import (
	"context"
	"sort"
	"sync"

	"soroscan/internal/domain"
	"soroscan/internal/storage"
)

// ContractStore is an in-memory implementation of storage.ContractStore.
type ContractStore struct {
	mu   sync.RWMutex
	data map[string]*domain.Contract
}

// NewContractStore creates a new in-memory contract store.
func NewContractStore() *ContractStore {
	return &ContractStore{
		data: make(map[string]*domain.Contract),
	}
}

// Compile-time interface check.
var _ storage.ContractStore = (*ContractStore)(nil)

// Put registers a contract. Returns ErrDuplicateKey if it exists.
func (s *ContractStore) Put(_ context.Context, c *domain.Contract) error {
	if c == nil || c.ContractID == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.data[c.ContractID]; exists {
		return storage.ErrDuplicateKey
	}

	copy := *c
	s.data[c.ContractID] = &copy

	return nil
}

// Get returns a contract by id. Returns ErrNotFound when absent.
func (s *ContractStore) Get(_ context.Context, contractID string) (*domain.Contract, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.data[contractID]
	if !ok {
		return nil, storage.ErrNotFound
	}

	copy := *c
	return &copy, nil
}

// ListActive returns all active contracts ordered by contract id.
func (s *ContractStore) ListActive(_ context.Context) ([]*domain.Contract, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.Contract
	for _, c := range s.data {
		if c.IsActive {
			copy := *c
			result = append(result, &copy)
		}
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].ContractID < result[j].ContractID
	})

	return result, nil
}
