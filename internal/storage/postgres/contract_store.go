package postgres

import (
	"context"
	"fmt"

	"soroscan/internal/domain"
	"soroscan/internal/storage"
)

// ContractStore implements storage.ContractStore using PostgreSQL.
type ContractStore struct {
	pool *Pool
}

// NewContractStore creates a new ContractStore.
func NewContractStore(pool *Pool) *ContractStore {
	return &ContractStore{pool: pool}
}

// Compile-time interface check.
var _ storage.ContractStore = (*ContractStore)(nil)

// Put registers a contract. Returns ErrDuplicateKey if it already exists.
func (s *ContractStore) Put(ctx context.Context, c *domain.Contract) error {
	query := `
		INSERT INTO contracts (contract_id, name, description, is_active, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`

	_, err := s.pool.Exec(ctx, query,
		c.ContractID,
		c.Name,
		c.Description,
		c.IsActive,
		c.CreatedAt,
	)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("insert contract: %w", err)
	}
	return nil
}

// Get returns a contract by id. Returns ErrNotFound when absent.
func (s *ContractStore) Get(ctx context.Context, contractID string) (*domain.Contract, error) {
	query := `
		SELECT contract_id, name, description, is_active, created_at
		FROM contracts
		WHERE contract_id = $1
	`

	var c domain.Contract
	err := s.pool.QueryRow(ctx, query, contractID).Scan(
		&c.ContractID,
		&c.Name,
		&c.Description,
		&c.IsActive,
		&c.CreatedAt,
	)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get contract: %w", err)
	}
	return &c, nil
}

// ListActive returns all active contracts ordered by contract id.
func (s *ContractStore) ListActive(ctx context.Context) ([]*domain.Contract, error) {
	query := `
		SELECT contract_id, name, description, is_active, created_at
		FROM contracts
		WHERE is_active
		ORDER BY contract_id ASC
	`

	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list active contracts: %w", err)
	}
	defer rows.Close()

	var contracts []*domain.Contract
	for rows.Next() {
		var c domain.Contract
		err := rows.Scan(
			&c.ContractID,
			&c.Name,
			&c.Description,
			&c.IsActive,
			&c.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan contract: %w", err)
		}
		contracts = append(contracts, &c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate contracts: %w", err)
	}
	return contracts, nil
}
