package domain

import "time"

// Contract represents a Soroban contract tracked for event indexing.
type Contract struct {
	ContractID  string    `json:"contractId"` // strkey contract address (C...)
	Name        string    `json:"name"`       // human-readable label
	Description string    `json:"description"`
	IsActive    bool      `json:"isActive"` // inactive contracts are skipped by ingest
	CreatedAt   time.Time `json:"createdAt"`
}
