package idhash

import (
	"crypto/sha256"
	"fmt"

	"github.com/mr-tron/base58"
)

// ComputeEventID computes a deterministic event id using SHA256.
// Formula: SHA256(contract_id|event_type|tx_hash|event_index|ledger)
// Returns the base58-encoded hash.
func ComputeEventID(contractID, eventType, txHash string, eventIndex int, ledger int64) string {
	data := fmt.Sprintf("%s|%s|%s|%d|%d",
		contractID,
		eventType,
		txHash,
		eventIndex,
		ledger,
	)

	hash := sha256.Sum256([]byte(data))
	return base58.Encode(hash[:])
}

// ComputePayloadHash computes the base58-encoded SHA256 of a raw payload.
// Used to detect payload mutation across re-ingestion of the same event.
func ComputePayloadHash(payload []byte) string {
	hash := sha256.Sum256(payload)
	return base58.Encode(hash[:])
}
