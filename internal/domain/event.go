package domain

import (
	"encoding/json"
	"time"
)

// ContractEvent is a stored contract event row.
// Payload is opaque structured data; it is never validated, only passed
// through for display and export.
type ContractEvent struct {
	ID             string          // deterministic hash, see idhash
	ContractID     string          // strkey contract address
	EventType      string          // event classification from the topic
	Payload        json.RawMessage // opaque event body
	PayloadHash    string          // base58(sha256(payload))
	LedgerSequence int64           // ledger the event was emitted in
	EventIndex     int             // position within the ledger
	Timestamp      time.Time       // ledger close time
	TxHash         string          // emitting transaction hash
}

// Detail converts a stored event into its wire/display form.
func (e *ContractEvent) Detail() EventDetail {
	return EventDetail{
		ID:             e.ID,
		EventType:      e.EventType,
		LedgerSequence: e.LedgerSequence,
		EventIndex:     e.EventIndex,
		Timestamp:      e.Timestamp,
		TxHash:         e.TxHash,
		Payload:        e.Payload,
	}
}
