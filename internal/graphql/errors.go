package graphql

import (
	"fmt"
	"strings"
)

// TransportError means the exchange itself failed: the request never
// completed, or completed with a non-success status.
type TransportError struct {
	Status int   // HTTP status code, 0 when the request never completed
	Err    error // underlying cause
}

func (e *TransportError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("query transport failed with status %d: %v", e.Status, e.Err)
	}
	return fmt.Sprintf("query transport failed: %v", e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// ProtocolError means the exchange completed but the response carries
// application-level error messages. Partial data alongside errors is
// discarded, never surfaced.
type ProtocolError struct {
	Messages []string
}

func (e *ProtocolError) Error() string {
	return strings.Join(e.Messages, "; ")
}
