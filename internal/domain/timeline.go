package domain

import (
	"encoding/json"
	"fmt"
	"time"
)

// BucketSize is a timeline aggregation granularity. The set is closed and
// ordered coarsest to finest; the ordinal position drives zoom in/out.
type BucketSize int

const (
	BucketOneDay BucketSize = iota
	BucketOneHour
	BucketThirtyMinutes
	BucketFiveMinutes
)

// BucketSizes lists all granularities coarsest to finest. Zoom state is an
// index into this slice.
var BucketSizes = []BucketSize{
	BucketOneDay,
	BucketOneHour,
	BucketThirtyMinutes,
	BucketFiveMinutes,
}

// DefaultBucketIndex points at the second-finest granularity, a deliberate
// default of moderate detail.
var DefaultBucketIndex = len(BucketSizes) - 2

// Seconds returns the bucket span in seconds.
func (b BucketSize) Seconds() int {
	switch b {
	case BucketOneDay:
		return 86_400
	case BucketOneHour:
		return 3_600
	case BucketThirtyMinutes:
		return 1_800
	case BucketFiveMinutes:
		return 300
	default:
		return 0
	}
}

// Duration returns the bucket span as a time.Duration.
func (b BucketSize) Duration() time.Duration {
	return time.Duration(b.Seconds()) * time.Second
}

// String returns the wire form of the bucket size.
func (b BucketSize) String() string {
	switch b {
	case BucketOneDay:
		return "ONE_DAY"
	case BucketOneHour:
		return "ONE_HOUR"
	case BucketThirtyMinutes:
		return "THIRTY_MINUTES"
	case BucketFiveMinutes:
		return "FIVE_MINUTES"
	default:
		return fmt.Sprintf("BucketSize(%d)", int(b))
	}
}

// ParseBucketSize parses the wire form of a bucket size.
func ParseBucketSize(s string) (BucketSize, error) {
	for _, b := range BucketSizes {
		if b.String() == s {
			return b, nil
		}
	}
	return 0, fmt.Errorf("unknown bucket size %q", s)
}

// MarshalJSON encodes the bucket size as its wire string.
func (b BucketSize) MarshalJSON() ([]byte, error) {
	return json.Marshal(b.String())
}

// UnmarshalJSON decodes the bucket size from its wire string.
func (b *BucketSize) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := ParseBucketSize(s)
	if err != nil {
		return err
	}
	*b = parsed
	return nil
}

// TimelineRequest describes one timeline query. An empty EventTypes slice
// means no filter: absence and "all types" are the same state, and the
// request must never carry an empty set meaning "match nothing".
type TimelineRequest struct {
	ContractID    string
	BucketSize    BucketSize
	EventTypes    []string
	Timezone      string
	IncludeEvents bool
	GroupLimit    int
}

// TypeCount is the per-type count summary inside a timeline group.
type TypeCount struct {
	EventType string `json:"eventType"`
	Count     int    `json:"count"`
}

// EventDetail is the raw per-event record underlying a group's counts.
type EventDetail struct {
	ID             string          `json:"id"`
	EventType      string          `json:"eventType"`
	LedgerSequence int64           `json:"ledgerSequence"`
	EventIndex     int             `json:"eventIndex"`
	Timestamp      time.Time       `json:"timestamp"`
	TxHash         string          `json:"txHash"`
	Payload        json.RawMessage `json:"payload"`
}

// Group is the aggregated result for one bucket window. EventCount equals
// the sum of TypeCounts when TypeCounts is non-empty; when empty the group
// carries an uncategorized total. Events is populated only when the request
// asked for detail, and the backend may cap it below EventCount.
type Group struct {
	Start      time.Time     `json:"start"`
	End        time.Time     `json:"end"`
	EventCount int           `json:"eventCount"`
	TypeCounts []TypeCount   `json:"typeCounts"`
	Events     []EventDetail `json:"events,omitempty"`
}

// TimelineResult is a timeline query result. Groups ascend by start time;
// that order is a rendering and export invariant.
type TimelineResult struct {
	ContractID  string     `json:"contractId"`
	BucketSize  BucketSize `json:"bucketSize"`
	WindowStart time.Time  `json:"windowStart"`
	WindowEnd   time.Time  `json:"windowEnd"`
	TotalEvents int        `json:"totalEvents"`
	Groups      []Group    `json:"groups"`
}
