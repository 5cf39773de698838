// Package render transforms a fetched timeline into a renderable tree.
// The transformation is pure; a presentation adapter maps the tree onto
// whatever display the host uses.
package render

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"soroscan/internal/domain"
)

// Fixed markers used in rendered output.
const (
	BranchMiddle = "├─"
	BranchLast   = "└─"

	NoTypesMarker       = "no categorized events"
	EmptyTimelineText   = "No events in the selected window."
	EmptyDetailText     = "No event detail available for this window."
	MissingHashText     = "-"
	maxPayloadLen       = 180
)

// Time layouts per bucket granularity.
const (
	dayLayout  = "2006-01-02"
	timeLayout = "2006-01-02 15:04"
)

// Tree is the renderable form of one timeline.
type Tree struct {
	Placeholder string // set instead of Groups when the timeline is empty
	Groups      []GroupNode
}

// GroupNode is one bucket window header with optional detail rows.
type GroupNode struct {
	Key               int64  // group start, unix seconds; expansion key
	Branch            string // BranchMiddle, or BranchLast for the final group
	TimeRange         string
	Summary           string // per-type counts, or NoTypesMarker
	Total             string // e.g. "3 events"
	Expanded          bool
	Details           []DetailRow
	DetailPlaceholder string // set when expanded with zero detail events
}

// DetailRow is one raw event line under an expanded group.
type DetailRow struct {
	Timestamp string
	EventType string
	Ledger    int64
	TxHash    string
	Payload   string
}

// Build produces the render tree for a timeline and expansion state.
// Groups keep their given ascending order; detail rows keep their given
// order. Identical inputs produce structurally identical trees.
func Build(result *domain.TimelineResult, expanded map[int64]struct{}, loc *time.Location) *Tree {
	if loc == nil {
		loc = time.UTC
	}

	if result == nil || len(result.Groups) == 0 {
		return &Tree{Placeholder: EmptyTimelineText}
	}

	tree := &Tree{Groups: make([]GroupNode, 0, len(result.Groups))}
	for i, g := range result.Groups {
		branch := BranchMiddle
		if i == len(result.Groups)-1 {
			branch = BranchLast
		}

		key := g.Start.Unix()
		node := GroupNode{
			Key:       key,
			Branch:    branch,
			TimeRange: formatRange(g.Start, g.End, result.BucketSize, loc),
			Summary:   typeSummary(g.TypeCounts),
			Total:     eventTotal(g.EventCount),
		}

		if _, ok := expanded[key]; ok {
			node.Expanded = true
			if len(g.Events) == 0 {
				node.DetailPlaceholder = EmptyDetailText
			} else {
				node.Details = make([]DetailRow, 0, len(g.Events))
				for _, e := range g.Events {
					node.Details = append(node.Details, DetailRow{
						Timestamp: e.Timestamp.In(loc).Format(timeLayout),
						EventType: e.EventType,
						Ledger:    e.LedgerSequence,
						TxHash:    ShortHash(e.TxHash),
						Payload:   formatPayload(e.Payload),
					})
				}
			}
		}

		tree.Groups = append(tree.Groups, node)
	}

	return tree
}

// formatRange renders a group's window in the caller's timezone, date-only
// for day buckets and date-and-time otherwise.
func formatRange(start, end time.Time, bucket domain.BucketSize, loc *time.Location) string {
	layout := timeLayout
	if bucket == domain.BucketOneDay {
		layout = dayLayout
	}
	return start.In(loc).Format(layout) + " - " + end.In(loc).Format(layout)
}

// typeSummary renders per-type counts in their given order.
func typeSummary(counts []domain.TypeCount) string {
	if len(counts) == 0 {
		return NoTypesMarker
	}
	parts := make([]string, 0, len(counts))
	for _, tc := range counts {
		parts = append(parts, fmt.Sprintf("[%s] %d", tc.EventType, tc.Count))
	}
	return strings.Join(parts, ", ")
}

func eventTotal(count int) string {
	if count == 1 {
		return "1 event"
	}
	return fmt.Sprintf("%d events", count)
}

// ShortHash shortens a transaction hash to its first 8 and last 6
// characters joined by an ellipsis. Hashes under 14 characters pass
// through verbatim; missing hashes get a placeholder.
func ShortHash(hash string) string {
	if hash == "" {
		return MissingHashText
	}
	if len(hash) < 14 {
		return hash
	}
	return hash[:8] + "..." + hash[len(hash)-6:]
}

// formatPayload renders an opaque payload compactly, capped at 180
// characters: the full serialization when it fits, else the first 177
// characters plus an ellipsis marker. Payloads are opaque, so malformed
// JSON passes through untouched.
func formatPayload(raw json.RawMessage) string {
	if len(raw) == 0 {
		return "null"
	}

	s := string(raw)
	var buf bytes.Buffer
	if err := json.Compact(&buf, raw); err == nil {
		s = buf.String()
	}

	if len(s) <= maxPayloadLen {
		return s
	}
	// Back up to a rune boundary so a multibyte character is never split.
	cut := maxPayloadLen - 3
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + "..."
}
