// Package export serializes a loaded timeline into interchange formats.
// Encoders operate on the in-memory result the renderer used; they never
// re-fetch.
package export

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"soroscan/internal/domain"
)

// ErrExportUnavailable is returned when an export is requested before any
// timeline has been loaded.
var ErrExportUnavailable = errors.New("no timeline loaded to export")

// filenameStamp is the fetch time rounded to the minute, in UTC.
const filenameStamp = "20060102_1504"

// Artifact is one export file ready to be written out.
type Artifact struct {
	Filename string
	Data     []byte
}

// Filename builds the export filename for a contract and fetch time.
func Filename(contractID string, fetchedAt time.Time, ext string) string {
	return fmt.Sprintf("events_timeline_%s_%s.%s", contractID, fetchedAt.UTC().Format(filenameStamp), ext)
}

// JSON serializes the full result with human-readable indentation, field
// order and nesting preserved.
func JSON(result *domain.TimelineResult, fetchedAt time.Time) (*Artifact, error) {
	if result == nil {
		return nil, ErrExportUnavailable
	}

	data, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal timeline: %w", err)
	}
	data = append(data, '\n')

	return &Artifact{
		Filename: Filename(result.ContractID, fetchedAt, "json"),
		Data:     data,
	}, nil
}

// CSVHeader is the delimited export header row.
var CSVHeader = []string{"group_start", "group_end", "event_type", "count", "total_group_count"}

// CSV serializes one row per (group, typeCount) pair in group-then-type
// order. Groups without typeCounts emit a single row with an empty type,
// count 0 and the group's real total. Row order matches the result's group
// and type-count order exactly so exports reproduce deterministically.
func CSV(result *domain.TimelineResult, fetchedAt time.Time) (*Artifact, error) {
	if result == nil {
		return nil, ErrExportUnavailable
	}

	var buf bytes.Buffer
	w := csv.NewWriter(&buf)

	if err := w.Write(CSVHeader); err != nil {
		return nil, fmt.Errorf("write header: %w", err)
	}

	for _, g := range result.Groups {
		start := g.Start.UTC().Format(time.RFC3339)
		end := g.End.UTC().Format(time.RFC3339)
		total := strconv.Itoa(g.EventCount)

		if len(g.TypeCounts) == 0 {
			if err := w.Write([]string{start, end, "", "0", total}); err != nil {
				return nil, fmt.Errorf("write row: %w", err)
			}
			continue
		}

		for _, tc := range g.TypeCounts {
			row := []string{start, end, tc.EventType, strconv.Itoa(tc.Count), total}
			if err := w.Write(row); err != nil {
				return nil, fmt.Errorf("write row: %w", err)
			}
		}
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return nil, fmt.Errorf("flush csv: %w", err)
	}

	return &Artifact{
		Filename: Filename(result.ContractID, fetchedAt, "csv"),
		Data:     buf.Bytes(),
	}, nil
}
