// Package timeline groups stored contract events into bucketed windows.
package timeline

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"soroscan/internal/domain"
	"soroscan/internal/storage"
)

// Group limit bounds and the default query window.
const (
	MaxGroupLimit     = 1000
	DefaultGroupLimit = 500
	DefaultWindow     = 24 * time.Hour
)

// ErrInvalidWindow is returned when since is after until.
var ErrInvalidWindow = errors.New("since must be before or equal to until")

// Request describes one server-side timeline build.
// Since/Until default to the trailing DefaultWindow when zero.
type Request struct {
	ContractID    string
	BucketSize    domain.BucketSize
	EventTypes    []string
	Since         time.Time
	Until         time.Time
	Timezone      string
	IncludeEvents bool
	GroupLimit    int
}

// ResolveTimezone resolves an IANA timezone name. Empty means UTC.
func ResolveTimezone(name string) (*time.Location, error) {
	if name == "" {
		return time.UTC, nil
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, fmt.Errorf("unsupported timezone %q: %w", name, err)
	}
	return loc, nil
}

// ClampGroupLimit bounds a group limit to [1, MaxGroupLimit].
func ClampGroupLimit(limit int) int {
	if limit <= 0 {
		return 1
	}
	if limit > MaxGroupLimit {
		return MaxGroupLimit
	}
	return limit
}

// NormalizeWindow fills defaulted window bounds and validates their order.
func NormalizeWindow(since, until time.Time) (time.Time, time.Time, error) {
	if until.IsZero() {
		until = time.Now().UTC()
	}
	if since.IsZero() {
		since = until.Add(-DefaultWindow)
	}
	if since.After(until) {
		return time.Time{}, time.Time{}, ErrInvalidWindow
	}
	return since, until, nil
}

// FloorBucketStart floors a timestamp to its bucket start in the given
// timezone. Day and hour buckets snap to local midnight and local hour
// boundaries, which matters in zones with non-UTC offsets.
func FloorBucketStart(ts time.Time, bucket domain.BucketSize, loc *time.Location) time.Time {
	localized := ts.In(loc)

	switch bucket.Seconds() {
	case 86_400:
		return time.Date(localized.Year(), localized.Month(), localized.Day(), 0, 0, 0, 0, loc)
	case 3_600:
		return time.Date(localized.Year(), localized.Month(), localized.Day(), localized.Hour(), 0, 0, 0, loc)
	case 1_800:
		return time.Date(localized.Year(), localized.Month(), localized.Day(), localized.Hour(), (localized.Minute()/30)*30, 0, 0, loc)
	case 300:
		return time.Date(localized.Year(), localized.Month(), localized.Day(), localized.Hour(), (localized.Minute()/5)*5, 0, 0, loc)
	}

	// Generic fallback: floor seconds since local midnight.
	seconds := localized.Hour()*3600 + localized.Minute()*60 + localized.Second()
	floored := (seconds / bucket.Seconds()) * bucket.Seconds()
	return time.Date(localized.Year(), localized.Month(), localized.Day(), 0, 0, floored, 0, loc)
}

// Service builds grouped timelines from an event store.
type Service struct {
	events storage.EventStore
}

// NewService creates a timeline service over the given event store.
func NewService(events storage.EventStore) *Service {
	return &Service{events: events}
}

// mutableGroup accumulates counts while grouping.
type mutableGroup struct {
	start      time.Time
	end        time.Time
	eventCount int
	typeCounts map[string]int
	events     []*domain.ContractEvent
}

// Build groups a contract's events into bucketed windows.
func (s *Service) Build(ctx context.Context, req Request) (*domain.TimelineResult, error) {
	loc, err := ResolveTimezone(req.Timezone)
	if err != nil {
		return nil, err
	}

	since, until, err := NormalizeWindow(req.Since, req.Until)
	if err != nil {
		return nil, err
	}

	limit := req.GroupLimit
	if limit == 0 {
		limit = DefaultGroupLimit
	}
	limit = ClampGroupLimit(limit)

	events, err := s.events.GetByFilter(ctx, storage.EventFilter{
		ContractID: req.ContractID,
		Since:      since,
		Until:      until,
		EventTypes: req.EventTypes,
	})
	if err != nil {
		return nil, fmt.Errorf("load events: %w", err)
	}

	grouped := groupEvents(events, req.BucketSize, loc, req.IncludeEvents)

	// Keep the newest groups when over the limit; output stays ascending.
	if len(grouped) > limit {
		grouped = grouped[len(grouped)-limit:]
	}

	groups := make([]domain.Group, 0, len(grouped))
	for _, g := range grouped {
		groups = append(groups, domain.Group{
			Start:      g.start,
			End:        g.end,
			EventCount: g.eventCount,
			TypeCounts: sortedTypeCounts(g.typeCounts),
			Events:     eventDetails(g.events),
		})
	}

	return &domain.TimelineResult{
		ContractID:  req.ContractID,
		BucketSize:  req.BucketSize,
		WindowStart: since,
		WindowEnd:   until,
		TotalEvents: len(events),
		Groups:      groups,
	}, nil
}

// groupEvents buckets events and returns groups ascending by start time.
func groupEvents(events []*domain.ContractEvent, bucket domain.BucketSize, loc *time.Location, includeEvents bool) []*mutableGroup {
	grouped := make(map[int64]*mutableGroup)

	for _, e := range events {
		start := FloorBucketStart(e.Timestamp, bucket, loc)
		key := start.Unix()

		g, ok := grouped[key]
		if !ok {
			g = &mutableGroup{
				start:      start,
				end:        start.Add(bucket.Duration()),
				typeCounts: make(map[string]int),
			}
			grouped[key] = g
		}

		g.eventCount++
		g.typeCounts[e.EventType]++

		if includeEvents {
			g.events = append(g.events, e)
		}
	}

	result := make([]*mutableGroup, 0, len(grouped))
	for _, g := range grouped {
		result = append(result, g)
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].start.Before(result[j].start)
	})

	// Events arrive sorted from the store, so per-group order is already
	// (timestamp, ledger, event_index) ascending.

	return result
}

// sortedTypeCounts orders type counts by count descending, then type name.
func sortedTypeCounts(counts map[string]int) []domain.TypeCount {
	result := make([]domain.TypeCount, 0, len(counts))
	for eventType, count := range counts {
		result = append(result, domain.TypeCount{EventType: eventType, Count: count})
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].Count != result[j].Count {
			return result[i].Count > result[j].Count
		}
		return result[i].EventType < result[j].EventType
	})
	return result
}

func eventDetails(events []*domain.ContractEvent) []domain.EventDetail {
	if len(events) == 0 {
		return nil
	}
	result := make([]domain.EventDetail, 0, len(events))
	for _, e := range events {
		result = append(result, e.Detail())
	}
	return result
}
