package engine

import "soroscan/internal/domain"

// Effect tells the caller what a state transition requires next. Transitions
// themselves never perform I/O.
type Effect int

const (
	// EffectNone means the transition was a no-op and nothing changed.
	EffectNone Effect = iota
	// EffectRender means local state changed and the view must be rebuilt
	// from data already in hand.
	EffectRender
	// EffectRefetch means the query parameters changed and the timeline
	// must be re-fetched before rendering.
	EffectRefetch
)

// State holds the view-side parameters of a timeline session. All fields
// survive refetches; only explicit transitions mutate them.
type State struct {
	// BucketIndex indexes domain.BucketSizes. Zooming in moves toward the
	// finest granularity, zooming out toward the coarsest.
	BucketIndex int
	// SelectedTypes is the active event-type filter. Empty means no
	// filter, never "match nothing".
	SelectedTypes []string
	// ExpandedKeys marks groups whose event details are open, keyed by
	// group start (unix seconds). Keys persist across refetches so a
	// group that survives a reload stays open.
	ExpandedKeys map[int64]struct{}
}

// NewState returns the initial session state at the default granularity
// with no filter and nothing expanded.
func NewState() *State {
	return &State{
		BucketIndex:  domain.DefaultBucketIndex,
		ExpandedKeys: make(map[int64]struct{}),
	}
}

// Bucket returns the currently selected granularity.
func (s *State) Bucket() domain.BucketSize {
	return domain.BucketSizes[s.BucketIndex]
}

// ZoomIn steps one granularity finer. At the finest level it is a no-op.
func (s *State) ZoomIn() Effect {
	if s.BucketIndex >= len(domain.BucketSizes)-1 {
		return EffectNone
	}
	s.BucketIndex++
	return EffectRefetch
}

// ZoomOut steps one granularity coarser. At the coarsest level it is a no-op.
func (s *State) ZoomOut() Effect {
	if s.BucketIndex <= 0 {
		return EffectNone
	}
	s.BucketIndex--
	return EffectRefetch
}

// ToggleEventType adds the type to the filter if absent, removes it if
// present. Any change to the filter invalidates the loaded timeline.
func (s *State) ToggleEventType(eventType string) Effect {
	for i, t := range s.SelectedTypes {
		if t == eventType {
			s.SelectedTypes = append(s.SelectedTypes[:i], s.SelectedTypes[i+1:]...)
			return EffectRefetch
		}
	}
	s.SelectedTypes = append(s.SelectedTypes, eventType)
	return EffectRefetch
}

// ClearFilters drops the whole type filter. With no filter active it is a
// no-op and must not trigger a refetch.
func (s *State) ClearFilters() Effect {
	if len(s.SelectedTypes) == 0 {
		return EffectNone
	}
	s.SelectedTypes = nil
	return EffectRefetch
}

// ToggleGroup flips the expansion of one group. Expansion is pure view
// state and never requires a refetch.
func (s *State) ToggleGroup(key int64) Effect {
	if _, ok := s.ExpandedKeys[key]; ok {
		delete(s.ExpandedKeys, key)
	} else {
		s.ExpandedKeys[key] = struct{}{}
	}
	return EffectRender
}
