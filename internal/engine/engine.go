// Package engine drives an interactive timeline session: it owns the zoom,
// filter and expansion state, talks to the aggregation backend, and exposes
// a render model plus export artifacts to whatever surface presents them.
package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"soroscan/internal/domain"
	"soroscan/internal/export"
	"soroscan/internal/graphql"
	"soroscan/internal/render"
)

// Fetcher loads type catalogs and timelines from the aggregation backend.
type Fetcher interface {
	EventTypes(ctx context.Context, contractID string) ([]string, error)
	Timeline(ctx context.Context, req domain.TimelineRequest) (*domain.TimelineResult, error)
}

var _ Fetcher = (*graphql.Client)(nil)

// Config carries the per-session parameters fixed at construction.
type Config struct {
	// ContractID is the contract whose timeline this session views.
	ContractID string
	// ContractName is an optional display name for the contract.
	ContractName string
	// Timezone is the IANA zone used for bucketing and display. Empty
	// means UTC.
	Timezone string
	// GroupLimit caps the number of groups per fetch. Zero asks the
	// backend for its default.
	GroupLimit int
	// IncludeDetail requests per-event rows alongside the aggregates.
	IncludeDetail bool
}

// TypeOption is one entry of the event-type catalog with its filter state.
type TypeOption struct {
	Name     string
	Selected bool
}

// Engine is safe for concurrent use. Fetches run without holding the lock;
// a sequence guard discards results that were overtaken by a newer fetch,
// so the applied timeline always reflects the most recently issued query.
type Engine struct {
	cfg     Config
	fetcher Fetcher
	loc     *time.Location

	mu         sync.Mutex
	state      *State
	allTypes   []string
	lastResult *domain.TimelineResult
	fetchedAt  time.Time
	fetchSeq   uint64

	status Status

	subMu sync.Mutex
	subs  []func()
}

// New builds an engine for one contract session. The configured timezone is
// resolved eagerly so an invalid zone fails construction, not the first
// fetch.
func New(cfg Config, fetcher Fetcher) (*Engine, error) {
	if cfg.ContractID == "" {
		return nil, errors.New("engine: contract id is required")
	}
	loc := time.UTC
	if cfg.Timezone != "" {
		var err error
		loc, err = time.LoadLocation(cfg.Timezone)
		if err != nil {
			return nil, fmt.Errorf("unsupported timezone %q: %w", cfg.Timezone, err)
		}
	}
	return &Engine{
		cfg:     cfg,
		fetcher: fetcher,
		loc:     loc,
		state:   NewState(),
	}, nil
}

// Subscribe registers a callback invoked after every state change that the
// presenting surface should repaint for. Callbacks run synchronously on the
// mutating goroutine and must not call back into the engine.
func (e *Engine) Subscribe(fn func()) {
	e.subMu.Lock()
	defer e.subMu.Unlock()
	e.subs = append(e.subs, fn)
}

func (e *Engine) notify() {
	e.subMu.Lock()
	subs := e.subs
	e.subMu.Unlock()
	for _, fn := range subs {
		fn()
	}
}

// Load performs the initial fetch: the event-type catalog first, then the
// timeline at the current state.
func (e *Engine) Load(ctx context.Context) error {
	if err := e.refreshTypeCatalog(ctx); err != nil {
		return err
	}
	return e.refetch(ctx)
}

// Bucket returns the currently selected granularity.
func (e *Engine) Bucket() domain.BucketSize {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state.Bucket()
}

// EventTypeOptions returns the known type catalog with each entry's filter
// state. Entries arrive unselected; selection only changes through
// ToggleEventType.
func (e *Engine) EventTypeOptions() []TypeOption {
	e.mu.Lock()
	defer e.mu.Unlock()

	selected := make(map[string]bool, len(e.state.SelectedTypes))
	for _, t := range e.state.SelectedTypes {
		selected[t] = true
	}
	opts := make([]TypeOption, len(e.allTypes))
	for i, name := range e.allTypes {
		opts[i] = TypeOption{Name: name, Selected: selected[name]}
	}
	return opts
}

// ZoomIn steps one granularity finer and refetches. At the finest level it
// does nothing.
func (e *Engine) ZoomIn(ctx context.Context) error {
	return e.applyTransition(ctx, func(s *State) Effect { return s.ZoomIn() })
}

// ZoomOut steps one granularity coarser and refetches. At the coarsest
// level it does nothing.
func (e *Engine) ZoomOut(ctx context.Context) error {
	return e.applyTransition(ctx, func(s *State) Effect { return s.ZoomOut() })
}

// ToggleEventType flips one type in the filter and refetches.
func (e *Engine) ToggleEventType(ctx context.Context, eventType string) error {
	return e.applyTransition(ctx, func(s *State) Effect { return s.ToggleEventType(eventType) })
}

// ClearFilters drops the type filter, refreshes the type catalog and
// refetches. With no filter active it does nothing at all.
func (e *Engine) ClearFilters(ctx context.Context) error {
	e.mu.Lock()
	effect := e.state.ClearFilters()
	e.mu.Unlock()

	if effect == EffectNone {
		return nil
	}
	if err := e.refreshTypeCatalog(ctx); err != nil {
		return err
	}
	return e.refetch(ctx)
}

// ToggleGroup flips the expansion of one group, keyed by its start time in
// unix seconds. This is a local change and never refetches.
func (e *Engine) ToggleGroup(key int64) {
	e.mu.Lock()
	e.state.ToggleGroup(key)
	e.mu.Unlock()
	e.notify()
}

// Render builds the current view model from data already in hand.
func (e *Engine) Render() *render.Tree {
	e.mu.Lock()
	defer e.mu.Unlock()
	return render.Build(e.lastResult, e.state.ExpandedKeys, e.loc)
}

// StatusLine returns the most recent status message.
func (e *Engine) StatusLine() (message string, isError bool) {
	return e.status.Get()
}

// ExportJSON serializes the loaded timeline to an indented JSON artifact.
// With nothing loaded it reports the failure on the status surface and
// returns ErrExportUnavailable.
func (e *Engine) ExportJSON() (*export.Artifact, error) {
	e.mu.Lock()
	result, fetchedAt := e.lastResult, e.fetchedAt
	e.mu.Unlock()
	return e.finishExport(export.JSON(result, fetchedAt))
}

// ExportCSV serializes the loaded timeline to a delimited artifact. With
// nothing loaded it reports the failure on the status surface and returns
// ErrExportUnavailable.
func (e *Engine) ExportCSV() (*export.Artifact, error) {
	e.mu.Lock()
	result, fetchedAt := e.lastResult, e.fetchedAt
	e.mu.Unlock()
	return e.finishExport(export.CSV(result, fetchedAt))
}

func (e *Engine) finishExport(artifact *export.Artifact, err error) (*export.Artifact, error) {
	if err != nil {
		if errors.Is(err, export.ErrExportUnavailable) {
			e.status.SetError("Nothing to export yet.")
		} else {
			e.status.SetError(fmt.Sprintf("Export failed: %v", err))
		}
		e.notify()
		return nil, err
	}
	e.status.Set(fmt.Sprintf("Exported %s.", artifact.Filename))
	e.notify()
	return artifact, nil
}

func (e *Engine) applyTransition(ctx context.Context, transition func(*State) Effect) error {
	e.mu.Lock()
	effect := transition(e.state)
	e.mu.Unlock()

	switch effect {
	case EffectNone:
		return nil
	case EffectRender:
		e.notify()
		return nil
	default:
		return e.refetch(ctx)
	}
}

func (e *Engine) refreshTypeCatalog(ctx context.Context) error {
	types, err := e.fetcher.EventTypes(ctx, e.cfg.ContractID)
	if err != nil {
		e.status.SetError(fmt.Sprintf("Failed to load event types: %v", err))
		e.notify()
		return err
	}
	e.mu.Lock()
	e.allTypes = types
	e.mu.Unlock()
	return nil
}

// refetch issues a timeline query for the current state. The lock is not
// held across the network call; a sequence number taken at issue time lets
// the completion detect that a newer fetch has been started and drop its
// own result unapplied.
func (e *Engine) refetch(ctx context.Context) error {
	e.mu.Lock()
	e.fetchSeq++
	seq := e.fetchSeq
	req := domain.TimelineRequest{
		ContractID:    e.cfg.ContractID,
		BucketSize:    e.state.Bucket(),
		EventTypes:    append([]string(nil), e.state.SelectedTypes...),
		Timezone:      e.cfg.Timezone,
		IncludeEvents: e.cfg.IncludeDetail,
		GroupLimit:    e.cfg.GroupLimit,
	}
	e.mu.Unlock()

	e.status.Set("Loading timeline...")
	e.notify()

	result, err := e.fetcher.Timeline(ctx, req)

	e.mu.Lock()
	if seq != e.fetchSeq {
		// Overtaken by a newer fetch, whatever this one brought back
		// is already out of date.
		e.mu.Unlock()
		return nil
	}
	if err != nil {
		e.mu.Unlock()
		e.status.SetError(fmt.Sprintf("Failed to load timeline: %v", err))
		e.notify()
		return err
	}
	e.lastResult = result
	e.fetchedAt = time.Now()
	e.mu.Unlock()

	e.status.Set(fmt.Sprintf("Loaded %d events in %d groups.", result.TotalEvents, len(result.Groups)))
	e.notify()
	return nil
}
