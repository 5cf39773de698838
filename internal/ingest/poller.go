package ingest

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"soroscan/internal/domain"
	"soroscan/internal/idhash"
	"soroscan/internal/observability"
	"soroscan/internal/storage"
)

// Poll defaults.
const (
	DefaultInterval        = 10 * time.Second
	DefaultPageLimit       = 100
	DefaultBackfillLedgers = 10000
	DefaultTopicNamespace  = "soroscan"
)

// PollerConfig configures a Poller. Events is required; Archive is an
// optional second store that receives a best-effort copy of every batch.
type PollerConfig struct {
	Client          SorobanClient
	Events          storage.EventStore
	Archive         storage.EventStore
	Contracts       storage.ContractStore
	Interval        time.Duration
	PageLimit       int
	BackfillLedgers int64
	TopicNamespace  string
	Metrics         *observability.Metrics
	Logger          *log.Logger
}

// Poller periodically pulls new events for every active contract. Each
// contract's cursor is the highest ledger already stored, so restarts
// resume where the previous run stopped.
type Poller struct {
	client          SorobanClient
	events          storage.EventStore
	archive         storage.EventStore
	contracts       storage.ContractStore
	interval        time.Duration
	pageLimit       int
	backfillLedgers int64
	namespace       string
	metrics         *observability.Metrics
	logger          *log.Logger
}

// NewPoller creates a poller from the config, filling in defaults.
func NewPoller(cfg PollerConfig) *Poller {
	p := &Poller{
		client:          cfg.Client,
		events:          cfg.Events,
		archive:         cfg.Archive,
		contracts:       cfg.Contracts,
		interval:        cfg.Interval,
		pageLimit:       cfg.PageLimit,
		backfillLedgers: cfg.BackfillLedgers,
		namespace:       cfg.TopicNamespace,
		metrics:         cfg.Metrics,
		logger:          cfg.Logger,
	}
	if p.interval <= 0 {
		p.interval = DefaultInterval
	}
	if p.pageLimit <= 0 {
		p.pageLimit = DefaultPageLimit
	}
	if p.backfillLedgers <= 0 {
		p.backfillLedgers = DefaultBackfillLedgers
	}
	if p.namespace == "" {
		p.namespace = DefaultTopicNamespace
	}
	if p.logger == nil {
		p.logger = log.New(log.Writer(), "[ingest] ", log.LstdFlags)
	}
	return p
}

// Run polls immediately and then on every tick until the context ends.
func (p *Poller) Run(ctx context.Context) {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	if err := p.PollOnce(ctx); err != nil {
		p.logger.Printf("poll failed: %v", err)
	}

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := p.PollOnce(ctx); err != nil {
				p.logger.Printf("poll failed: %v", err)
			}
		}
	}
}

// PollOnce syncs every active contract one time. Per-contract failures are
// logged and counted but do not stop the cycle; the cycle fails only when
// the contract registry itself cannot be read.
func (p *Poller) PollOnce(ctx context.Context) error {
	active, err := p.contracts.ListActive(ctx)
	if err != nil {
		p.metrics.RecordIngestError("registry")
		return fmt.Errorf("list active contracts: %w", err)
	}

	for _, c := range active {
		if err := p.syncContract(ctx, c.ContractID); err != nil {
			p.metrics.RecordIngestError("sync")
			p.logger.Printf("sync %s: %v", c.ContractID, err)
		}
	}

	p.metrics.RecordPollSuccess()
	return nil
}

// syncContract pages through all events newer than the stored cursor.
func (p *Poller) syncContract(ctx context.Context, contractID string) error {
	lastLedger, err := p.events.LatestLedger(ctx, contractID)
	if err != nil {
		return fmt.Errorf("load cursor: %w", err)
	}

	startLedger := lastLedger + 1
	if lastLedger == 0 {
		// First sync: backfill a bounded window instead of asking for
		// ledger 1, which is long outside the node's retention.
		latest, err := p.client.GetLatestLedger(ctx)
		if err != nil {
			return fmt.Errorf("latest ledger: %w", err)
		}
		startLedger = latest - p.backfillLedgers
		if startLedger < 1 {
			startLedger = 1
		}
	}

	cursor := ""
	highest := lastLedger
	for {
		resp, err := p.client.GetEvents(ctx, GetEventsRequest{
			StartLedger: startLedger,
			ContractID:  contractID,
			Cursor:      cursor,
			Limit:       p.pageLimit,
		})
		if err != nil {
			return fmt.Errorf("get events: %w", err)
		}

		stored, err := p.storeBatch(ctx, contractID, resp.Events)
		if err != nil {
			return err
		}
		p.metrics.RecordEventsIngested(contractID, stored)

		for _, e := range resp.Events {
			if e.Ledger > highest {
				highest = e.Ledger
			}
		}

		if resp.Cursor == "" || len(resp.Events) == 0 {
			break
		}
		cursor = resp.Cursor
	}

	p.metrics.RecordIngestCursor(contractID, highest)
	return nil
}

// storeBatch converts and stores one page. The whole page is inserted
// atomically; when the page collides with already-stored events it falls
// back to row-by-row inserts so reprocessed pages stay idempotent.
func (p *Poller) storeBatch(ctx context.Context, contractID string, raw []RawEvent) (int, error) {
	if len(raw) == 0 {
		return 0, nil
	}

	batch := make([]*domain.ContractEvent, 0, len(raw))
	for _, r := range raw {
		e, err := p.convert(contractID, r)
		if err != nil {
			p.logger.Printf("skip event %s: %v", r.ID, err)
			continue
		}
		batch = append(batch, e)
	}
	if len(batch) == 0 {
		return 0, nil
	}

	err := p.events.InsertBulk(ctx, batch)
	if err == nil {
		p.archiveBatch(ctx, batch)
		return len(batch), nil
	}
	if !errors.Is(err, storage.ErrDuplicateKey) {
		return 0, fmt.Errorf("store batch: %w", err)
	}

	stored := 0
	for _, e := range batch {
		switch err := p.events.Insert(ctx, e); {
		case err == nil:
			stored++
		case errors.Is(err, storage.ErrDuplicateKey):
			// Already stored on a previous run.
		default:
			return stored, fmt.Errorf("store event %s: %w", e.ID, err)
		}
	}
	p.archiveBatch(ctx, batch)
	return stored, nil
}

// archiveBatch copies a stored page into the archive store. Archive
// failures are logged, never propagated; the primary store is the source
// of truth.
func (p *Poller) archiveBatch(ctx context.Context, batch []*domain.ContractEvent) {
	if p.archive == nil {
		return
	}
	if err := p.archive.InsertBulk(ctx, batch); err != nil && !errors.Is(err, storage.ErrDuplicateKey) {
		p.metrics.RecordIngestError("archive")
		p.logger.Printf("archive batch: %v", err)
	}
}

func (p *Poller) convert(contractID string, r RawEvent) (*domain.ContractEvent, error) {
	ts, err := time.Parse(time.RFC3339, r.LedgerClosedAt)
	if err != nil {
		return nil, fmt.Errorf("parse ledger close time %q: %w", r.LedgerClosedAt, err)
	}

	eventType := r.EventType(p.namespace)
	if eventType == "" {
		return nil, errors.New("event has no topic")
	}

	index := r.EventIndex()
	payload := []byte(r.Value)
	return &domain.ContractEvent{
		ID:             idhash.ComputeEventID(contractID, eventType, r.TxHash, index, r.Ledger),
		ContractID:     contractID,
		EventType:      eventType,
		Payload:        payload,
		PayloadHash:    idhash.ComputePayloadHash(payload),
		LedgerSequence: r.Ledger,
		EventIndex:     index,
		Timestamp:      ts.UTC(),
		TxHash:         r.TxHash,
	}, nil
}
