// Package api serves the query endpoint the timeline client talks to: a
// single POST route carrying an operation name and variables, answering
// with a data payload or a list of error messages, never both.
package api

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"time"

	"soroscan/internal/domain"
	"soroscan/internal/observability"
	"soroscan/internal/storage"
	"soroscan/internal/timeline"
)

// Server handles query requests against the event store.
type Server struct {
	timelines *timeline.Service
	events    storage.EventStore
	contracts storage.ContractStore
	metrics   *observability.Metrics
	logger    *log.Logger
}

// NewServer creates a query server. metrics may be nil.
func NewServer(events storage.EventStore, contracts storage.ContractStore, metrics *observability.Metrics, logger *log.Logger) *Server {
	if logger == nil {
		logger = log.New(log.Writer(), "[api] ", log.LstdFlags)
	}
	return &Server{
		timelines: timeline.NewService(events),
		events:    events,
		contracts: contracts,
		metrics:   metrics,
		logger:    logger,
	}
}

// queryRequest is the wire envelope for one query.
type queryRequest struct {
	Operation string          `json:"operation"`
	Variables json.RawMessage `json:"variables"`
}

// queryResponse is the wire envelope for one response.
type queryResponse struct {
	Data   any      `json:"data,omitempty"`
	Errors []string `json:"errors,omitempty"`
}

// ServeHTTP implements the query endpoint.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req queryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "malformed request body", http.StatusBadRequest)
		return
	}

	started := time.Now()
	data, err := s.dispatch(r, req)
	outcome := "ok"

	resp := queryResponse{Data: data}
	if err != nil {
		outcome = "error"
		resp = queryResponse{Errors: []string{err.Error()}}
		s.logger.Printf("operation %q failed: %v", req.Operation, err)
	}
	s.metrics.RecordQuery(req.Operation, outcome, time.Since(started))

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		s.logger.Printf("write response: %v", err)
	}
}

func (s *Server) dispatch(r *http.Request, req queryRequest) (any, error) {
	switch req.Operation {
	case "eventTypes":
		return s.handleEventTypes(r, req.Variables)
	case "eventTimeline":
		return s.handleTimeline(r, req.Variables)
	case "contracts":
		return s.handleContracts(r)
	default:
		return nil, errors.New("unknown operation " + req.Operation)
	}
}

func (s *Server) resolveContract(r *http.Request, contractID string) error {
	if contractID == "" {
		return errors.New("contractId is required")
	}
	_, err := s.contracts.Get(r.Context(), contractID)
	if errors.Is(err, storage.ErrNotFound) {
		return errors.New("contract not found")
	}
	return err
}

func (s *Server) handleEventTypes(r *http.Request, variables json.RawMessage) (any, error) {
	var vars struct {
		ContractID string `json:"contractId"`
	}
	if err := unmarshalVariables(variables, &vars); err != nil {
		return nil, err
	}
	if err := s.resolveContract(r, vars.ContractID); err != nil {
		return nil, err
	}

	types, err := s.events.DistinctEventTypes(r.Context(), vars.ContractID)
	if err != nil {
		return nil, err
	}
	if types == nil {
		types = []string{}
	}
	return map[string]any{"eventTypes": types}, nil
}

func (s *Server) handleTimeline(r *http.Request, variables json.RawMessage) (any, error) {
	var vars struct {
		ContractID    string   `json:"contractId"`
		BucketSize    string   `json:"bucketSize"`
		EventTypes    []string `json:"eventTypes"`
		Since         string   `json:"since"`
		Until         string   `json:"until"`
		Timezone      string   `json:"timezone"`
		IncludeEvents bool     `json:"includeEvents"`
		GroupLimit    int      `json:"limitGroups"`
	}
	if err := unmarshalVariables(variables, &vars); err != nil {
		return nil, err
	}
	if err := s.resolveContract(r, vars.ContractID); err != nil {
		return nil, err
	}

	bucket := domain.BucketSizes[domain.DefaultBucketIndex]
	if vars.BucketSize != "" {
		var err error
		bucket, err = domain.ParseBucketSize(vars.BucketSize)
		if err != nil {
			return nil, err
		}
	}

	since, err := parseTimestamp(vars.Since)
	if err != nil {
		return nil, err
	}
	until, err := parseTimestamp(vars.Until)
	if err != nil {
		return nil, err
	}

	result, err := s.timelines.Build(r.Context(), timeline.Request{
		ContractID:    vars.ContractID,
		BucketSize:    bucket,
		EventTypes:    vars.EventTypes,
		Since:         since,
		Until:         until,
		Timezone:      vars.Timezone,
		IncludeEvents: vars.IncludeEvents,
		GroupLimit:    vars.GroupLimit,
	})
	if err != nil {
		return nil, err
	}
	return map[string]any{"eventTimeline": result}, nil
}

func (s *Server) handleContracts(r *http.Request) (any, error) {
	list, err := s.contracts.ListActive(r.Context())
	if err != nil {
		return nil, err
	}
	if list == nil {
		list = []*domain.Contract{}
	}
	return map[string]any{"contracts": list}, nil
}

func unmarshalVariables(raw json.RawMessage, out any) error {
	if len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return errors.New("malformed variables")
	}
	return nil
}

func parseTimestamp(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	ts, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, errors.New("invalid timestamp " + s)
	}
	return ts, nil
}
