// Package graphql implements the query client for the SoroScan backend:
// a single POST exchange carrying an operation name and variables,
// returning either a data payload or a non-empty list of error messages.
package graphql

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"soroscan/internal/domain"
)

// DefaultTimeout bounds a single query exchange.
const DefaultTimeout = 30 * time.Second

// Client issues read queries against the backend. It performs no retries;
// failures propagate immediately and the caller owns retry policy.
type Client struct {
	endpoint string
	client   *http.Client
}

// Option configures Client.
type Option func(*Client)

// WithTimeout sets the HTTP client timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.client.Timeout = d
	}
}

// WithHTTPClient sets a custom http.Client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		c.client = client
	}
}

// NewClient creates a query client for the given endpoint.
func NewClient(endpoint string, opts ...Option) *Client {
	c := &Client{
		endpoint: endpoint,
		client:   &http.Client{Timeout: DefaultTimeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// queryRequest is the wire envelope for one query.
type queryRequest struct {
	Operation string         `json:"operation"`
	Variables map[string]any `json:"variables,omitempty"`
}

// queryResponse is the wire envelope for one response. Errors and Data are
// never treated as a partial success together.
type queryResponse struct {
	Data   json.RawMessage `json:"data,omitempty"`
	Errors []string        `json:"errors,omitempty"`
}

// call performs one POST exchange and decodes the data payload into result.
func (c *Client) call(ctx context.Context, operation string, variables map[string]any, result any) error {
	body, err := json.Marshal(queryRequest{Operation: operation, Variables: variables})
	if err != nil {
		return fmt.Errorf("marshal query: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return &TransportError{Err: err}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return &TransportError{Status: resp.StatusCode, Err: fmt.Errorf("read response: %w", err)}
	}

	if resp.StatusCode != http.StatusOK {
		return &TransportError{Status: resp.StatusCode, Err: errors.New(http.StatusText(resp.StatusCode))}
	}

	var envelope queryResponse
	if err := json.Unmarshal(respBody, &envelope); err != nil {
		return &TransportError{Status: resp.StatusCode, Err: fmt.Errorf("unmarshal response: %w", err)}
	}

	if len(envelope.Errors) > 0 {
		return &ProtocolError{Messages: envelope.Errors}
	}

	if result != nil && envelope.Data != nil {
		if err := json.Unmarshal(envelope.Data, result); err != nil {
			return &TransportError{Status: resp.StatusCode, Err: fmt.Errorf("unmarshal data: %w", err)}
		}
	}

	return nil
}

// EventTypes returns the distinct event types observed for a contract.
func (c *Client) EventTypes(ctx context.Context, contractID string) ([]string, error) {
	var out struct {
		EventTypes []string `json:"eventTypes"`
	}
	err := c.call(ctx, "eventTypes", map[string]any{"contractId": contractID}, &out)
	if err != nil {
		return nil, err
	}
	return out.EventTypes, nil
}

// Timeline fetches a bucketed timeline. An empty EventTypes filter is
// omitted from the variables entirely: absence and "all types" are the
// same state on the wire.
func (c *Client) Timeline(ctx context.Context, req domain.TimelineRequest) (*domain.TimelineResult, error) {
	variables := map[string]any{
		"contractId":    req.ContractID,
		"bucketSize":    req.BucketSize.String(),
		"timezone":      req.Timezone,
		"includeEvents": req.IncludeEvents,
		"limitGroups":   req.GroupLimit,
	}
	if len(req.EventTypes) > 0 {
		variables["eventTypes"] = req.EventTypes
	}

	var out struct {
		EventTimeline *domain.TimelineResult `json:"eventTimeline"`
	}
	if err := c.call(ctx, "eventTimeline", variables, &out); err != nil {
		return nil, err
	}
	if out.EventTimeline == nil {
		return nil, &TransportError{Status: http.StatusOK, Err: errors.New("response missing eventTimeline payload")}
	}
	return out.EventTimeline, nil
}
