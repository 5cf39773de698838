// Package ingest pulls contract events from a Soroban RPC node and stores
// them for aggregation.
package ingest

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"sync/atomic"
	"time"
)

// Default configuration values.
const (
	DefaultTimeout     = 30 * time.Second
	DefaultMaxRetries  = 3
	DefaultRetryDelay  = 1 * time.Second
	DefaultMaxDelay    = 10 * time.Second
	DefaultBackoffMult = 2.0
)

// SorobanClient defines the RPC surface the poller needs.
type SorobanClient interface {
	// GetEvents retrieves contract events starting at a ledger, paging
	// with the returned cursor.
	GetEvents(ctx context.Context, req GetEventsRequest) (*GetEventsResponse, error)

	// GetLatestLedger returns the newest ledger sequence the node knows.
	GetLatestLedger(ctx context.Context) (int64, error)
}

// GetEventsRequest asks for events of one contract from a start ledger.
type GetEventsRequest struct {
	StartLedger int64
	ContractID  string
	Cursor      string
	Limit       int
}

// GetEventsResponse is one page of events plus the paging cursor. An empty
// cursor means the page was the last one.
type GetEventsResponse struct {
	Events       []RawEvent
	LatestLedger int64
	Cursor       string
}

// RawEvent is one contract event as the node reports it, topics still
// undecoded.
type RawEvent struct {
	ID             string            `json:"id"`
	Ledger         int64             `json:"ledger"`
	LedgerClosedAt string            `json:"ledgerClosedAt"`
	ContractID     string            `json:"contractId"`
	Topic          []json.RawMessage `json:"topic"`
	Value          json.RawMessage   `json:"value"`
	TxHash         string            `json:"txHash"`
}

// EventIndex extracts the in-ledger event index from the node's composite
// event id ("<toid>-<index>"). Unparseable ids index as 0.
func (e RawEvent) EventIndex() int {
	parts := strings.Split(e.ID, "-")
	if len(parts) != 2 {
		return 0
	}
	idx, err := strconv.Atoi(parts[1])
	if err != nil {
		return 0
	}
	return idx
}

// EventType resolves the event type from the topic list. Contracts publish
// under a leading namespace symbol; when the first topic is the namespace
// the second carries the type, otherwise the first does.
func (e RawEvent) EventType(namespace string) string {
	if len(e.Topic) == 0 {
		return ""
	}
	first := decodeSymbol(e.Topic[0])
	if first == namespace && len(e.Topic) > 1 {
		return decodeSymbol(e.Topic[1])
	}
	return first
}

// decodeSymbol extracts the string payload of a JSON-rendered ScVal topic.
func decodeSymbol(raw json.RawMessage) string {
	var scval struct {
		Symbol string `json:"symbol"`
		String string `json:"string"`
	}
	if err := json.Unmarshal(raw, &scval); err == nil {
		if scval.Symbol != "" {
			return scval.Symbol
		}
		if scval.String != "" {
			return scval.String
		}
	}
	var plain string
	if err := json.Unmarshal(raw, &plain); err == nil {
		return plain
	}
	return string(raw)
}

// HTTPClient implements SorobanClient using HTTP JSON-RPC 2.0.
type HTTPClient struct {
	endpoint    string
	client      *http.Client
	maxRetries  int
	retryDelay  time.Duration
	maxDelay    time.Duration
	backoffMult float64
	requestID   atomic.Uint64
}

// ClientOption configures HTTPClient.
type ClientOption func(*HTTPClient)

// WithTimeout sets HTTP client timeout.
func WithTimeout(d time.Duration) ClientOption {
	return func(c *HTTPClient) {
		c.client.Timeout = d
	}
}

// WithMaxRetries sets maximum retry attempts.
func WithMaxRetries(n int) ClientOption {
	return func(c *HTTPClient) {
		c.maxRetries = n
	}
}

// WithRetryDelay sets initial retry delay.
func WithRetryDelay(d time.Duration) ClientOption {
	return func(c *HTTPClient) {
		c.retryDelay = d
	}
}

// WithHTTPClient sets custom http.Client.
func WithHTTPClient(client *http.Client) ClientOption {
	return func(c *HTTPClient) {
		c.client = client
	}
}

// NewHTTPClient creates a new Soroban RPC HTTP client.
func NewHTTPClient(endpoint string, opts ...ClientOption) *HTTPClient {
	c := &HTTPClient{
		endpoint:    endpoint,
		client:      &http.Client{Timeout: DefaultTimeout},
		maxRetries:  DefaultMaxRetries,
		retryDelay:  DefaultRetryDelay,
		maxDelay:    DefaultMaxDelay,
		backoffMult: DefaultBackoffMult,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// rpcRequest represents a JSON-RPC 2.0 request. Soroban RPC takes named
// parameters, so Params is an object.
type rpcRequest struct {
	JSONRPC string `json:"jsonrpc"`
	ID      uint64 `json:"id"`
	Method  string `json:"method"`
	Params  any    `json:"params,omitempty"`
}

// rpcResponse represents a JSON-RPC 2.0 response.
type rpcResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      uint64          `json:"id"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *rpcError       `json:"error,omitempty"`
}

// rpcError represents a JSON-RPC 2.0 error.
type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *rpcError) Error() string {
	return fmt.Sprintf("RPC error %d: %s", e.Code, e.Message)
}

// call performs a JSON-RPC call with retries and exponential backoff.
func (c *HTTPClient) call(ctx context.Context, method string, params any, result any) error {
	reqID := c.requestID.Add(1)
	body, err := json.Marshal(rpcRequest{
		JSONRPC: "2.0",
		ID:      reqID,
		Method:  method,
		Params:  params,
	})
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	delay := c.retryDelay
	var lastErr error

	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
			// Exponential backoff
			delay = time.Duration(float64(delay) * c.backoffMult)
			if delay > c.maxDelay {
				delay = c.maxDelay
			}
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
		if err != nil {
			return fmt.Errorf("create request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := c.client.Do(req)
		if err != nil {
			lastErr = fmt.Errorf("http request: %w", err)
			continue
		}

		respBody, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			lastErr = fmt.Errorf("read response: %w", err)
			continue
		}

		if resp.StatusCode == http.StatusTooManyRequests {
			lastErr = fmt.Errorf("rate limited (429)")
			continue
		}

		if resp.StatusCode != http.StatusOK {
			lastErr = fmt.Errorf("unexpected status %d: %s", resp.StatusCode, string(respBody))
			continue
		}

		var rpcResp rpcResponse
		if err := json.Unmarshal(respBody, &rpcResp); err != nil {
			lastErr = fmt.Errorf("unmarshal response: %w", err)
			continue
		}

		if rpcResp.Error != nil {
			// RPC errors are not retried
			return rpcResp.Error
		}

		if result != nil && rpcResp.Result != nil {
			if err := json.Unmarshal(rpcResp.Result, result); err != nil {
				return fmt.Errorf("unmarshal result: %w", err)
			}
		}

		return nil
	}

	return fmt.Errorf("max retries exceeded: %w", lastErr)
}

// GetEvents retrieves one page of contract events.
func (c *HTTPClient) GetEvents(ctx context.Context, req GetEventsRequest) (*GetEventsResponse, error) {
	params := map[string]any{
		"xdrFormat": "json",
		"filters": []map[string]any{
			{
				"type":        "contract",
				"contractIds": []string{req.ContractID},
			},
		},
	}
	pagination := map[string]any{}
	if req.Limit > 0 {
		pagination["limit"] = req.Limit
	}
	if req.Cursor != "" {
		// Cursor and startLedger are mutually exclusive.
		pagination["cursor"] = req.Cursor
	} else {
		params["startLedger"] = req.StartLedger
	}
	if len(pagination) > 0 {
		params["pagination"] = pagination
	}

	var result struct {
		Events       []RawEvent `json:"events"`
		LatestLedger int64      `json:"latestLedger"`
		Cursor       string     `json:"cursor"`
	}
	if err := c.call(ctx, "getEvents", params, &result); err != nil {
		return nil, err
	}
	return &GetEventsResponse{
		Events:       result.Events,
		LatestLedger: result.LatestLedger,
		Cursor:       result.Cursor,
	}, nil
}

// GetLatestLedger returns the newest ledger sequence the node knows.
func (c *HTTPClient) GetLatestLedger(ctx context.Context) (int64, error) {
	var result struct {
		Sequence int64 `json:"sequence"`
	}
	if err := c.call(ctx, "getLatestLedger", nil, &result); err != nil {
		return 0, err
	}
	return result.Sequence, nil
}
