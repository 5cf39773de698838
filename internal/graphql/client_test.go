package graphql

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"soroscan/internal/domain"
)

func TestEventTypes_Success(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req queryRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		if req.Operation != "eventTypes" {
			t.Errorf("operation = %s, want eventTypes", req.Operation)
		}
		if req.Variables["contractId"] != "CTEST" {
			t.Errorf("contractId = %v, want CTEST", req.Variables["contractId"])
		}
		json.NewEncoder(w).Encode(map[string]any{
			"data": map[string]any{"eventTypes": []string{"transfer", "mint"}},
		})
	}))
	defer server.Close()

	client := NewClient(server.URL)
	types, err := client.EventTypes(context.Background(), "CTEST")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(types) != 2 || types[0] != "transfer" || types[1] != "mint" {
		t.Errorf("types = %v, want [transfer mint]", types)
	}
}

func TestTimeline_OmitsEmptyEventTypes(t *testing.T) {
	var captured queryRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewDecoder(r.Body).Decode(&captured)
		json.NewEncoder(w).Encode(map[string]any{
			"data": map[string]any{"eventTimeline": &domain.TimelineResult{ContractID: "CTEST"}},
		})
	}))
	defer server.Close()

	client := NewClient(server.URL)
	_, err := client.Timeline(context.Background(), domain.TimelineRequest{
		ContractID: "CTEST",
		BucketSize: domain.BucketThirtyMinutes,
		Timezone:   "UTC",
		GroupLimit: 500,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if _, present := captured.Variables["eventTypes"]; present {
		t.Error("empty eventTypes filter must be absent from variables, not an empty set")
	}
	if captured.Variables["bucketSize"] != "THIRTY_MINUTES" {
		t.Errorf("bucketSize = %v, want THIRTY_MINUTES", captured.Variables["bucketSize"])
	}
}

func TestTimeline_SendsSelectedEventTypes(t *testing.T) {
	var captured queryRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewDecoder(r.Body).Decode(&captured)
		json.NewEncoder(w).Encode(map[string]any{
			"data": map[string]any{"eventTimeline": &domain.TimelineResult{ContractID: "CTEST"}},
		})
	}))
	defer server.Close()

	client := NewClient(server.URL)
	_, err := client.Timeline(context.Background(), domain.TimelineRequest{
		ContractID: "CTEST",
		BucketSize: domain.BucketOneHour,
		EventTypes: []string{"transfer"},
		Timezone:   "UTC",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	types, ok := captured.Variables["eventTypes"].([]any)
	if !ok || len(types) != 1 || types[0] != "transfer" {
		t.Errorf("eventTypes = %v, want [transfer]", captured.Variables["eventTypes"])
	}
}

func TestTimeline_ProtocolError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"errors": []string{"contract not found"},
			// A data payload next to errors must be discarded.
			"data": map[string]any{"eventTimeline": &domain.TimelineResult{ContractID: "CTEST"}},
		})
	}))
	defer server.Close()

	client := NewClient(server.URL)
	result, err := client.Timeline(context.Background(), domain.TimelineRequest{
		ContractID: "CMISSING",
		BucketSize: domain.BucketOneHour,
		Timezone:   "UTC",
	})
	if result != nil {
		t.Error("expected nil result alongside protocol error")
	}

	var protoErr *ProtocolError
	if !errors.As(err, &protoErr) {
		t.Fatalf("expected ProtocolError, got %T: %v", err, err)
	}
	if protoErr.Error() != "contract not found" {
		t.Errorf("message = %q, want %q", protoErr.Error(), "contract not found")
	}
}

func TestProtocolError_JoinsMessages(t *testing.T) {
	err := &ProtocolError{Messages: []string{"first failure", "second failure"}}
	want := "first failure; second failure"
	if err.Error() != want {
		t.Errorf("joined = %q, want %q", err.Error(), want)
	}
}

func TestTimeline_TransportErrorOnBadStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusBadGateway)
	}))
	defer server.Close()

	client := NewClient(server.URL)
	_, err := client.EventTypes(context.Background(), "CTEST")

	var transportErr *TransportError
	if !errors.As(err, &transportErr) {
		t.Fatalf("expected TransportError, got %T: %v", err, err)
	}
	if transportErr.Status != http.StatusBadGateway {
		t.Errorf("status = %d, want 502", transportErr.Status)
	}
}

func TestTimeline_TransportErrorOnConnectionFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	server.Close() // closed on purpose

	client := NewClient(server.URL, WithTimeout(time.Second))
	_, err := client.EventTypes(context.Background(), "CTEST")

	var transportErr *TransportError
	if !errors.As(err, &transportErr) {
		t.Fatalf("expected TransportError, got %T: %v", err, err)
	}
	if transportErr.Status != 0 {
		t.Errorf("status = %d, want 0 for a request that never completed", transportErr.Status)
	}
}
