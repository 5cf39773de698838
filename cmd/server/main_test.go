package main

import (
	"testing"

	"soroscan/internal/storage"
	"soroscan/internal/storage/memory"
)

func TestSelectQueryStore(t *testing.T) {
	primary := memory.NewEventStore()
	archive := memory.NewEventStore()

	got, err := selectQueryStore("postgres", primary, archive)
	if err != nil {
		t.Fatalf("postgres backend: %v", err)
	}
	if got != storage.EventStore(primary) {
		t.Error("postgres backend should serve from the primary store")
	}

	got, err = selectQueryStore("clickhouse", primary, archive)
	if err != nil {
		t.Fatalf("clickhouse backend: %v", err)
	}
	if got != storage.EventStore(archive) {
		t.Error("clickhouse backend should serve from the archive store")
	}

	if _, err := selectQueryStore("clickhouse", primary, nil); err == nil {
		t.Error("clickhouse backend without an archive should be rejected")
	}

	if _, err := selectQueryStore("sqlite", primary, archive); err == nil {
		t.Error("unknown backend should be rejected")
	}
}
