// Package main runs the SoroScan backend: the ingest poller pulling
// contract events from a Soroban RPC node, and the query endpoint the
// timeline client talks to.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"soroscan/internal/api"
	"soroscan/internal/domain"
	"soroscan/internal/ingest"
	"soroscan/internal/observability"
	"soroscan/internal/storage"
	chstore "soroscan/internal/storage/clickhouse"
	"soroscan/internal/storage/memory"
	"soroscan/internal/storage/migrations"
	pgstore "soroscan/internal/storage/postgres"
	"soroscan/internal/strkey"
)

func main() {
	// Load .env file if exists
	loadEnvFile()

	// Parse flags (env vars as defaults)
	rpcEndpoint := flag.String("rpc-endpoint", os.Getenv("SOROBAN_RPC_ENDPOINT"), "Soroban RPC HTTP endpoint")
	postgresDSN := flag.String("postgres-dsn", os.Getenv("POSTGRES_DSN"), "PostgreSQL connection string")
	clickhouseDSN := flag.String("clickhouse-dsn", os.Getenv("CLICKHOUSE_DSN"), "ClickHouse connection string for the event archive (optional)")
	queryBackend := flag.String("query-backend", "postgres", "Event store serving timeline queries: postgres or clickhouse")
	contracts := flag.String("contracts", os.Getenv("SOROSCAN_CONTRACTS"), "Comma-separated contract ids to track, id or id=name")
	pollInterval := flag.Duration("poll-interval", ingest.DefaultInterval, "Event poll interval")
	listenAddr := flag.String("listen-addr", ":8080", "Query endpoint HTTP address")
	metricsAddr := flag.String("metrics-addr", ":9090", "Prometheus metrics HTTP address")
	useMemory := flag.Bool("use-memory", false, "Use in-memory storage instead of PostgreSQL")

	flag.Parse()

	// Setup logger
	logger := log.New(os.Stdout, "[server] ", log.LstdFlags)

	// Validate required flags
	if *rpcEndpoint == "" {
		logger.Fatal("--rpc-endpoint is required")
	}
	if !*useMemory && *postgresDSN == "" {
		logger.Fatal("--postgres-dsn is required (use --use-memory for in-memory storage)")
	}

	// Create context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle shutdown signals
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Printf("Received signal %v, shutting down...", sig)
		cancel()
	}()

	// Create stores
	var (
		eventStore    storage.EventStore = memory.NewEventStore()
		contractStore storage.ContractStore = memory.NewContractStore()
		archiveStore  storage.EventStore
	)
	if !*useMemory {
		pool, err := pgstore.NewPool(ctx, *postgresDSN)
		if err != nil {
			logger.Fatalf("connect to postgres: %v", err)
		}
		defer pool.Close()

		if err := migrations.RunPostgresMigrations(ctx, pool); err != nil {
			logger.Fatalf("apply postgres migrations: %v", err)
		}
		eventStore = pgstore.NewEventStore(pool)
		contractStore = pgstore.NewContractStore(pool)
	}
	if *clickhouseDSN != "" {
		conn, err := migrations.RunClickhouseMigrations(ctx, *clickhouseDSN)
		if err != nil {
			logger.Fatalf("prepare clickhouse archive: %v", err)
		}
		defer conn.Close()
		archiveStore = chstore.NewEventStore(conn)
	}

	queryStore, err := selectQueryStore(*queryBackend, eventStore, archiveStore)
	if err != nil {
		logger.Fatal(err)
	}

	// Register tracked contracts
	if err := seedContracts(ctx, contractStore, *contracts); err != nil {
		logger.Fatalf("register contracts: %v", err)
	}

	metrics := observability.NewMetrics("")

	// Start the ingest poller
	poller := ingest.NewPoller(ingest.PollerConfig{
		Client:    ingest.NewHTTPClient(*rpcEndpoint),
		Events:    eventStore,
		Archive:   archiveStore,
		Contracts: contractStore,
		Interval:  *pollInterval,
		Metrics:   metrics,
		Logger:    log.New(os.Stdout, "[ingest] ", log.LstdFlags),
	})
	go poller.Run(ctx)

	// Start the metrics endpoint
	metricsSrv := &http.Server{Addr: *metricsAddr, Handler: observability.Handler()}
	go func() {
		logger.Printf("Metrics listening on %s", *metricsAddr)
		if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Printf("metrics server: %v", err)
		}
	}()

	// Start the query endpoint
	querySrv := &http.Server{
		Addr:    *listenAddr,
		Handler: api.NewServer(queryStore, contractStore, metrics, log.New(os.Stdout, "[api] ", log.LstdFlags)),
	}
	go func() {
		logger.Printf("Query endpoint listening on %s", *listenAddr)
		if err := querySrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Printf("query server: %v", err)
			cancel()
		}
	}()

	<-ctx.Done()

	// Graceful shutdown
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := querySrv.Shutdown(shutdownCtx); err != nil {
		logger.Printf("shutdown query server: %v", err)
	}
	if err := metricsSrv.Shutdown(shutdownCtx); err != nil {
		logger.Printf("shutdown metrics server: %v", err)
	}
	logger.Println("Shutdown complete")
}

// selectQueryStore picks the event store the query endpoint reads from.
// The ClickHouse backend reuses the archive connection, so it is only
// available when an archive DSN was configured.
func selectQueryStore(backend string, primary, archive storage.EventStore) (storage.EventStore, error) {
	switch backend {
	case "", "postgres":
		return primary, nil
	case "clickhouse":
		if archive == nil {
			return nil, errors.New("--query-backend=clickhouse requires --clickhouse-dsn")
		}
		return archive, nil
	default:
		return nil, fmt.Errorf("unknown query backend %q", backend)
	}
}

// seedContracts registers the contracts named on the command line. Already
// registered contracts are left untouched.
func seedContracts(ctx context.Context, store storage.ContractStore, spec string) error {
	for _, entry := range strings.Split(spec, ",") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}

		id, name := entry, ""
		if i := strings.Index(entry, "="); i >= 0 {
			id, name = entry[:i], entry[i+1:]
		}
		if !strkey.IsValidContractID(id) {
			return fmt.Errorf("invalid contract id %q", id)
		}

		err := store.Put(ctx, &domain.Contract{
			ContractID: id,
			Name:       name,
			IsActive:   true,
			CreatedAt:  time.Now().UTC(),
		})
		if err != nil && !errors.Is(err, storage.ErrDuplicateKey) {
			return fmt.Errorf("register contract %s: %w", id, err)
		}
	}
	return nil
}

// loadEnvFile loads environment variables from .env file if it exists.
func loadEnvFile() {
	data, err := os.ReadFile(".env")
	if err != nil {
		return // File doesn't exist, use system env vars
	}

	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		parts := strings.SplitN(line, "=", 2)
		if len(parts) != 2 {
			continue
		}

		key := strings.TrimSpace(parts[0])
		value := strings.TrimSpace(parts[1])

		// Don't override existing env vars
		if os.Getenv(key) == "" {
			os.Setenv(key, value)
		}
	}
}
