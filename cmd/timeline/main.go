// Package main is a terminal front end for the timeline engine: it loads a
// contract's bucketed event timeline from the query endpoint, applies zoom,
// filter and expansion choices from the command line, and prints the
// resulting tree.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"soroscan/internal/domain"
	"soroscan/internal/engine"
	"soroscan/internal/export"
	"soroscan/internal/graphql"
	"soroscan/internal/render"
)

func main() {
	endpoint := flag.String("endpoint", envOr("SOROSCAN_ENDPOINT", "http://localhost:8080"), "Query endpoint URL")
	contractID := flag.String("contract", "", "Contract id to view (required)")
	bucket := flag.String("bucket", "", "Bucket size: ONE_DAY, ONE_HOUR, THIRTY_MINUTES, FIVE_MINUTES")
	timezone := flag.String("timezone", "", "IANA timezone for bucketing and display (default UTC)")
	types := flag.String("types", "", "Comma-separated event types to filter by")
	expand := flag.String("expand", "", "Comma-separated 1-based group positions to expand")
	detail := flag.Bool("detail", true, "Fetch per-event detail for expanded groups")
	groupLimit := flag.Int("group-limit", 0, "Maximum groups to fetch (0 for server default)")
	exportFormat := flag.String("export", "", "Write the loaded timeline to a file: json or csv")
	outputDir := flag.String("output", ".", "Directory for exported files")
	timeout := flag.Duration("timeout", graphql.DefaultTimeout, "Query timeout")

	flag.Parse()

	logger := log.New(os.Stderr, "[timeline] ", 0)

	if *contractID == "" {
		logger.Fatal("--contract is required")
	}

	client := graphql.NewClient(*endpoint, graphql.WithTimeout(*timeout))
	eng, err := engine.New(engine.Config{
		ContractID:    *contractID,
		Timezone:      *timezone,
		GroupLimit:    *groupLimit,
		IncludeDetail: *detail,
	}, client)
	if err != nil {
		logger.Fatal(err)
	}

	ctx := context.Background()
	if err := eng.Load(ctx); err != nil {
		logger.Fatalf("load timeline: %v", err)
	}

	if *bucket != "" {
		if err := zoomTo(ctx, eng, *bucket); err != nil {
			logger.Fatal(err)
		}
	}

	for _, t := range splitList(*types) {
		if err := eng.ToggleEventType(ctx, t); err != nil {
			logger.Fatalf("filter %s: %v", t, err)
		}
	}

	if err := expandGroups(eng, *expand); err != nil {
		logger.Fatal(err)
	}

	printTree(eng.Render())

	if msg, isErr := eng.StatusLine(); msg != "" {
		prefix := ""
		if isErr {
			prefix = "error: "
		}
		fmt.Fprintln(os.Stderr, prefix+msg)
	}

	if *exportFormat != "" {
		if err := writeExport(eng, *exportFormat, *outputDir); err != nil {
			logger.Fatal(err)
		}
	}
}

// zoomTo steps the engine to the requested granularity.
func zoomTo(ctx context.Context, eng *engine.Engine, name string) error {
	target, err := domain.ParseBucketSize(name)
	if err != nil {
		return err
	}
	for eng.Bucket() != target {
		var err error
		if eng.Bucket().Seconds() > target.Seconds() {
			err = eng.ZoomIn(ctx)
		} else {
			err = eng.ZoomOut(ctx)
		}
		if err != nil {
			return fmt.Errorf("zoom to %s: %w", name, err)
		}
	}
	return nil
}

// expandGroups opens the groups at the given 1-based positions.
func expandGroups(eng *engine.Engine, spec string) error {
	positions := splitList(spec)
	if len(positions) == 0 {
		return nil
	}

	tree := eng.Render()
	for _, p := range positions {
		n, err := strconv.Atoi(p)
		if err != nil || n < 1 || n > len(tree.Groups) {
			return fmt.Errorf("invalid group position %q", p)
		}
		eng.ToggleGroup(tree.Groups[n-1].Key)
	}
	return nil
}

func printTree(tree *render.Tree) {
	if tree.Placeholder != "" {
		fmt.Println(tree.Placeholder)
		return
	}

	for _, g := range tree.Groups {
		fmt.Printf("%s %s  %s  (%s)\n", g.Branch, g.TimeRange, g.Summary, g.Total)
		if !g.Expanded {
			continue
		}
		if g.DetailPlaceholder != "" {
			fmt.Printf("     %s\n", g.DetailPlaceholder)
			continue
		}
		for _, d := range g.Details {
			fmt.Printf("     %s  %-12s  ledger %d  %s  %s\n",
				d.Timestamp, d.EventType, d.Ledger, d.TxHash, d.Payload)
		}
	}
}

func writeExport(eng *engine.Engine, format, dir string) error {
	var (
		artifact *export.Artifact
		err      error
	)
	switch strings.ToLower(format) {
	case "json":
		artifact, err = eng.ExportJSON()
	case "csv":
		artifact, err = eng.ExportCSV()
	default:
		return fmt.Errorf("unknown export format %q", format)
	}
	if err != nil {
		return err
	}

	path := filepath.Join(dir, artifact.Filename)
	if err := os.WriteFile(path, artifact.Data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	fmt.Fprintf(os.Stderr, "wrote %s\n", path)
	return nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
