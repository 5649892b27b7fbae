// Command acquire downloads the request catalog from the Copernicus Climate
// Data Store into DATA_DIR. Files already present are kept.
//
// Usage:
//
//	CDS_KEY=... go run ./cmd/acquire -only era5-local,era5-sst-atlantic
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	sharedobs "github.com/couchcryptid/storm-data-shared/observability"

	"github.com/couchcryptid/climate-anomaly-etl/internal/adapter/cds"
	"github.com/couchcryptid/climate-anomaly-etl/internal/config"
	"github.com/couchcryptid/climate-anomaly-etl/internal/observability"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "acquire: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	requests := flag.String("requests", "", "YAML request catalog (default: embedded catalog, or REQUESTS_FILE)")
	only := flag.String("only", "", "comma-separated request names to retrieve (default: all)")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if cfg.CDSKey == "" {
		return fmt.Errorf("CDS_KEY is required")
	}

	logger := sharedobs.NewLogger(cfg.LogLevel, cfg.LogFormat)
	metrics := observability.NewMetrics()

	path := *requests
	if path == "" {
		path = cfg.RequestsFile
	}
	var catalog cds.Catalog
	if path != "" {
		catalog, err = cds.LoadCatalog(path)
	} else {
		catalog, err = cds.DefaultCatalog()
	}
	if err != nil {
		return err
	}
	if catalog, err = catalog.Select(splitNames(*only)...); err != nil {
		return err
	}

	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		return fmt.Errorf("create data dir: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	client := cds.NewClient(cfg.CDSURL, cfg.CDSKey, cfg.CDSTimeout, cfg.CDSPollInterval, metrics, logger)
	paths, err := client.RetrieveAll(ctx, catalog, cfg.DataDir)
	for _, p := range paths {
		fmt.Println(p)
	}

	if cfg.PushgatewayURL != "" {
		if perr := observability.Push(context.Background(), cfg.PushgatewayURL, "climate_acquire", metrics); perr != nil {
			logger.Warn("metrics push failed", "error", perr)
		}
	}
	return err
}

func splitNames(s string) []string {
	var names []string
	for _, n := range strings.Split(s, ",") {
		if n = strings.TrimSpace(n); n != "" {
			names = append(names, n)
		}
	}
	return names
}
