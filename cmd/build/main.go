// Command build runs one feature build from the NetCDF inputs in DATA_DIR and
// publishes the quantum-ready arrays to ARTIFACT_DIR.
//
// Usage:
//
//	go run ./cmd/build [-acquire]
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	sharedobs "github.com/couchcryptid/storm-data-shared/observability"

	"github.com/couchcryptid/climate-anomaly-etl/internal/adapter/artifact"
	"github.com/couchcryptid/climate-anomaly-etl/internal/adapter/cds"
	"github.com/couchcryptid/climate-anomaly-etl/internal/adapter/netcdf"
	"github.com/couchcryptid/climate-anomaly-etl/internal/config"
	"github.com/couchcryptid/climate-anomaly-etl/internal/observability"
	"github.com/couchcryptid/climate-anomaly-etl/internal/pipeline"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "build: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	acquire := flag.Bool("acquire", false, "download missing ERA5 inputs from the CDS first (needs CDS_KEY)")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	logger := sharedobs.NewLogger(cfg.LogLevel, cfg.LogFormat)
	metrics := observability.NewMetrics()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var opts []pipeline.Option
	if *acquire {
		if cfg.CDSKey == "" {
			return fmt.Errorf("-acquire requires CDS_KEY")
		}
		catalog, err := cds.DefaultCatalog()
		if cfg.RequestsFile != "" {
			catalog, err = cds.LoadCatalog(cfg.RequestsFile)
		}
		if err != nil {
			return err
		}
		if catalog, err = catalog.Select("era5-local", "era5-sst-atlantic"); err != nil {
			return err
		}
		client := cds.NewClient(cfg.CDSURL, cfg.CDSKey, cfg.CDSTimeout, cfg.CDSPollInterval, metrics, logger)
		opts = append(opts, pipeline.WithAcquirer(cds.Acquirer{Client: client, Catalog: catalog, Dir: cfg.DataDir}))
	}

	p := pipeline.New(
		pipeline.NewBuilder(netcdf.NewReader(logger), cfg.LabelRule(), logger),
		artifact.NewStore(cfg.ArtifactDir, logger),
		pipeline.Inputs{LocalPath: cfg.LocalPath(), TelePath: cfg.TeleconnectionPath(), ArtifactDir: cfg.ArtifactDir},
		logger, metrics, opts...,
	)

	m, err := p.RunOnce(ctx, *acquire)

	if cfg.PushgatewayURL != "" {
		if perr := observability.Push(context.Background(), cfg.PushgatewayURL, "climate_build", metrics); perr != nil {
			logger.Warn("metrics push failed", "error", perr)
		}
	}
	if err != nil {
		return err
	}

	fmt.Printf("run %s\n", m.RunID)
	fmt.Printf("X shape: (%d, %d)\n", m.Rows, m.FeatureColumns)
	fmt.Printf("y shape: (%d, %d)\n", m.Rows, m.LabelColumns)
	fmt.Printf("anomalies: %d of %d rows (threshold %.3f K)\n", m.Report.PositiveRows, m.Rows, m.Threshold.Value)
	return nil
}
