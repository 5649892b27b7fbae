// Command climate-etl runs the feature pipeline as a service: it rebuilds the
// quantum-ready dataset on a cron schedule and serves health, readiness,
// metrics and the current manifest over HTTP.
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	sharedobs "github.com/couchcryptid/storm-data-shared/observability"

	"github.com/couchcryptid/climate-anomaly-etl/internal/adapter/artifact"
	"github.com/couchcryptid/climate-anomaly-etl/internal/adapter/cds"
	"github.com/couchcryptid/climate-anomaly-etl/internal/adapter/httpadapter"
	kafkaadapter "github.com/couchcryptid/climate-anomaly-etl/internal/adapter/kafka"
	"github.com/couchcryptid/climate-anomaly-etl/internal/adapter/netcdf"
	"github.com/couchcryptid/climate-anomaly-etl/internal/adapter/postgres"
	"github.com/couchcryptid/climate-anomaly-etl/internal/config"
	"github.com/couchcryptid/climate-anomaly-etl/internal/observability"
	"github.com/couchcryptid/climate-anomaly-etl/internal/pipeline"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := sharedobs.NewLogger(cfg.LogLevel, cfg.LogFormat)
	metrics := observability.NewMetrics()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store := artifact.NewStore(cfg.ArtifactDir, logger)
	builder := pipeline.NewBuilder(netcdf.NewReader(logger), cfg.LabelRule(), logger)
	inputs := pipeline.Inputs{
		LocalPath:   cfg.LocalPath(),
		TelePath:    cfg.TeleconnectionPath(),
		ArtifactDir: cfg.ArtifactDir,
	}

	var opts []pipeline.Option

	// Acquisition is enabled by CDS_KEY.
	if cfg.CDSKey != "" {
		catalog, err := buildCatalog(cfg)
		if err != nil {
			logger.Error("failed to load request catalog", "error", err)
			os.Exit(1)
		}
		client := cds.NewClient(cfg.CDSURL, cfg.CDSKey, cfg.CDSTimeout, cfg.CDSPollInterval, metrics, logger)
		opts = append(opts, pipeline.WithAcquirer(cds.Acquirer{Client: client, Catalog: catalog, Dir: cfg.DataDir}))
		logger.Info("cds acquisition enabled", "requests", len(catalog.Requests), "on_schedule", cfg.AcquireOnSchedule)
	} else {
		logger.Info("cds acquisition disabled")
	}

	var features *postgres.FeatureStore
	if cfg.FeatureStoreDSN != "" {
		features, err = postgres.Open(ctx, cfg.FeatureStoreDSN, logger)
		if err != nil {
			logger.Error("failed to open feature store", "error", err)
			os.Exit(1)
		}
		opts = append(opts, pipeline.WithFeatureSink(features))
		logger.Info("feature store enabled")
	}

	var notifier *kafkaadapter.Notifier
	if len(cfg.KafkaBrokers) > 0 {
		notifier = kafkaadapter.NewNotifier(cfg.KafkaBrokers, cfg.KafkaTopic, logger)
		opts = append(opts, pipeline.WithNotifier(notifier))
		logger.Info("dataset notifications enabled", "brokers", cfg.KafkaBrokers, "topic", cfg.KafkaTopic)
	}

	p := pipeline.New(builder, store, inputs, logger, metrics, opts...)

	scheduler, err := pipeline.NewScheduler(cfg.RebuildSchedule, p, cfg.AcquireOnSchedule, logger)
	if err != nil {
		logger.Error("failed to create scheduler", "error", err)
		os.Exit(1)
	}

	srv := httpadapter.NewServer(cfg.HTTPAddr, p, store, p, logger)

	// Start HTTP server.
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
		}
	}()

	// Build once at startup from whatever inputs are on disk.
	go func() {
		if _, err := p.RunOnce(ctx, false); err != nil {
			logger.Warn("startup build failed, waiting for schedule", "error", err)
		}
	}()

	schedulerDone := make(chan struct{})
	go func() {
		defer close(schedulerDone)
		if err := scheduler.Run(ctx); err != nil {
			logger.Error("scheduler error", "error", err)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "error", err)
	}
	select {
	case <-schedulerDone:
	case <-shutdownCtx.Done():
		logger.Warn("scheduled run still in flight at shutdown deadline")
	}
	if notifier != nil {
		if err := notifier.Close(); err != nil {
			logger.Error("kafka writer close error", "error", err)
		}
	}
	if features != nil {
		if err := features.Close(); err != nil {
			logger.Error("feature store close error", "error", err)
		}
	}

	logger.Info("shutdown complete")
}

// buildCatalog loads the request catalog and keeps the two ERA5 requests
// that feed the builder.
func buildCatalog(cfg *config.Config) (cds.Catalog, error) {
	var (
		catalog cds.Catalog
		err     error
	)
	if cfg.RequestsFile != "" {
		catalog, err = cds.LoadCatalog(cfg.RequestsFile)
	} else {
		catalog, err = cds.DefaultCatalog()
	}
	if err != nil {
		return cds.Catalog{}, err
	}
	var names []string
	for _, r := range catalog.Requests {
		if r.Target == cfg.LocalFile || r.Target == cfg.TeleconnectionFile {
			names = append(names, r.Name)
		}
	}
	if len(names) == 0 {
		return cds.Catalog{}, errors.New("no catalog request targets LOCAL_FILE or TELECONNECTION_FILE")
	}
	return catalog.Select(names...)
}
