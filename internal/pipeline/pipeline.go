package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"

	"github.com/couchcryptid/climate-anomaly-etl/internal/domain"
	"github.com/couchcryptid/climate-anomaly-etl/internal/observability"
)

// Acquirer fetches the gridded inputs into the data directory.
type Acquirer interface {
	Acquire(ctx context.Context) error
}

// Publisher persists the canonical artifacts of a run.
type Publisher interface {
	Publish(ds domain.Dataset, enc domain.EncodedDataset, m domain.Manifest) error
}

// FeatureSink stores dataset rows outside the artifact directory.
type FeatureSink interface {
	SaveRun(ctx context.Context, runID string, ds domain.Dataset) error
}

// Notifier announces a published dataset.
type Notifier interface {
	Notify(ctx context.Context, event domain.DatasetEvent) error
}

// Inputs names the two gridded files and where artifacts are published.
type Inputs struct {
	LocalPath   string
	TelePath    string
	ArtifactDir string
}

// Option configures optional pipeline collaborators.
type Option func(*Pipeline)

// WithAcquirer enables the acquire stage.
func WithAcquirer(a Acquirer) Option { return func(p *Pipeline) { p.acquirer = a } }

// WithFeatureSink stores every published dataset in s.
func WithFeatureSink(s FeatureSink) Option { return func(p *Pipeline) { p.features = s } }

// WithNotifier announces every published dataset through n.
func WithNotifier(n Notifier) Option { return func(p *Pipeline) { p.notifier = n } }

// WithClock replaces the clock used for stage timings.
func WithClock(c clockwork.Clock) Option { return func(p *Pipeline) { p.clock = c } }

// WithRunIDs replaces the run ID generator.
func WithRunIDs(next func() string) Option { return func(p *Pipeline) { p.newRunID = next } }

// Pipeline runs acquire, build, encode and publish as one unit. Runs are
// serialized.
type Pipeline struct {
	acquirer  Acquirer
	builder   *Builder
	publisher Publisher
	features  FeatureSink
	notifier  Notifier
	inputs    Inputs
	logger    *slog.Logger
	metrics   *observability.Metrics
	clock     clockwork.Clock
	newRunID  func() string

	mu    sync.Mutex
	ready atomic.Bool
}

// New creates a Pipeline with the given stages and observability.
func New(b *Builder, pub Publisher, inputs Inputs, logger *slog.Logger, metrics *observability.Metrics, opts ...Option) *Pipeline {
	p := &Pipeline{
		builder:   b,
		publisher: pub,
		inputs:    inputs,
		logger:    logger,
		metrics:   metrics,
		clock:     clockwork.NewRealClock(),
		newRunID:  uuid.NewString,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// CheckReadiness returns nil once a dataset has been published by this
// process.
func (p *Pipeline) CheckReadiness(_ context.Context) error {
	if !p.ready.Load() {
		return errors.New("no dataset published yet")
	}
	return nil
}

// Ready reports whether a run has published artifacts.
func (p *Pipeline) Ready() bool { return p.ready.Load() }

// RunOnce executes one run. With acquire set and an Acquirer configured the
// inputs are downloaded first. The manifest is returned whenever artifacts
// were published, even if a later sink failed.
func (p *Pipeline) RunOnce(ctx context.Context, acquire bool) (domain.Manifest, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.metrics.PipelineRunning.Set(1)
	defer p.metrics.PipelineRunning.Set(0)

	runID := p.newRunID()
	logger := p.logger.With("run_id", runID)
	logger.Info("pipeline run started", "acquire", acquire && p.acquirer != nil)

	ds, m, err := p.publish(ctx, runID, acquire, logger)
	if err != nil {
		p.metrics.RunsTotal.WithLabelValues("error").Inc()
		logger.Error("pipeline run failed", "error", err)
		return domain.Manifest{}, err
	}
	p.ready.Store(true)
	p.metrics.LastSuccess.Set(float64(p.clock.Now().Unix()))

	if err := p.deliver(ctx, ds, m, logger); err != nil {
		p.metrics.RunsTotal.WithLabelValues("sink_error").Inc()
		return m, err
	}
	p.metrics.RunsTotal.WithLabelValues("success").Inc()
	logger.Info("pipeline run complete", "rows", m.Rows)
	return m, nil
}

// publish runs every stage up to and including the artifact store.
func (p *Pipeline) publish(ctx context.Context, runID string, acquire bool, logger *slog.Logger) (domain.Dataset, domain.Manifest, error) {
	if acquire && p.acquirer != nil {
		if err := p.stage("acquire", func() error { return p.acquirer.Acquire(ctx) }); err != nil {
			return domain.Dataset{}, domain.Manifest{}, fmt.Errorf("acquire: %w", err)
		}
	}
	if err := ctx.Err(); err != nil {
		return domain.Dataset{}, domain.Manifest{}, err
	}

	var (
		ds     domain.Dataset
		report domain.BuildReport
	)
	err := p.stage("build", func() error {
		var err error
		ds, report, err = p.builder.Build(p.inputs.LocalPath, p.inputs.TelePath)
		return err
	})
	if err != nil {
		return domain.Dataset{}, domain.Manifest{}, fmt.Errorf("build: %w", err)
	}
	p.recordReport(report)

	var enc domain.EncodedDataset
	err = p.stage("encode", func() error {
		var err error
		enc, err = domain.Encode(ds)
		return err
	})
	if err != nil {
		return domain.Dataset{}, domain.Manifest{}, fmt.Errorf("encode: %w", err)
	}
	logger.Info("dataset encoded", "rows", enc.Rows(), "features", domain.NumFeatures, "classes", domain.NumClasses)

	m := domain.NewManifest(runID, p.inputs.LocalPath, p.inputs.TelePath, ds, enc, report)
	if err := p.stage("publish", func() error { return p.publisher.Publish(ds, enc, m) }); err != nil {
		return domain.Dataset{}, domain.Manifest{}, fmt.Errorf("publish: %w", err)
	}
	return ds, m, nil
}

// deliver feeds the published dataset to the optional sinks. Each sink runs
// even if an earlier one failed.
func (p *Pipeline) deliver(ctx context.Context, ds domain.Dataset, m domain.Manifest, logger *slog.Logger) error {
	var errs []error
	if p.features != nil {
		if err := p.stage("feature_store", func() error { return p.features.SaveRun(ctx, m.RunID, ds) }); err != nil {
			logger.Error("feature store write failed", "error", err)
			errs = append(errs, fmt.Errorf("feature store: %w", err))
		}
	}
	if p.notifier != nil {
		event := domain.NewDatasetEvent(p.inputs.ArtifactDir, m)
		if err := p.stage("notify", func() error { return p.notifier.Notify(ctx, event) }); err != nil {
			logger.Error("dataset notification failed", "error", err)
			errs = append(errs, fmt.Errorf("notify: %w", err))
		}
	}
	return errors.Join(errs...)
}

func (p *Pipeline) stage(name string, fn func() error) error {
	start := p.clock.Now()
	err := fn()
	p.metrics.StageDuration.WithLabelValues(name).Observe(p.clock.Since(start).Seconds())
	return err
}

func (p *Pipeline) recordReport(r domain.BuildReport) {
	p.metrics.DatasetRows.WithLabelValues("local").Set(float64(r.LocalTimesteps))
	p.metrics.DatasetRows.WithLabelValues("teleconnection").Set(float64(r.TeleTimesteps))
	p.metrics.DatasetRows.WithLabelValues("joined").Set(float64(r.JoinedRows))
	p.metrics.DatasetRows.WithLabelValues("dropped").Set(float64(r.DroppedRows))
	p.metrics.DatasetRows.WithLabelValues("kept").Set(float64(r.KeptRows))
	p.metrics.PositiveLabels.Set(float64(r.PositiveRows))
}
