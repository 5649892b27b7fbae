package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/couchcryptid/climate-anomaly-etl/internal/domain"
)

// Runner executes one pipeline run.
type Runner interface {
	RunOnce(ctx context.Context, acquire bool) (domain.Manifest, error)
}

// Scheduler triggers runs on a standard five-field cron schedule. A tick that
// fires while the previous run is still going is skipped.
type Scheduler struct {
	cron     *cron.Cron
	schedule cron.Schedule
	runner   Runner
	acquire  bool
	logger   *slog.Logger
}

// NewScheduler parses a five-field cron expression and binds it to runner.
func NewScheduler(expr string, runner Runner, acquire bool, logger *slog.Logger) (*Scheduler, error) {
	schedule, err := cron.ParseStandard(expr)
	if err != nil {
		return nil, fmt.Errorf("parse schedule %q: %w", expr, err)
	}
	cl := cronLogger{logger: logger}
	return &Scheduler{
		cron: cron.New(cron.WithLogger(cl), cron.WithChain(
			cron.Recover(cl),
			cron.SkipIfStillRunning(cl),
		)),
		schedule: schedule,
		runner:   runner,
		acquire:  acquire,
		logger:   logger,
	}, nil
}

// Run starts the schedule and blocks until ctx is cancelled, then waits for
// an in-flight run to finish. Scheduled runs receive ctx.
func (s *Scheduler) Run(ctx context.Context) error {
	s.cron.Schedule(s.schedule, cron.FuncJob(func() { s.tick(ctx) }))
	s.cron.Start()
	s.logger.Info("scheduler started", "next_run", s.schedule.Next(time.Now()), "acquire", s.acquire)

	<-ctx.Done()
	s.logger.Info("scheduler stopping", "reason", ctx.Err())
	<-s.cron.Stop().Done()
	return nil
}

func (s *Scheduler) tick(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}
	if _, err := s.runner.RunOnce(ctx, s.acquire); err != nil {
		s.logger.Error("scheduled run failed", "error", err)
	}
}

// cronLogger routes cron's internal logging to slog.
type cronLogger struct {
	logger *slog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.logger.Debug("cron: "+msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.logger.Error("cron: "+msg, append([]any{"error", err}, keysAndValues...)...)
}
