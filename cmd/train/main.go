// Command train splits the published arrays 80/20 with a fixed seed and hands
// them to the external variational-classifier trainer named by TRAINER_CMD.
//
// Usage:
//
//	TRAINER_CMD="python train_vqc.py" go run ./cmd/train
package main

import (
	"context"
	"flag"
	"fmt"
	"math/rand"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	sharedobs "github.com/couchcryptid/storm-data-shared/observability"

	"github.com/couchcryptid/climate-anomaly-etl/internal/adapter/artifact"
	"github.com/couchcryptid/climate-anomaly-etl/internal/config"
	"github.com/couchcryptid/climate-anomaly-etl/internal/training"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "train: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	workDir := flag.String("workdir", "", "directory for the split arrays (default: ARTIFACT_DIR/split)")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if cfg.TrainerCmd == "" {
		return fmt.Errorf("TRAINER_CMD is required")
	}
	logger := sharedobs.NewLogger(cfg.LogLevel, cfg.LogFormat)

	a, err := artifact.NewStore(cfg.ArtifactDir, logger).Load()
	if err != nil {
		return err
	}
	logger.Info("artifacts loaded", "run_id", a.Manifest.RunID, "rows", a.Manifest.Rows)

	split, err := training.TrainTestSplit(a.Features, a.Labels, cfg.TrainTestFraction, rand.New(rand.NewSource(cfg.RandomSeed)))
	if err != nil {
		return err
	}

	dir := *workDir
	if dir == "" {
		dir = filepath.Join(cfg.ArtifactDir, "split")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create work dir: %w", err)
	}
	trainer, err := training.NewExecTrainer(cfg.TrainerCmd, dir, logger)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	res, err := trainer.Train(ctx, cfg.Training, split)
	if err != nil {
		return err
	}
	logger.Info("training complete",
		"train_rows", len(split.TrainIdx),
		"test_rows", len(split.TestIdx),
		"train_score", res.TrainScore,
		"test_score", res.TestScore,
	)
	fmt.Printf("train accuracy: %.4f\n", res.TrainScore)
	fmt.Printf("test accuracy:  %.4f\n", res.TestScore)
	return nil
}
