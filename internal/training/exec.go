package training

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/sbinet/npyio"
	"gonum.org/v1/gonum/mat"
)

// Split array file names written for the trainer.
const (
	XTrainFile = "X_train.npy"
	XTestFile  = "X_test.npy"
	YTrainFile = "y_train.npy"
	YTestFile  = "y_test.npy"
)

// Job is the JSON document written to the trainer's stdin.
type Job struct {
	Config Config `json:"config"`
	XTrain string `json:"x_train"`
	XTest  string `json:"x_test"`
	YTrain string `json:"y_train"`
	YTest  string `json:"y_test"`
}

// ExecTrainer runs an external command per training job. The split arrays
// are written to WorkDir as .npy files, the Job is sent on stdin and a Result
// is expected as JSON on stdout.
type ExecTrainer struct {
	Command []string
	WorkDir string
	Logger  *slog.Logger
}

// NewExecTrainer splits a command line on whitespace.
func NewExecTrainer(command, workDir string, logger *slog.Logger) (*ExecTrainer, error) {
	args := strings.Fields(command)
	if len(args) == 0 {
		return nil, errors.New("trainer command is empty")
	}
	return &ExecTrainer{Command: args, WorkDir: workDir, Logger: logger}, nil
}

// Train implements Trainer.
func (t *ExecTrainer) Train(ctx context.Context, cfg Config, split Split) (Result, error) {
	job, err := t.writeSplit(split)
	if err != nil {
		return Result{}, err
	}
	job.Config = cfg
	stdin, err := json.Marshal(job)
	if err != nil {
		return Result{}, fmt.Errorf("encode job: %w", err)
	}

	cmd := exec.CommandContext(ctx, t.Command[0], t.Command[1:]...)
	cmd.Dir = t.WorkDir
	cmd.Stdin = bytes.NewReader(stdin)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	t.Logger.Info("trainer started", "command", t.Command[0], "optimizer", cfg.Optimizer, "max_iter", cfg.MaxIter)
	if err := cmd.Run(); err != nil {
		return Result{}, fmt.Errorf("trainer %s: %w: %s", t.Command[0], err, strings.TrimSpace(stderr.String()))
	}

	var res Result
	if err := json.Unmarshal(stdout.Bytes(), &res); err != nil {
		return Result{}, fmt.Errorf("decode trainer result: %w", err)
	}
	return res, nil
}

func (t *ExecTrainer) writeSplit(split Split) (Job, error) {
	if err := os.MkdirAll(t.WorkDir, 0o755); err != nil {
		return Job{}, fmt.Errorf("create work dir: %w", err)
	}
	job := Job{
		XTrain: filepath.Join(t.WorkDir, XTrainFile),
		XTest:  filepath.Join(t.WorkDir, XTestFile),
		YTrain: filepath.Join(t.WorkDir, YTrainFile),
		YTest:  filepath.Join(t.WorkDir, YTestFile),
	}
	for path, m := range map[string]*mat.Dense{
		job.XTrain: split.XTrain,
		job.XTest:  split.XTest,
		job.YTrain: split.YTrain,
		job.YTest:  split.YTest,
	} {
		if err := writeNpy(path, m); err != nil {
			return Job{}, err
		}
	}
	return job, nil
}

func writeNpy(path string, m *mat.Dense) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	if err := npyio.Write(f, m); err != nil {
		f.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	return f.Close()
}
