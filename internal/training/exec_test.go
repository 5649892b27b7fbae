package training

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"math/rand"
	"os"
	"path/filepath"
	"testing"

	"github.com/sbinet/npyio"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

func writeScript(t *testing.T, dir, body string) string {
	t.Helper()
	path := filepath.Join(dir, "trainer.sh")
	require.NoError(t, os.WriteFile(path, []byte("#!/bin/sh\n"+body), 0o755))
	return path
}

func testSplit(t *testing.T) Split {
	t.Helper()
	x, y := indexedData(10)
	s, err := TrainTestSplit(x, y, 0.2, rand.New(rand.NewSource(42)))
	require.NoError(t, err)
	return s
}

func TestExecTrainer_Train(t *testing.T) {
	dir := t.TempDir()
	script := writeScript(t, dir, `cat > job.json
echo '{"train_score":0.875,"test_score":0.5}'
`)
	trainer, err := NewExecTrainer("sh "+script, dir, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)

	cfg := Config{FeatureMapReps: 1, AnsatzReps: 1, Optimizer: "COBYLA", MaxIter: 50, Backend: "aer_simulator"}
	split := testSplit(t)

	res, err := trainer.Train(context.Background(), cfg, split)
	require.NoError(t, err)
	assert.Equal(t, Result{TrainScore: 0.875, TestScore: 0.5}, res)

	raw, err := os.ReadFile(filepath.Join(dir, "job.json"))
	require.NoError(t, err)
	var job Job
	require.NoError(t, json.Unmarshal(raw, &job))
	assert.Equal(t, cfg, job.Config)
	assert.Equal(t, filepath.Join(dir, XTestFile), job.XTest)

	f, err := os.Open(job.XTest)
	require.NoError(t, err)
	defer f.Close()
	var xTest mat.Dense
	require.NoError(t, npyio.Read(f, &xTest))
	assert.True(t, mat.Equal(split.XTest, &xTest))
}

func TestExecTrainer_CommandFails(t *testing.T) {
	dir := t.TempDir()
	script := writeScript(t, dir, "echo 'backend unavailable' >&2\nexit 3\n")
	trainer, err := NewExecTrainer("sh "+script, dir, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)

	_, err = trainer.Train(context.Background(), Config{}, testSplit(t))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "backend unavailable")
}

func TestExecTrainer_BadOutput(t *testing.T) {
	dir := t.TempDir()
	script := writeScript(t, dir, "cat > /dev/null\necho 'training done'\n")
	trainer, err := NewExecTrainer("sh "+script, dir, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)

	_, err = trainer.Train(context.Background(), Config{}, testSplit(t))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "decode trainer result")
}

func TestNewExecTrainer_EmptyCommand(t *testing.T) {
	_, err := NewExecTrainer("  ", t.TempDir(), slog.Default())
	require.Error(t, err)
}
