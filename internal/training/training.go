// Package training hands encoded datasets to an external variational
// classifier. The circuit construction and optimizer loop belong to the
// collaborator process; this package only shapes its inputs and reads back
// the scores.
package training

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand"

	"gonum.org/v1/gonum/mat"
)

// Config describes the classifier to build. It is passed verbatim to the
// trainer collaborator.
type Config struct {
	FeatureMapReps int    `json:"feature_map_reps"`
	AnsatzReps     int    `json:"ansatz_reps"`
	Optimizer      string `json:"optimizer"`
	MaxIter        int    `json:"max_iter"`
	Backend        string `json:"backend"`
}

// Split holds row-aligned train and test partitions.
type Split struct {
	XTrain, XTest *mat.Dense
	YTrain, YTest *mat.Dense
	TrainIdx      []int
	TestIdx       []int
}

// Result is what a trainer reports back.
type Result struct {
	TrainScore float64 `json:"train_score"`
	TestScore  float64 `json:"test_score"`
}

// Trainer fits and scores a classifier on a split.
type Trainer interface {
	Train(ctx context.Context, cfg Config, split Split) (Result, error)
}

// ErrTooFewRows is returned when a split would leave either side empty.
var ErrTooFewRows = errors.New("too few rows to split")

// TrainTestSplit shuffles row indices with rng and holds out
// ceil(n*testFraction) rows for testing. The same seed always yields the same
// partition.
func TrainTestSplit(x, y mat.Matrix, testFraction float64, rng *rand.Rand) (Split, error) {
	n, _ := x.Dims()
	if ny, _ := y.Dims(); ny != n {
		return Split{}, fmt.Errorf("features have %d rows, labels %d", n, ny)
	}
	if testFraction <= 0 || testFraction >= 1 {
		return Split{}, fmt.Errorf("test fraction %g outside (0,1)", testFraction)
	}
	nTest := int(math.Ceil(float64(n) * testFraction))
	if nTest >= n {
		return Split{}, fmt.Errorf("%w: %d rows, %d held out", ErrTooFewRows, n, nTest)
	}

	perm := rng.Perm(n)
	testIdx, trainIdx := perm[:nTest], perm[nTest:]
	return Split{
		XTrain:   selectRows(x, trainIdx),
		XTest:    selectRows(x, testIdx),
		YTrain:   selectRows(y, trainIdx),
		YTest:    selectRows(y, testIdx),
		TrainIdx: trainIdx,
		TestIdx:  testIdx,
	}, nil
}

func selectRows(m mat.Matrix, idx []int) *mat.Dense {
	_, cols := m.Dims()
	out := mat.NewDense(len(idx), cols, nil)
	row := make([]float64, cols)
	for i, r := range idx {
		mat.Row(row, r, m)
		out.SetRow(i, row)
	}
	return out
}
