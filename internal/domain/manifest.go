package domain

import "time"

// Artifact file names shared by the store, the trainer hand-off and the
// validator.
const (
	DatasetFile  = "dataset.csv"
	FeaturesFile = "X_quantum_ready.npy"
	LabelsFile   = "y_quantum_ready.npy"
	ManifestFile = "manifest.json"
)

// Manifest describes one published run. Its presence next to the arrays marks
// the run as complete.
type Manifest struct {
	RunID          string        `json:"run_id"`
	GeneratedAt    time.Time     `json:"generated_at"`
	LocalInput     string        `json:"local_input"`
	TeleInput      string        `json:"teleconnection_input"`
	FeatureNames   []string      `json:"feature_names"`
	Rows           int           `json:"rows"`
	FeatureColumns int           `json:"feature_columns"`
	LabelColumns   int           `json:"label_columns"`
	Threshold      Threshold     `json:"threshold"`
	Scaler         *MinMaxScaler `json:"scaler"`
	Report         BuildReport   `json:"report"`
	Files          []string      `json:"files"`
}

// NewManifest summarizes a build and its encoding.
func NewManifest(runID, localInput, teleInput string, ds Dataset, enc EncodedDataset, report BuildReport) Manifest {
	_, labelCols := enc.Labels.Dims()
	return Manifest{
		RunID:          runID,
		GeneratedAt:    clock.Now().UTC(),
		LocalInput:     localInput,
		TeleInput:      teleInput,
		FeatureNames:   FeatureNames[:],
		Rows:           enc.Rows(),
		FeatureColumns: NumFeatures,
		LabelColumns:   labelCols,
		Threshold:      ds.Threshold,
		Scaler:         enc.Scaler,
		Report:         report,
		Files:          []string{DatasetFile, FeaturesFile, LabelsFile, ManifestFile},
	}
}
