package domain

// EventDatasetPublished announces a new canonical dataset.
const EventDatasetPublished = "dataset_published"

// DatasetEvent is the notification sent after artifacts are published.
type DatasetEvent struct {
	EventType   string   `json:"event_type"`
	RunID       string   `json:"run_id"`
	ArtifactDir string   `json:"artifact_dir"`
	Manifest    Manifest `json:"manifest"`
}

// NewDatasetEvent wraps a manifest published under dir.
func NewDatasetEvent(dir string, m Manifest) DatasetEvent {
	return DatasetEvent{
		EventType:   EventDatasetPublished,
		RunID:       m.RunID,
		ArtifactDir: dir,
		Manifest:    m,
	}
}
