package domain

import (
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewManifest(t *testing.T) {
	fixedTime := time.Date(2024, time.March, 5, 9, 30, 0, 0, time.UTC)
	SetClock(clockwork.NewFakeClockAt(fixedTime))
	defer SetClock(nil)

	ds := encodeFixture()
	enc, err := Encode(ds)
	require.NoError(t, err)
	report := BuildReport{JoinedRows: 4, DroppedRows: 1, KeptRows: 3, PositiveRows: 1}

	m := NewManifest("run-1", "local.nc", "tele.nc", ds, enc, report)

	assert.Equal(t, "run-1", m.RunID)
	assert.Equal(t, fixedTime, m.GeneratedAt)
	assert.Equal(t, 3, m.Rows)
	assert.Equal(t, NumFeatures, m.FeatureColumns)
	assert.Equal(t, NumClasses, m.LabelColumns)
	assert.Equal(t, []string{"sst", "relative_humidity", "sp", "ssrd"}, m.FeatureNames)
	assert.Equal(t, report, m.Report)
	assert.Same(t, enc.Scaler, m.Scaler)
	assert.Equal(t, ManifestFile, m.Files[len(m.Files)-1])
}

func TestSetClock(t *testing.T) {
	t.Run("set custom clock", func(t *testing.T) {
		fixedTime := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
		SetClock(clockwork.NewFakeClockAt(fixedTime))
		defer SetClock(nil)

		assert.Equal(t, fixedTime, clock.Now())
	})

	t.Run("reset to real clock", func(t *testing.T) {
		SetClock(clockwork.NewFakeClockAt(time.Date(2000, 1, 1, 0, 0, 0, 0, time.UTC)))
		SetClock(nil)

		assert.WithinDuration(t, time.Now(), clock.Now(), 5*time.Second)
	})
}
