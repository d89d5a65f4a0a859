package conf

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultSettingsAreValid(t *testing.T) {
	require.NoError(t, Validate(Default()))
}

func TestValidateRejectsBadThresholds(t *testing.T) {
	s := Default()
	s.Detector.Threshold = 1.5
	assert.Error(t, Validate(s))

	s = Default()
	s.Safety.BlockThreshold = -0.1
	assert.Error(t, Validate(s))
}

func TestValidateRequiresOneDatastore(t *testing.T) {
	s := Default()
	s.Output.SQLite.Enabled = false
	assert.Error(t, Validate(s), "no datastore enabled")

	s = Default()
	s.Output.MySQL.Enabled = true
	assert.Error(t, Validate(s), "two datastores enabled")
}

func TestValidateRequiresInferenceSlot(t *testing.T) {
	s := Default()
	s.Detector.InferenceSlots = 0
	assert.Error(t, Validate(s))
}

func TestDataDirectoriesDeriveFromDataDir(t *testing.T) {
	s := Default()
	s.Main.DataDir = t.TempDir()
	require.NoError(t, s.EnsureDirectories())
	assert.DirExists(t, s.UploadsDir())
	assert.DirExists(t, s.SegmentedDir())
	assert.DirExists(t, s.FewShotDir())
}
