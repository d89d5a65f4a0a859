package logging

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestForServiceCarriesServiceAttribute(t *testing.T) {
	logger := ForService("detection")
	require.NotNil(t, logger)
	assert.True(t, logger.Enabled(context.Background(), levelFromEnv()))
}

func TestEnableFileLoggingWritesRecords(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "countnet.log")

	closer, err := EnableFileLogging(path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = closer() })

	ForService("pipeline").Info("count produced", "object_type", "car")

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "count produced")
	assert.Contains(t, string(data), `"service":"pipeline"`)
	assert.Contains(t, string(data), `"object_type":"car"`)
}
