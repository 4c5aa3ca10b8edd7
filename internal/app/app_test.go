package app

import (
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"video-parser/pkg/models"
)

func TestNewRegistersEnabledPlatforms(t *testing.T) {
	dir := t.TempDir()
	content := "platforms:\n  ppxia:\n    enabled: false\nbatch:\n  max_workers: 2\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(content), 0644))

	logger := zerolog.New(io.Discard)
	a, err := New(dir, &logger)
	require.NoError(t, err)
	defer a.Close()

	assert.Equal(t, 2, a.Config.Batch.MaxWorkers)
	assert.Equal(t, len(models.AllPlatforms)-1, a.Registry.Count())
	assert.False(t, a.Registry.IsPlatformSupported(models.PlatformPpxia))
	assert.True(t, a.Registry.IsPlatformSupported(models.PlatformKuaishou))
}
