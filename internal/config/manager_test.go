package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"video-parser/pkg/models"
)

func TestLoadWritesDefaultConfig(t *testing.T) {
	dir := t.TempDir()

	cfg, err := NewManager().Load(dir)
	require.NoError(t, err)

	assert.FileExists(t, filepath.Join(dir, "config.yaml"))
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, 15, cfg.HTTP.FetchTimeout)
	assert.True(t, cfg.Extract.JSFallback)
	assert.Equal(t, 4, cfg.Batch.MaxWorkers)
	for _, p := range models.AllPlatforms {
		assert.True(t, cfg.Platform(p).Enabled, p)
	}

	// The generated file loads back to the same settings
	again, err := NewManager().Load(dir)
	require.NoError(t, err)
	assert.Equal(t, cfg.HTTP, again.HTTP)
	assert.Equal(t, cfg.RateLimit.WhitelistedIPs, again.RateLimit.WhitelistedIPs)
}

func TestLoadReadsFileAndEnv(t *testing.T) {
	dir := t.TempDir()
	content := `
server:
  port: 9000
http:
  api_timeout: 7
platforms:
  weibo:
    enabled: false
    cookie: "from-file"
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(content), 0644))

	t.Setenv("VP_SERVER_HOST", "127.0.0.1")
	t.Setenv("BILIBILI_COOKIE", "SESSDATA=abc")

	cfg, err := NewManager().Load(dir)
	require.NoError(t, err)

	assert.Equal(t, 9000, cfg.Server.Port)
	assert.Equal(t, "127.0.0.1", cfg.Server.Host)
	assert.Equal(t, 7, cfg.HTTP.APITimeout)
	assert.False(t, cfg.Platform(models.PlatformWeibo).Enabled)
	assert.Equal(t, "from-file", cfg.Platform(models.PlatformWeibo).Cookie)
	assert.Equal(t, "SESSDATA=abc", cfg.Platform(models.PlatformBilibili).Cookie)

	ec := cfg.ExtractorConfig(models.PlatformBilibili)
	assert.Equal(t, "SESSDATA=abc", ec.Cookie)
}

func TestUpdateConfig(t *testing.T) {
	m := NewManager()
	_, err := m.Load(t.TempDir())
	require.NoError(t, err)

	require.NoError(t, m.UpdateConfig(map[string]interface{}{"batch.max_workers": 9}))
	assert.Equal(t, 9, m.GetConfig().Batch.MaxWorkers)
}
