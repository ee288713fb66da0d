package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.True(t, cfg.IsDefault())
	assert.True(t, cfg.GetFollowRedirects())
	assert.False(t, cfg.GetStatusErrors())
	assert.Equal(t, 30*time.Second, cfg.TimeoutDuration())
}

func TestFindAndLoadConfig(t *testing.T) {
	dir := t.TempDir()

	cfg, err := FindAndLoadConfig(dir)
	require.NoError(t, err)
	assert.True(t, cfg.IsDefault())

	content := `{
  "timeout": 5000,
  "root": "/srv/files",
  "statusErrors": true,
  "variables": {"baseUrl": "https://example.test"},
  "environments": {"staging": {"baseUrl": "https://staging.example.test"}}
}`
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".hitlambda.json"), []byte(content), 0o644))

	cfg, err = FindAndLoadConfig(dir)
	require.NoError(t, err)
	assert.Equal(t, 5000, cfg.Timeout)
	assert.Equal(t, "/srv/files", cfg.Root)
	assert.True(t, cfg.GetStatusErrors())
	assert.Equal(t, "https://example.test", cfg.Variables["baseUrl"])
	assert.Contains(t, cfg.Environments, "staging")
	// untouched fields keep their defaults
	assert.Equal(t, 10, cfg.MaxRedirects)
	assert.False(t, cfg.IsDefault())
}

func TestLoad_InvalidJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "hitlambda.config.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"timeout":`), 0o644))

	_, err := Load(path)
	assert.Error(t, err)
}

func TestApplyEnv(t *testing.T) {
	t.Setenv("HITLAMBDA_TIMEOUT", "2s")
	t.Setenv("HITLAMBDA_ROOT", "/data")
	t.Setenv("HITLAMBDA_STATUS_ERRORS", "true")
	t.Setenv("HITLAMBDA_DEBUG", "true")

	cfg, err := DefaultConfig().ApplyEnv()
	require.NoError(t, err)

	assert.Equal(t, 2000, cfg.Timeout)
	assert.Equal(t, "/data", cfg.Root)
	assert.True(t, cfg.GetStatusErrors())
	assert.True(t, cfg.GetDebug())
	assert.False(t, cfg.GetNoColor())
	assert.Equal(t, "console", cfg.Output)
}

func TestApplyEnv_Invalid(t *testing.T) {
	t.Setenv("HITLAMBDA_TIMEOUT", "soon")

	_, err := DefaultConfig().ApplyEnv()
	assert.Error(t, err)
}

func TestMerge(t *testing.T) {
	base := DefaultConfig()
	base.Variables = map[string]any{"a": 1, "b": 1}

	merged := base.Merge(&Config{
		Proxy:           "http://proxy:8080",
		FollowRedirects: BoolPtr(false),
		Variables:       map[string]any{"b": 2},
	})

	assert.Equal(t, "http://proxy:8080", merged.Proxy)
	assert.False(t, merged.GetFollowRedirects())
	assert.Equal(t, map[string]any{"a": 1, "b": 2}, merged.Variables)
	assert.Equal(t, 30000, merged.Timeout)

	// the receiver is not modified
	assert.Equal(t, map[string]any{"a": 1, "b": 1}, base.Variables)
	assert.True(t, base.GetFollowRedirects())

	assert.Same(t, base, base.Merge(nil))
}

func TestSaveConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".hitlambda.json")
	cfg := DefaultConfig()
	cfg.Root = "/files"
	require.NoError(t, cfg.SaveConfig(path))

	loaded, err := loadConfigFromFile(path)
	require.NoError(t, err)
	assert.Equal(t, "/files", loaded.Root)
}

func TestStressProfiles(t *testing.T) {
	dir := t.TempDir()
	content := `{
  "stressProfiles": {
    "smoke": {"duration": "10s", "rate": 5},
    "load": {"duration": "5m", "vus": 50, "thinkTime": "1s", "thresholds": {"p95": "200ms"}}
  }
}`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "hitlambda.config.json"), []byte(content), 0o644))

	cfg, err := FindAndLoadConfig(dir)
	require.NoError(t, err)
	assert.False(t, cfg.IsDefault())
	require.Len(t, cfg.StressProfiles, 2)
	assert.Equal(t, 50, cfg.StressProfiles["load"].VUs)
	assert.Equal(t, "200ms", cfg.StressProfiles["load"].Thresholds["p95"])

	merged := cfg.Merge(&Config{StressProfiles: map[string]StressProfile{"smoke": {Duration: "1s"}}})
	assert.Equal(t, "1s", merged.StressProfiles["smoke"].Duration)
	assert.Zero(t, merged.StressProfiles["smoke"].Rate)
	assert.Equal(t, "5m", merged.StressProfiles["load"].Duration)
	assert.Equal(t, "10s", cfg.StressProfiles["smoke"].Duration)
}
