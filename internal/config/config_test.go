package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	c, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "sample_dashboard", c.DefaultTemplate)
	assert.Equal(t, "ollama", c.LLMProvider)
	assert.Equal(t, 1, c.RetryMaxAttempts)
	assert.Equal(t, 0.35, c.CorrThreshold)
	assert.Equal(t, 3.0, c.AnomalyZ)
	assert.Equal(t, "zscore", c.AnomalyMethod)
	assert.Equal(t, filepath.Join(home, ".insighto", "templates"), c.TemplatesDir)
	assert.Equal(t, filepath.Join(home, ".insighto", "runs"), c.RunsDir)
	assert.DirExists(t, filepath.Join(home, ".insighto"))
}

func TestSaveLoadRoundTrip(t *testing.T) {
	t.Setenv("HOME", t.TempDir())

	c, err := Load("")
	require.NoError(t, err)
	c.AnomalyMethod = "robust"
	c.RedisAddr = "localhost:6379"
	c.RunsDir = "/srv/insighto/runs"
	require.NoError(t, Save(c, ""))

	got, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "robust", got.AnomalyMethod)
	assert.Equal(t, "localhost:6379", got.RedisAddr)
	assert.Equal(t, "/srv/insighto/runs", got.RunsDir)
}

func TestExplicitFileAndEnvOverride(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	path := filepath.Join(t.TempDir(), "custom.yaml")
	require.NoError(t, os.WriteFile(path, []byte("llm_provider: bedrock\nanomaly_z: 2.5\n"), 0o600))
	t.Setenv("INSIGHTO_ANOMALY_Z", "4")

	c, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "bedrock", c.LLMProvider)
	assert.Equal(t, 4.0, c.AnomalyZ)

	info, err := os.Stat(path)
	require.NoError(t, err)
	require.NoError(t, Save(c, path))
	info2, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, info.Mode().Perm(), info2.Mode().Perm())
}
