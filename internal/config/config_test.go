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

	assert.Equal(t, "link", cfg.Library.Mode)
	assert.Equal(t, 50, cfg.Library.MinSizeMB)
	assert.Equal(t, int64(50<<20), cfg.Library.MinSizeBytes())
	assert.Equal(t, "gpt-3.5-turbo", cfg.Classifier.Model)
	assert.Equal(t, 4, cfg.Pipeline.Workers)
	assert.Equal(t, 5, cfg.Classifier.CircuitBreaker.FailureThreshold)
	assert.Equal(t, 120, cfg.Classifier.CircuitBreaker.FailureWindowSeconds)
	assert.Equal(t, 30, cfg.Classifier.CircuitBreaker.CooldownSeconds)
	assert.NoError(t, cfg.Validate())
}

func TestLoadFrom_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := LoadFrom(filepath.Join(t.TempDir(), "nope.toml"))
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig().Library, cfg.Library)
}

func TestLoadFrom_FileAndEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	content := `
[library]
output_dir = "/library"
mode = "copy"
min_size_mb = 10

[pipeline]
workers = 2
batch_timeout = "30m"

[[presets]]
name = "Anime"
mode = "symlink"
min_size_mb = 100
model = "gpt-4o-mini"
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	t.Setenv("REANINAME_CATALOG_API_KEY", "tmdb-key")
	t.Setenv("REANINAME_PIPELINE_WORKERS", "8")

	cfg, err := LoadFrom(path)
	require.NoError(t, err)

	assert.Equal(t, "/library", cfg.Library.OutputDir)
	assert.Equal(t, "copy", cfg.Library.Mode)
	assert.Equal(t, 10, cfg.Library.MinSizeMB)
	assert.Equal(t, "tmdb-key", cfg.Catalog.APIKey)
	assert.Equal(t, 8, cfg.Pipeline.Workers)
	timeout, err := cfg.Pipeline.Timeout()
	require.NoError(t, err)
	assert.Equal(t, 30*time.Minute, timeout)
	// untouched sections keep defaults
	assert.Equal(t, "https://api.themoviedb.org/3", cfg.Catalog.BaseURL)
	require.Len(t, cfg.Presets, 1)
	assert.Equal(t, "Anime", cfg.Presets[0].Name)
}

func TestSaveTo_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sub", "config.toml")
	cfg := DefaultConfig()
	cfg.Library.OutputDir = "/media/library"
	cfg.Watch.Paths = []string{"/downloads/complete"}
	cfg.Server.WebhookSecret = "s3cret"
	require.NoError(t, cfg.SaveTo(path))

	loaded, err := LoadFrom(path)
	require.NoError(t, err)
	assert.Equal(t, "/media/library", loaded.Library.OutputDir)
	assert.Equal(t, []string{"/downloads/complete"}, loaded.Watch.Paths)
	assert.Equal(t, "s3cret", loaded.Server.WebhookSecret)
	assert.Equal(t, cfg.Presets, loaded.Presets)
}

func TestValidate(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Library.Mode = "teleport"
	cfg.Pipeline.Workers = 0
	cfg.Pipeline.BatchTimeout = "soon"

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "library.mode")
	assert.Contains(t, err.Error(), "pipeline.workers")
	assert.Contains(t, err.Error(), "soon")
}

func TestApplyPreset(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Presets = append(cfg.Presets, Preset{Name: "Fast", Mode: "move", MinSizeMB: 5, Model: "gpt-4o-mini", CatalogAPIKey: "k"})

	require.NoError(t, cfg.ApplyPreset("fast"))
	assert.Equal(t, "move", cfg.Library.Mode)
	assert.Equal(t, 5, cfg.Library.MinSizeMB)
	assert.Equal(t, "gpt-4o-mini", cfg.Classifier.Model)
	assert.Equal(t, "https://api.openai.com/v1", cfg.Classifier.BaseURL)
	assert.Equal(t, "k", cfg.Catalog.APIKey)

	assert.Error(t, cfg.ApplyPreset("missing"))
}

func TestParseDirMode(t *testing.T) {
	m, err := LibraryConfig{DirMode: "775"}.ParseDirMode()
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0775), m)

	m, err = LibraryConfig{}.ParseDirMode()
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0755), m)

	_, err = LibraryConfig{DirMode: "9z"}.ParseDirMode()
	assert.Error(t, err)
}

func TestRedacted(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Catalog.APIKey = "abcdef123456"
	red := cfg.Redacted()
	assert.Equal(t, "ab******56", red.Catalog.APIKey)
	assert.Equal(t, "abcdef123456", cfg.Catalog.APIKey)
}
