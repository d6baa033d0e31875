package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultIsValid(t *testing.T) {
	require.NoError(t, Default().Validate())
}

func TestLoad_NoFileUsesDefaults(t *testing.T) {
	cfg, err := Load(t.TempDir())
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoad_YAMLOverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, ".aspforge"), 0755))
	yaml := `
solver:
  path: /opt/clingo/bin/clingo
  timeout_seconds: 60
checker:
  language: datalog
  workers: 8
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".aspforge", "config.yaml"), []byte(yaml), 0644))

	cfg, err := Load(dir)
	require.NoError(t, err)
	assert.Equal(t, "/opt/clingo/bin/clingo", cfg.Solver.Path)
	assert.Equal(t, 60, cfg.Solver.TimeoutSeconds)
	assert.Equal(t, "datalog", cfg.Checker.Language)
	assert.Equal(t, 8, cfg.Checker.Workers)

	// Untouched sections keep defaults.
	assert.Equal(t, Default().Compaction, cfg.Compaction)
}

func TestLoad_EnvWinsOverYAML(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, ".aspforge"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".aspforge", "config.yaml"),
		[]byte("solver:\n  timeout_seconds: 60\n"), 0644))

	t.Setenv("ASPFORGE_SOLVER_TIMEOUT_SECONDS", "30")
	t.Setenv("ASPFORGE_CHECKER_WORKERS", "2")

	cfg, err := Load(dir)
	require.NoError(t, err)
	assert.Equal(t, 30, cfg.Solver.TimeoutSeconds)
	assert.Equal(t, 2, cfg.Checker.Workers)
}

func TestLoad_InvalidEnvValue(t *testing.T) {
	t.Setenv("ASPFORGE_SOLVER_MAX_MODELS", "lots")
	_, err := Load(t.TempDir())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ASPFORGE_SOLVER_MAX_MODELS")
}

func TestLoad_InvalidYAML(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, ".aspforge"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".aspforge", "config.yaml"),
		[]byte("solver: ["), 0644))

	_, err := Load(dir)
	require.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"timeout too large", func(c *Config) { c.Solver.TimeoutSeconds = 601 }, "timeout_seconds"},
		{"empty solver path", func(c *Config) { c.Solver.Path = "" }, "solver.path"},
		{"retain zero", func(c *Config) { c.Compaction.RetainTurns = 0 }, "retain_turns"},
		{"bad language", func(c *Config) { c.Checker.Language = "prolog" }, "language"},
		{"workers zero", func(c *Config) { c.Checker.Workers = 0 }, "workers"},
		{"negative rate", func(c *Config) { c.Model.RateLimitPerSec = -1 }, "rate_limit"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(&cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
