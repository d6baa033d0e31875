// Package config loads session configuration from defaults, an optional
// .aspforge/config.yaml, and ASPFORGE_* environment variables, in that
// order of precedence (env wins).
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"gopkg.in/yaml.v3"
)

// ModelConfig tunes the language model client.
type ModelConfig struct {
	// Default is the model for encoding work. Empty uses the built-in
	// default (also overridable via ASPFORGE_MODEL_DEFAULT).
	Default string `yaml:"default"`

	// Simple is the model for checker generation and digests. Empty uses
	// the built-in default (also ASPFORGE_MODEL_SIMPLE).
	Simple string `yaml:"simple"`

	// MaxRetries bounds automatic retries per model call.
	// Default: 3, Range: 0-10
	MaxRetries int `yaml:"max_retries"`

	// RateLimitPerSec throttles model calls. 0 disables the limiter.
	RateLimitPerSec float64 `yaml:"rate_limit_per_sec"`

	// SessionBudgetUSD caps estimated model spend per session. 0 disables
	// enforcement.
	SessionBudgetUSD float64 `yaml:"session_budget_usd"`
}

// SolverConfig tunes the clingo adapter.
type SolverConfig struct {
	// Path is the clingo binary. Default: "clingo" from PATH.
	Path string `yaml:"path"`

	// TimeoutSeconds is the wall-clock budget per solve.
	// Default: 20, Range: 1-600
	TimeoutSeconds int `yaml:"timeout_seconds"`

	// MaxModels caps answer-set enumeration. 0 means all models, subject
	// to the solver adapter's absolute cap.
	MaxModels int `yaml:"max_models"`
}

// CompactionConfig tunes when conversation history is folded up.
type CompactionConfig struct {
	// MaxTokens triggers compaction on estimated prompt size. 0 disables.
	// Default: 160000
	MaxTokens int64 `yaml:"max_tokens"`

	// MaxTurns triggers compaction on raw turn count. 0 disables.
	// Default: 120
	MaxTurns int `yaml:"max_turns"`

	// RetainTurns is the suffix kept verbatim through a compaction.
	// Default: 12, Range: 1-100
	RetainTurns int `yaml:"retain_turns"`
}

// CheckerConfig tunes checker generation and execution.
type CheckerConfig struct {
	// BudgetSeconds bounds one checker execution.
	// Default: 5, Range: 1-60
	BudgetSeconds int `yaml:"budget_seconds"`

	// Workers bounds parallel checker runs per round.
	// Default: 4, Range: 1-32
	Workers int `yaml:"workers"`

	// Language is the checker language requested from the generator:
	// "javascript" or "datalog". Default: "javascript"
	Language string `yaml:"language"`
}

// Config is the full session configuration.
type Config struct {
	Model      ModelConfig      `yaml:"model"`
	Solver     SolverConfig     `yaml:"solver"`
	Compaction CompactionConfig `yaml:"compaction"`
	Checker    CheckerConfig    `yaml:"checker"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Model: ModelConfig{
			MaxRetries:      3,
			RateLimitPerSec: 0,
		},
		Solver: SolverConfig{
			Path:           "clingo",
			TimeoutSeconds: 20,
			MaxModels:      0,
		},
		Compaction: CompactionConfig{
			MaxTokens:   160000,
			MaxTurns:    120,
			RetainTurns: 12,
		},
		Checker: CheckerConfig{
			BudgetSeconds: 5,
			Workers:       4,
			Language:      "javascript",
		},
	}
}

// Validate checks if the configuration has valid values.
func (c Config) Validate() error {
	if c.Model.MaxRetries < 0 || c.Model.MaxRetries > 10 {
		return fmt.Errorf("model.max_retries must be between 0 and 10 (got %d)", c.Model.MaxRetries)
	}
	if c.Model.RateLimitPerSec < 0 {
		return fmt.Errorf("model.rate_limit_per_sec cannot be negative (got %g)", c.Model.RateLimitPerSec)
	}
	if c.Model.SessionBudgetUSD < 0 {
		return fmt.Errorf("model.session_budget_usd cannot be negative (got %g)", c.Model.SessionBudgetUSD)
	}
	if c.Solver.Path == "" {
		return fmt.Errorf("solver.path is required")
	}
	if c.Solver.TimeoutSeconds < 1 || c.Solver.TimeoutSeconds > 600 {
		return fmt.Errorf("solver.timeout_seconds must be between 1 and 600 (got %d)", c.Solver.TimeoutSeconds)
	}
	if c.Solver.MaxModels < 0 {
		return fmt.Errorf("solver.max_models cannot be negative (got %d)", c.Solver.MaxModels)
	}
	if c.Compaction.MaxTokens < 0 {
		return fmt.Errorf("compaction.max_tokens cannot be negative (got %d)", c.Compaction.MaxTokens)
	}
	if c.Compaction.MaxTurns < 0 {
		return fmt.Errorf("compaction.max_turns cannot be negative (got %d)", c.Compaction.MaxTurns)
	}
	if c.Compaction.RetainTurns < 1 || c.Compaction.RetainTurns > 100 {
		return fmt.Errorf("compaction.retain_turns must be between 1 and 100 (got %d)", c.Compaction.RetainTurns)
	}
	if c.Checker.BudgetSeconds < 1 || c.Checker.BudgetSeconds > 60 {
		return fmt.Errorf("checker.budget_seconds must be between 1 and 60 (got %d)", c.Checker.BudgetSeconds)
	}
	if c.Checker.Workers < 1 || c.Checker.Workers > 32 {
		return fmt.Errorf("checker.workers must be between 1 and 32 (got %d)", c.Checker.Workers)
	}
	if c.Checker.Language != "javascript" && c.Checker.Language != "datalog" {
		return fmt.Errorf("checker.language must be 'javascript' or 'datalog' (got %q)", c.Checker.Language)
	}
	return nil
}

// Load builds the configuration for a session rooted at dir: defaults,
// then .aspforge/config.yaml if present, then environment overrides.
func Load(dir string) (Config, error) {
	cfg := Default()

	path := filepath.Join(dir, ".aspforge", "config.yaml")
	if data, err := os.ReadFile(path); err == nil {
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("failed to parse %s: %w", path, err)
		}
	} else if !os.IsNotExist(err) {
		return cfg, fmt.Errorf("failed to read %s: %w", path, err)
	}

	if err := applyEnv(&cfg); err != nil {
		return cfg, err
	}

	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// applyEnv overlays ASPFORGE_* environment variables.
//
// Recognized variables:
//   - ASPFORGE_MODEL_DEFAULT, ASPFORGE_MODEL_SIMPLE
//   - ASPFORGE_MODEL_MAX_RETRIES, ASPFORGE_MODEL_RATE_LIMIT, ASPFORGE_MODEL_SESSION_BUDGET_USD
//   - ASPFORGE_SOLVER_PATH, ASPFORGE_SOLVER_TIMEOUT_SECONDS, ASPFORGE_SOLVER_MAX_MODELS
//   - ASPFORGE_COMPACTION_MAX_TOKENS, ASPFORGE_COMPACTION_MAX_TURNS, ASPFORGE_COMPACTION_RETAIN_TURNS
//   - ASPFORGE_CHECKER_BUDGET_SECONDS, ASPFORGE_CHECKER_WORKERS, ASPFORGE_CHECKER_LANGUAGE
func applyEnv(cfg *Config) error {
	if err := parseEnvString("ASPFORGE_MODEL_DEFAULT", &cfg.Model.Default); err != nil {
		return err
	}
	if err := parseEnvString("ASPFORGE_MODEL_SIMPLE", &cfg.Model.Simple); err != nil {
		return err
	}
	if err := parseEnvInt("ASPFORGE_MODEL_MAX_RETRIES", &cfg.Model.MaxRetries); err != nil {
		return err
	}
	if err := parseEnvFloat("ASPFORGE_MODEL_RATE_LIMIT", &cfg.Model.RateLimitPerSec); err != nil {
		return err
	}
	if err := parseEnvFloat("ASPFORGE_MODEL_SESSION_BUDGET_USD", &cfg.Model.SessionBudgetUSD); err != nil {
		return err
	}
	if err := parseEnvString("ASPFORGE_SOLVER_PATH", &cfg.Solver.Path); err != nil {
		return err
	}
	if err := parseEnvInt("ASPFORGE_SOLVER_TIMEOUT_SECONDS", &cfg.Solver.TimeoutSeconds); err != nil {
		return err
	}
	if err := parseEnvInt("ASPFORGE_SOLVER_MAX_MODELS", &cfg.Solver.MaxModels); err != nil {
		return err
	}
	if err := parseEnvInt64("ASPFORGE_COMPACTION_MAX_TOKENS", &cfg.Compaction.MaxTokens); err != nil {
		return err
	}
	if err := parseEnvInt("ASPFORGE_COMPACTION_MAX_TURNS", &cfg.Compaction.MaxTurns); err != nil {
		return err
	}
	if err := parseEnvInt("ASPFORGE_COMPACTION_RETAIN_TURNS", &cfg.Compaction.RetainTurns); err != nil {
		return err
	}
	if err := parseEnvInt("ASPFORGE_CHECKER_BUDGET_SECONDS", &cfg.Checker.BudgetSeconds); err != nil {
		return err
	}
	if err := parseEnvInt("ASPFORGE_CHECKER_WORKERS", &cfg.Checker.Workers); err != nil {
		return err
	}
	if err := parseEnvString("ASPFORGE_CHECKER_LANGUAGE", &cfg.Checker.Language); err != nil {
		return err
	}
	return nil
}

func parseEnvInt(key string, dest *int) error {
	value := os.Getenv(key)
	if value == "" {
		return nil
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fmt.Errorf("invalid value for %s: %w", key, err)
	}
	*dest = parsed
	return nil
}

func parseEnvInt64(key string, dest *int64) error {
	value := os.Getenv(key)
	if value == "" {
		return nil
	}
	parsed, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return fmt.Errorf("invalid value for %s: %w", key, err)
	}
	*dest = parsed
	return nil
}

func parseEnvFloat(key string, dest *float64) error {
	value := os.Getenv(key)
	if value == "" {
		return nil
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return fmt.Errorf("invalid value for %s: %w", key, err)
	}
	*dest = parsed
	return nil
}

func parseEnvString(key string, dest *string) error {
	value := os.Getenv(key)
	if value == "" {
		return nil
	}
	*dest = value
	return nil
}
