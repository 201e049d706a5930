package testsupport

import (
	"path/filepath"
	"testing"

	"easel/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*config.Config)

// NewConfig produces a config seeded with unique temp directories per test.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfg := config.Default()
	cfg.Paths.DataDir = filepath.Join(base, "data")
	cfg.Paths.LogDir = filepath.Join(base, "logs")
	cfg.Sync.BaseDelayMS = 1
	cfg.Sync.MaxDelayMS = 50

	for _, opt := range opts {
		opt(&cfg)
	}

	return &cfg
}

// WithMaxQueued overrides the queue bound on the test config.
func WithMaxQueued(n int) ConfigOption {
	return func(cfg *config.Config) {
		cfg.Sync.MaxQueued = n
	}
}

// WithMaxAttempts overrides the retry cap on the test config.
func WithMaxAttempts(n int) ConfigOption {
	return func(cfg *config.Config) {
		cfg.Sync.MaxAttempts = n
	}
}
