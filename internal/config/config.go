package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory configuration.
type Paths struct {
	DataDir string `toml:"data_dir"`
	LogDir  string `toml:"log_dir"`
}

// Backend contains connection settings for the shared canvas backend.
type Backend struct {
	BaseURL        string `toml:"base_url"`
	APIToken       string `toml:"api_token"`
	RequestTimeout int    `toml:"request_timeout"`
}

// Connectivity contains configuration for the online/offline probe.
type Connectivity struct {
	// ProbeURL is the endpoint polled to decide online status. When empty,
	// the backend base URL plus /healthz is used.
	ProbeURL      string `toml:"probe_url"`
	ProbeInterval int    `toml:"probe_interval"`
	ProbeTimeout  int    `toml:"probe_timeout"`
}

// Sync contains configuration for the offline queue and replay engine.
type Sync struct {
	// MaxQueued bounds the offline queue. Enqueues past the bound evict the
	// oldest entries first.
	MaxQueued int `toml:"max_queued"`
	// MaxAttempts caps consecutive automatic drain retries before the engine
	// waits for the next online transition.
	MaxAttempts int `toml:"max_attempts"`
	// BaseDelayMS is the base of the exponential backoff between retries.
	BaseDelayMS int `toml:"base_delay_ms"`
	// MaxDelayMS caps the backoff delay. Zero means uncapped.
	MaxDelayMS int `toml:"max_delay_ms"`
	// DrainRate limits replayed operations per second. Zero disables pacing.
	DrainRate int `toml:"drain_rate"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Config encapsulates all configuration values for easel.
//
// Configuration sections by subsystem:
//   - Paths: data and log directories
//   - Backend: shared canvas backend connection
//   - Connectivity: online/offline probe settings
//   - Sync: offline queue bounds and retry/backoff tuning
//   - Logging: log format and level
type Config struct {
	Paths        Paths        `toml:"paths"`
	Backend      Backend      `toml:"backend"`
	Connectivity Connectivity `toml:"connectivity"`
	Sync         Sync         `toml:"sync"`
	Logging      Logging      `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/easel/config.toml")
}

// Load locates, parses, and validates a configuration file. The returned
// config has all path fields expanded and normalized. The boolean reports
// whether a config file was found at the resolved path.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("easel.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates the directories the engine needs at runtime.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.DataDir, c.Paths.LogDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// QueueDBPath returns the location of the durable queue database.
func (c *Config) QueueDBPath() string {
	return filepath.Join(c.Paths.DataDir, "queue.db")
}

// ProbeURL returns the configured probe endpoint, deriving one from the
// backend base URL when unset.
func (c *Config) ProbeURL() string {
	if url := strings.TrimSpace(c.Connectivity.ProbeURL); url != "" {
		return url
	}
	base := strings.TrimRight(strings.TrimSpace(c.Backend.BaseURL), "/")
	if base == "" {
		return ""
	}
	return base + "/healthz"
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
