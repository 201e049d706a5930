package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateBackend(); err != nil {
		return err
	}
	if err := c.validateConnectivity(); err != nil {
		return err
	}
	if err := c.validateSync(); err != nil {
		return err
	}
	return c.validateLogging()
}

func (c *Config) validateBackend() error {
	base := strings.TrimSpace(c.Backend.BaseURL)
	if base == "" {
		return nil
	}
	parsed, err := url.Parse(base)
	if err != nil || parsed.Host == "" {
		return fmt.Errorf("backend.base_url %q is not a valid URL", base)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return fmt.Errorf("backend.base_url must use http or https, got %q", parsed.Scheme)
	}
	return nil
}

func (c *Config) validateConnectivity() error {
	if probe := strings.TrimSpace(c.Connectivity.ProbeURL); probe != "" {
		parsed, err := url.Parse(probe)
		if err != nil || parsed.Host == "" {
			return fmt.Errorf("connectivity.probe_url %q is not a valid URL", probe)
		}
	}
	if c.Connectivity.ProbeTimeout >= c.Connectivity.ProbeInterval {
		return errors.New("connectivity.probe_timeout must be below probe_interval")
	}
	return nil
}

func (c *Config) validateSync() error {
	if c.Sync.MaxQueued > 1_000_000 {
		return errors.New("sync.max_queued is unreasonably large; the queue is an offline buffer, not an archive")
	}
	if c.Sync.MaxDelayMS > 0 && c.Sync.MaxDelayMS < c.Sync.BaseDelayMS {
		return errors.New("sync.max_delay_ms must be at least sync.base_delay_ms")
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format must be console or json, got %q", c.Logging.Format)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level must be one of debug, info, warn, error; got %q", c.Logging.Level)
	}
	return nil
}
