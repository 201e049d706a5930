package config

import (
	"fmt"
	"os"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeBackend()
	c.normalizeConnectivity()
	c.normalizeSync()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if strings.TrimSpace(c.Paths.DataDir) == "" {
		c.Paths.DataDir = defaultDataDir
	}
	if c.Paths.DataDir, err = expandPath(c.Paths.DataDir); err != nil {
		return fmt.Errorf("paths.data_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		c.Paths.LogDir = defaultLogDir
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	return nil
}

func (c *Config) normalizeBackend() {
	c.Backend.BaseURL = strings.TrimRight(strings.TrimSpace(c.Backend.BaseURL), "/")
	if c.Backend.APIToken == "" {
		if value, ok := os.LookupEnv("EASEL_API_TOKEN"); ok {
			c.Backend.APIToken = value
		}
	}
	if c.Backend.RequestTimeout <= 0 {
		c.Backend.RequestTimeout = defaultRequestTimeout
	}
}

func (c *Config) normalizeConnectivity() {
	c.Connectivity.ProbeURL = strings.TrimSpace(c.Connectivity.ProbeURL)
	if c.Connectivity.ProbeInterval <= 0 {
		c.Connectivity.ProbeInterval = defaultProbeInterval
	}
	if c.Connectivity.ProbeTimeout <= 0 {
		c.Connectivity.ProbeTimeout = defaultProbeTimeout
	}
}

func (c *Config) normalizeSync() {
	if c.Sync.MaxQueued <= 0 {
		c.Sync.MaxQueued = defaultMaxQueued
	}
	if c.Sync.MaxAttempts <= 0 {
		c.Sync.MaxAttempts = defaultMaxAttempts
	}
	if c.Sync.BaseDelayMS <= 0 {
		c.Sync.BaseDelayMS = defaultBaseDelayMS
	}
	if c.Sync.MaxDelayMS < 0 {
		c.Sync.MaxDelayMS = 0
	}
	if c.Sync.DrainRate < 0 {
		c.Sync.DrainRate = 0
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}
