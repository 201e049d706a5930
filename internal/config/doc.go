// Package config loads, normalizes, and validates the TOML configuration
// shared by the CLI and the sync engine.
//
// Load resolves the config path (explicit flag, ~/.config/easel/config.toml,
// or ./easel.toml), applies defaults for anything unset, expands ~ in path
// fields, and rejects configurations the engine cannot run with. Packages
// receive a *Config and read the sections they own.
package config
