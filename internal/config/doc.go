// Package config loads, validates, and normalizes voxport configuration
// from TOML files with sensible defaults for every setting.
package config
