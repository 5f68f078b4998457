package config

import (
	"errors"
	"fmt"
	"strings"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validatePaths(); err != nil {
		return err
	}
	if err := c.validateStorage(); err != nil {
		return err
	}
	if err := c.validateFetch(); err != nil {
		return err
	}
	if err := c.validateExport(); err != nil {
		return err
	}
	if err := c.validateLogging(); err != nil {
		return err
	}
	return c.validateNotifications()
}

func (c *Config) validatePaths() error {
	if strings.TrimSpace(c.Paths.DataDir) == "" {
		return errors.New("paths.data_dir must be set")
	}
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		return errors.New("paths.log_dir must be set")
	}
	if strings.TrimSpace(c.Paths.APIBind) == "" {
		return errors.New("paths.api_bind must be set")
	}
	return nil
}

func (c *Config) validateStorage() error {
	if c.Storage.Bucket == "" {
		defaultPath, err := DefaultConfigPath()
		if err != nil {
			defaultPath = "~/.config/voxport/config.toml"
		}
		return fmt.Errorf("storage.bucket is required. Edit %s (create with 'voxport config init')", defaultPath)
	}
	if c.Storage.PresignTTLHours <= 0 {
		return errors.New("storage.presign_ttl_hours must be positive")
	}
	return nil
}

func (c *Config) validateFetch() error {
	return ensurePositiveMap(map[string]int{
		"fetch.concurrency":        c.Fetch.Concurrency,
		"fetch.max_conns_per_host": c.Fetch.MaxConnsPerHost,
		"fetch.request_timeout":    c.Fetch.RequestTimeout,
		"fetch.max_attempts":       c.Fetch.MaxAttempts,
		"fetch.retry_base_seconds": c.Fetch.RetryBaseSeconds,
	})
}

func (c *Config) validateExport() error {
	return ensurePositiveMap(map[string]int{
		"export.workers":            c.Export.Workers,
		"export.queue_poll_seconds": c.Export.QueuePollSeconds,
		"export.progress_every":     c.Export.ProgressEvery,
		"export.sync_max_records":   c.Export.SyncMaxRecords,
	})
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format must be console or json, got %q", c.Logging.Format)
	}
	return nil
}

func (c *Config) validateNotifications() error {
	if c.Notifications.NtfyTopic != "" && c.Notifications.RequestTimeout <= 0 {
		return errors.New("notifications.request_timeout must be positive when a topic is set")
	}
	return nil
}

func ensurePositiveMap(values map[string]int) error {
	for key, value := range values {
		if value <= 0 {
			return fmt.Errorf("%s must be positive", key)
		}
	}
	return nil
}
