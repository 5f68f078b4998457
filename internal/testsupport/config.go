package testsupport

import (
	"path/filepath"
	"testing"

	"voxport/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*config.Config)

// NewConfig produces a config seeded with unique temp directories per test.
// It defaults common fields and applies any provided options.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfg := config.Default()
	cfg.Paths.DataDir = filepath.Join(base, "data")
	cfg.Paths.LogDir = filepath.Join(base, "logs")
	cfg.Paths.APIBind = "127.0.0.1:0"
	cfg.Storage.Bucket = "test-bucket"
	cfg.Storage.Region = "us-east-1"
	cfg.Fetch.RetryBaseSeconds = 0
	cfg.Export.QueuePollSeconds = 1

	for _, opt := range opts {
		opt(&cfg)
	}

	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("ensure config directories: %v", err)
	}
	return &cfg
}

// WithAPIToken sets the bearer token on the test config.
func WithAPIToken(token string) ConfigOption {
	return func(cfg *config.Config) {
		cfg.Paths.APIToken = token
	}
}

// WithFetchAttempts overrides the fetch retry budget on the test config.
func WithFetchAttempts(attempts int) ConfigOption {
	return func(cfg *config.Config) {
		cfg.Fetch.MaxAttempts = attempts
	}
}
