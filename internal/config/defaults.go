package config

const (
	defaultDataDir          = "~/.local/share/voxport"
	defaultLogDir           = "~/.local/share/voxport/logs"
	defaultAPIBind          = "127.0.0.1:7711"
	defaultLogFormat        = "console"
	defaultLogLevel         = "info"
	defaultPresignTTLHours  = 24
	defaultFetchConcurrency = 8
	defaultMaxConnsPerHost  = 10
	defaultRequestTimeout   = 10
	defaultMaxAttempts      = 3
	defaultRetryBaseSeconds = 2
	defaultExportWorkers    = 2
	defaultQueuePollSeconds = 2
	defaultProgressEvery    = 5
	defaultSyncMaxRecords   = 200
	defaultNtfyTimeout      = 10
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			DataDir: defaultDataDir,
			LogDir:  defaultLogDir,
			APIBind: defaultAPIBind,
		},
		Storage: Storage{
			Region:          "us-east-1",
			PresignTTLHours: defaultPresignTTLHours,
		},
		Fetch: Fetch{
			Concurrency:      defaultFetchConcurrency,
			MaxConnsPerHost:  defaultMaxConnsPerHost,
			RequestTimeout:   defaultRequestTimeout,
			MaxAttempts:      defaultMaxAttempts,
			RetryBaseSeconds: defaultRetryBaseSeconds,
		},
		Export: Export{
			Workers:          defaultExportWorkers,
			QueuePollSeconds: defaultQueuePollSeconds,
			ProgressEvery:    defaultProgressEvery,
			SyncMaxRecords:   defaultSyncMaxRecords,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
		Notifications: Notifications{
			RequestTimeout: defaultNtfyTimeout,
		},
	}
}
