package config

const (
	defaultConfigPath             = "~/.config/genguard/config.toml"
	defaultDataDir                = "~/.local/share/genguard"
	defaultLogDir                 = "~/.local/share/genguard/logs"
	defaultLogFormat              = "console"
	defaultLogLevel               = "info"
	defaultGenerationBaseURL      = "https://api.example-media.dev/v1"
	defaultGenerationTimeout      = 30
	defaultGenerationPollInterval = 10
	defaultGenerationJobTimeout   = 900
	defaultMaxAttempts            = 3
	defaultBaseDelayMS            = 120000
	defaultBackoffMultiplier      = 2.0
	defaultMaxDelayMS             = 600000
	defaultNotifyRequestTimeout   = 10
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			DataDir: defaultDataDir,
			LogDir:  defaultLogDir,
		},
		Generation: Generation{
			BaseURL:             defaultGenerationBaseURL,
			TimeoutSeconds:      defaultGenerationTimeout,
			PollIntervalSeconds: defaultGenerationPollInterval,
			JobTimeoutSeconds:   defaultGenerationJobTimeout,
		},
		Retry: Retry{
			MaxAttempts:           defaultMaxAttempts,
			BaseDelayMS:           defaultBaseDelayMS,
			BackoffMultiplier:     defaultBackoffMultiplier,
			MaxDelayMS:            defaultMaxDelayMS,
			UseExponentialBackoff: true,
			AbortBatchOnFailure:   false,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
		Notifications: Notifications{
			RequestTimeout:   defaultNotifyRequestTimeout,
			TerminalFailures: true,
			BatchCompleted:   true,
		},
	}
}
