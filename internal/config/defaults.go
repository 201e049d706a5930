package config

const (
	defaultDataDir        = "~/.local/share/easel"
	defaultLogDir         = "~/.local/share/easel/logs"
	defaultLogFormat      = "console"
	defaultLogLevel       = "info"
	defaultRequestTimeout = 10
	defaultProbeInterval  = 5
	defaultProbeTimeout   = 3
	defaultMaxQueued      = 1000
	defaultMaxAttempts    = 5
	defaultBaseDelayMS    = 500
	defaultMaxDelayMS     = 30000
	defaultDrainRate      = 0
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			DataDir: defaultDataDir,
			LogDir:  defaultLogDir,
		},
		Backend: Backend{
			RequestTimeout: defaultRequestTimeout,
		},
		Connectivity: Connectivity{
			ProbeInterval: defaultProbeInterval,
			ProbeTimeout:  defaultProbeTimeout,
		},
		Sync: Sync{
			MaxQueued:   defaultMaxQueued,
			MaxAttempts: defaultMaxAttempts,
			BaseDelayMS: defaultBaseDelayMS,
			MaxDelayMS:  defaultMaxDelayMS,
			DrainRate:   defaultDrainRate,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
