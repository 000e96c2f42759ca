package config

const (
	defaultConfigPath         = "~/.config/mmx/config.toml"
	defaultLogDir             = "~/.local/share/mmx/logs"
	defaultStateDir           = "~/.local/share/mmx"
	defaultBackend            = BackendGStreamer
	defaultWaitSliceMS        = 1000
	defaultProgressIntervalMS = 200
	defaultLogFormat          = "console"
	defaultLogLevel           = "info"
)

// Backend names accepted by [backend].name and MMX_BACKEND.
const (
	BackendGStreamer = "gst"
	BackendMock      = "mock"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			LogDir:   defaultLogDir,
			StateDir: defaultStateDir,
		},
		Backend: Backend{
			Name: defaultBackend,
		},
		Monitor: Monitor{
			WaitSliceMS:        defaultWaitSliceMS,
			ProgressIntervalMS: defaultProgressIntervalMS,
			FFprobeFallback:    true,
		},
		History: History{
			Enabled: true,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
