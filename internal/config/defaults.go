package config

const (
	defaultWAVDir             = "~/.local/share/sidflow/wav"
	defaultCacheDir           = "~/.local/share/sidflow/cache"
	defaultLogDir             = "~/.local/share/sidflow/logs"
	defaultModelPath          = "~/.local/share/sidflow/model.json"
	defaultEngine             = "sidplay"
	defaultBinary             = "sidplayfp"
	defaultThreads            = 4
	defaultSongLengthSeconds  = 90
	defaultRenderTimeoutSecs  = 300
	defaultSampleRate         = 44100
	defaultMaxAnalysisSeconds = 60
	defaultIntroSkipSeconds   = 5
	defaultAnalysisRate       = 11025
	defaultHeartbeatInterval  = 3
	defaultStaleTimeout       = 30
	defaultStallTimeout       = 60
	defaultLogFormat          = "console"
	defaultLogLevel           = "info"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			WAVDir:    defaultWAVDir,
			CacheDir:  defaultCacheDir,
			LogDir:    defaultLogDir,
			ModelPath: defaultModelPath,
		},
		Render: Render{
			Engine:            defaultEngine,
			Binary:            defaultBinary,
			Threads:           defaultThreads,
			SongLengthSeconds: defaultSongLengthSeconds,
			RenderTimeoutSecs: defaultRenderTimeoutSecs,
			SampleRate:        defaultSampleRate,
		},
		Analysis: Analysis{
			MaxAnalysisSeconds: defaultMaxAnalysisSeconds,
			IntroSkipSeconds:   defaultIntroSkipSeconds,
			AnalysisRate:       defaultAnalysisRate,
		},
		Workflow: Workflow{
			HeartbeatInterval: defaultHeartbeatInterval,
			StaleTimeout:      defaultStaleTimeout,
			StallTimeout:      defaultStallTimeout,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
