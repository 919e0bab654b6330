package config

const (
	defaultDataDir              = "~/.local/share/membooth/data"
	defaultLogDir               = "~/.local/share/membooth/logs"
	defaultHTTPBind             = "127.0.0.1:8976"
	defaultLogFormat            = "console"
	defaultLogLevel             = "info"
	defaultMaxClipSeconds       = 10
	defaultMaxMontageImages     = 20
	defaultMaxUploadBytes       = 32 << 20
	defaultOutputFormat         = "png"
	defaultFidelity             = 0.5
	defaultVoice                = "female"
	defaultStyleGenTimeout      = 120
	defaultVoiceCloneTimeout    = 120
	defaultMontageSubmitTimeout = 30
	defaultMontagePollInterval  = 3
	defaultMontageJobTimeout    = 600
	defaultNotifyTimeout        = 10
	defaultQueuePollInterval    = 2
	defaultErrorRetryInterval   = 5
	defaultHeartbeatInterval    = 15
	defaultHeartbeatTimeout     = 120
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			DataDir:  defaultDataDir,
			LogDir:   defaultLogDir,
			HTTPBind: defaultHTTPBind,
		},
		Booth: Booth{
			MaxClipSeconds:      defaultMaxClipSeconds,
			MaxMontageImages:    defaultMaxMontageImages,
			MaxUploadBytes:      defaultMaxUploadBytes,
			DefaultOutputFormat: defaultOutputFormat,
			DefaultFidelity:     defaultFidelity,
		},
		StyleGen: StyleGen{
			TimeoutSeconds: defaultStyleGenTimeout,
		},
		VoiceClone: VoiceClone{
			DefaultVoice:   defaultVoice,
			TimeoutSeconds: defaultVoiceCloneTimeout,
		},
		Montage: Montage{
			SubmitTimeoutSeconds: defaultMontageSubmitTimeout,
			PollIntervalSeconds:  defaultMontagePollInterval,
			JobTimeoutSeconds:    defaultMontageJobTimeout,
		},
		Notifications: Notifications{
			RequestTimeout: defaultNotifyTimeout,
			Completion:     true,
			Errors:         true,
		},
		Workflow: Workflow{
			QueuePollInterval:  defaultQueuePollInterval,
			ErrorRetryInterval: defaultErrorRetryInterval,
			HeartbeatInterval:  defaultHeartbeatInterval,
			HeartbeatTimeout:   defaultHeartbeatTimeout,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
