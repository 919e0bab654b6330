package config

import (
	"fmt"
	"os"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeBooth()
	c.normalizeEndpoints()
	c.normalizeWorkflow()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if strings.TrimSpace(c.Paths.DataDir) == "" {
		c.Paths.DataDir = defaultDataDir
	}
	if c.Paths.DataDir, err = expandPath(c.Paths.DataDir); err != nil {
		return fmt.Errorf("paths.data_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		c.Paths.LogDir = defaultLogDir
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	c.Paths.HTTPBind = strings.TrimSpace(c.Paths.HTTPBind)
	if c.Paths.HTTPBind == "" {
		c.Paths.HTTPBind = defaultHTTPBind
	}
	c.Paths.APIToken = strings.TrimSpace(c.Paths.APIToken)
	return nil
}

func (c *Config) normalizeBooth() {
	if c.Booth.MaxClipSeconds <= 0 {
		c.Booth.MaxClipSeconds = defaultMaxClipSeconds
	}
	if c.Booth.MaxMontageImages <= 0 {
		c.Booth.MaxMontageImages = defaultMaxMontageImages
	}
	if c.Booth.MaxUploadBytes <= 0 {
		c.Booth.MaxUploadBytes = defaultMaxUploadBytes
	}
	c.Booth.DefaultOutputFormat = strings.ToLower(strings.TrimSpace(c.Booth.DefaultOutputFormat))
	if c.Booth.DefaultOutputFormat == "" {
		c.Booth.DefaultOutputFormat = defaultOutputFormat
	}
	if c.Booth.DefaultFidelity <= 0 {
		c.Booth.DefaultFidelity = defaultFidelity
	}
	c.Booth.ShareBaseURL = strings.TrimRight(strings.TrimSpace(c.Booth.ShareBaseURL), "/")
}

// normalizeEndpoints trims endpoint settings and fills API keys from the
// environment when the config file leaves them empty, so secrets can live
// in a .env file instead of TOML.
func (c *Config) normalizeEndpoints() {
	c.StyleGen.Endpoint = strings.TrimSpace(c.StyleGen.Endpoint)
	if c.StyleGen.APIKey == "" {
		c.StyleGen.APIKey = os.Getenv("MEMBOOTH_STYLEGEN_API_KEY")
	}
	if c.StyleGen.TimeoutSeconds <= 0 {
		c.StyleGen.TimeoutSeconds = defaultStyleGenTimeout
	}

	c.VoiceClone.Endpoint = strings.TrimSpace(c.VoiceClone.Endpoint)
	if c.VoiceClone.APIKey == "" {
		c.VoiceClone.APIKey = os.Getenv("MEMBOOTH_VOICECLONE_API_KEY")
	}
	c.VoiceClone.DefaultVoice = strings.ToLower(strings.TrimSpace(c.VoiceClone.DefaultVoice))
	if c.VoiceClone.DefaultVoice == "" {
		c.VoiceClone.DefaultVoice = defaultVoice
	}
	if c.VoiceClone.TimeoutSeconds <= 0 {
		c.VoiceClone.TimeoutSeconds = defaultVoiceCloneTimeout
	}

	c.Montage.Endpoint = strings.TrimSpace(c.Montage.Endpoint)
	if c.Montage.APIKey == "" {
		c.Montage.APIKey = os.Getenv("MEMBOOTH_MONTAGE_API_KEY")
	}
	if c.Montage.SubmitTimeoutSeconds <= 0 {
		c.Montage.SubmitTimeoutSeconds = defaultMontageSubmitTimeout
	}
	if c.Montage.PollIntervalSeconds <= 0 {
		c.Montage.PollIntervalSeconds = defaultMontagePollInterval
	}
	if c.Montage.JobTimeoutSeconds <= 0 {
		c.Montage.JobTimeoutSeconds = defaultMontageJobTimeout
	}

	c.Notifications.NtfyTopic = strings.TrimSpace(c.Notifications.NtfyTopic)
	if c.Notifications.RequestTimeout <= 0 {
		c.Notifications.RequestTimeout = defaultNotifyTimeout
	}
}

func (c *Config) normalizeWorkflow() {
	if c.Workflow.QueuePollInterval <= 0 {
		c.Workflow.QueuePollInterval = defaultQueuePollInterval
	}
	if c.Workflow.ErrorRetryInterval <= 0 {
		c.Workflow.ErrorRetryInterval = defaultErrorRetryInterval
	}
	if c.Workflow.HeartbeatInterval <= 0 {
		c.Workflow.HeartbeatInterval = defaultHeartbeatInterval
	}
	if c.Workflow.HeartbeatTimeout <= 0 {
		c.Workflow.HeartbeatTimeout = defaultHeartbeatTimeout
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}
