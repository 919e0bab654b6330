package config

import (
	"errors"
	"fmt"
)

var validOutputFormats = map[string]struct{}{
	"png":  {},
	"jpeg": {},
	"webp": {},
}

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateBooth(); err != nil {
		return err
	}
	if err := c.validateEndpoints(); err != nil {
		return err
	}
	if err := c.validateWorkflow(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validateBooth() error {
	if _, ok := validOutputFormats[c.Booth.DefaultOutputFormat]; !ok {
		return fmt.Errorf("booth.default_output_format must be png, jpeg, or webp (got %q)", c.Booth.DefaultOutputFormat)
	}
	if c.Booth.DefaultFidelity < 0 || c.Booth.DefaultFidelity > 1 {
		return errors.New("booth.default_fidelity must be between 0 and 1")
	}
	if c.Booth.MaxClipSeconds > 60 {
		return errors.New("booth.max_clip_seconds must not exceed 60")
	}
	return nil
}

// validateEndpoints checks endpoint coherence. Endpoints themselves are
// optional at load time so the CLI can run against a partially configured
// deployment; the daemon reports per-stage readiness instead.
func (c *Config) validateEndpoints() error {
	if c.StyleGen.Endpoint == "" && c.StyleGen.APIKey != "" {
		return errors.New("stylegen.api_key is set but stylegen.endpoint is empty")
	}
	if c.VoiceClone.Endpoint == "" && c.VoiceClone.APIKey != "" {
		return errors.New("voiceclone.api_key is set but voiceclone.endpoint is empty")
	}
	if c.Montage.Endpoint == "" && c.Montage.APIKey != "" {
		return errors.New("montage.api_key is set but montage.endpoint is empty")
	}
	switch c.VoiceClone.DefaultVoice {
	case "male", "female", "clone":
	default:
		return fmt.Errorf("voiceclone.default_voice must be male, female, or clone (got %q)", c.VoiceClone.DefaultVoice)
	}
	return nil
}

func (c *Config) validateWorkflow() error {
	if c.Workflow.HeartbeatTimeout <= c.Workflow.HeartbeatInterval {
		return errors.New("workflow.heartbeat_timeout must be greater than workflow.heartbeat_interval")
	}
	return nil
}
