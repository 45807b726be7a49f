package config

import (
	"fmt"
	"strings"
)

var knownEngines = map[string]struct{}{
	"sidplay": {},
	"stub":    {},
}

var knownLogFormats = map[string]struct{}{
	"console": {},
	"json":    {},
}

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateRender(); err != nil {
		return err
	}
	if err := c.validateAnalysis(); err != nil {
		return err
	}
	if err := c.validateWorkflow(); err != nil {
		return err
	}
	return c.validateLogging()
}

func (c *Config) validateRender() error {
	if _, ok := knownEngines[c.Render.Engine]; !ok {
		return fmt.Errorf("render.engine: unknown engine %q (expected sidplay or stub)", c.Render.Engine)
	}
	if c.Render.Engine == "sidplay" && strings.TrimSpace(c.Render.Binary) == "" {
		return fmt.Errorf("render.binary is required for the sidplay engine")
	}
	if c.Render.Threads < 1 || c.Render.Threads > 64 {
		return fmt.Errorf("render.threads must be between 1 and 64, got %d", c.Render.Threads)
	}
	if c.Render.SampleRate < 8000 {
		return fmt.Errorf("render.sample_rate must be at least 8000, got %d", c.Render.SampleRate)
	}
	return nil
}

func (c *Config) validateAnalysis() error {
	if c.Analysis.AnalysisRate > c.Render.SampleRate {
		return fmt.Errorf("analysis.analysis_rate (%d) must not exceed render.sample_rate (%d)",
			c.Analysis.AnalysisRate, c.Render.SampleRate)
	}
	if c.Analysis.IntroSkipSeconds >= c.Render.SongLengthSeconds {
		return fmt.Errorf("analysis.intro_skip_seconds (%d) must be below render.song_length_seconds (%d)",
			c.Analysis.IntroSkipSeconds, c.Render.SongLengthSeconds)
	}
	return nil
}

func (c *Config) validateWorkflow() error {
	if c.Workflow.StaleTimeout <= c.Workflow.HeartbeatInterval {
		return fmt.Errorf("workflow.stale_timeout (%d) must exceed workflow.heartbeat_interval (%d)",
			c.Workflow.StaleTimeout, c.Workflow.HeartbeatInterval)
	}
	return nil
}

func (c *Config) validateLogging() error {
	if _, ok := knownLogFormats[c.Logging.Format]; !ok {
		return fmt.Errorf("logging.format: unsupported value %q", c.Logging.Format)
	}
	return nil
}
