package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeRender()
	c.normalizeAnalysis()
	c.normalizeWorkflow()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if strings.TrimSpace(c.Paths.WAVDir) == "" {
		c.Paths.WAVDir = defaultWAVDir
	}
	if c.Paths.WAVDir, err = expandPath(c.Paths.WAVDir); err != nil {
		return fmt.Errorf("paths.wav_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.CacheDir) == "" {
		c.Paths.CacheDir = defaultCacheDir
	}
	if c.Paths.CacheDir, err = expandPath(c.Paths.CacheDir); err != nil {
		return fmt.Errorf("paths.cache_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		c.Paths.LogDir = defaultLogDir
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.ModelPath) == "" {
		c.Paths.ModelPath = defaultModelPath
	}
	if c.Paths.ModelPath, err = expandPath(c.Paths.ModelPath); err != nil {
		return fmt.Errorf("paths.model_path: %w", err)
	}
	return nil
}

func (c *Config) normalizeRender() {
	c.Render.Engine = strings.ToLower(strings.TrimSpace(c.Render.Engine))
	if c.Render.Engine == "" {
		c.Render.Engine = defaultEngine
	}
	if strings.TrimSpace(c.Render.Binary) == "" {
		c.Render.Binary = defaultBinary
	}
	if c.Render.Threads <= 0 {
		c.Render.Threads = defaultThreads
	}
	if c.Render.SongLengthSeconds <= 0 {
		c.Render.SongLengthSeconds = defaultSongLengthSeconds
	}
	if c.Render.RenderTimeoutSecs <= 0 {
		c.Render.RenderTimeoutSecs = defaultRenderTimeoutSecs
	}
	if c.Render.SampleRate <= 0 {
		c.Render.SampleRate = defaultSampleRate
	}
}

func (c *Config) normalizeAnalysis() {
	if c.Analysis.MaxAnalysisSeconds <= 0 {
		c.Analysis.MaxAnalysisSeconds = defaultMaxAnalysisSeconds
	}
	if c.Analysis.IntroSkipSeconds < 0 {
		c.Analysis.IntroSkipSeconds = 0
	}
	if c.Analysis.AnalysisRate <= 0 {
		c.Analysis.AnalysisRate = defaultAnalysisRate
	}
}

func (c *Config) normalizeWorkflow() {
	if c.Workflow.HeartbeatInterval <= 0 {
		c.Workflow.HeartbeatInterval = defaultHeartbeatInterval
	}
	if c.Workflow.StaleTimeout <= 0 {
		c.Workflow.StaleTimeout = defaultStaleTimeout
	}
	if c.Workflow.StallTimeout <= 0 {
		c.Workflow.StallTimeout = defaultStallTimeout
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

func expandPath(path string) (string, error) {
	trimmed := strings.TrimSpace(path)
	if trimmed == "" {
		return "", nil
	}
	if trimmed == "~" || strings.HasPrefix(trimmed, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if trimmed == "~" {
			return home, nil
		}
		return filepath.Join(home, trimmed[2:]), nil
	}
	return filepath.Abs(trimmed)
}
