package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestDefaultValidates(t *testing.T) {
	cfg := Default()
	if err := cfg.normalize(); err != nil {
		t.Fatalf("normalize: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if cfg.Render.Threads != 4 {
		t.Errorf("default threads = %d, want 4", cfg.Render.Threads)
	}
	if cfg.Analysis.AnalysisRate != 11025 {
		t.Errorf("default analysis rate = %d, want 11025", cfg.Analysis.AnalysisRate)
	}
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, _, exists, err := Load(filepath.Join(t.TempDir(), "config.toml"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if exists {
		t.Error("exists should be false for a missing file")
	}
	if cfg.Render.Engine != "sidplay" {
		t.Errorf("engine = %q", cfg.Render.Engine)
	}
}

func TestLoadOverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	body := `
[render]
engine = "stub"
threads = 2

[logging]
format = "json"
`
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, resolved, exists, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !exists || resolved != path {
		t.Errorf("resolved = %q exists = %v", resolved, exists)
	}
	if cfg.Render.Engine != "stub" || cfg.Render.Threads != 2 {
		t.Errorf("render overrides not applied: %+v", cfg.Render)
	}
	if cfg.Logging.Format != "json" {
		t.Errorf("logging format = %q", cfg.Logging.Format)
	}
	// untouched sections keep defaults
	if cfg.Analysis.MaxAnalysisSeconds != 60 {
		t.Errorf("analysis defaults lost: %+v", cfg.Analysis)
	}
}

func TestValidateRejectsUnknownEngine(t *testing.T) {
	cfg := Default()
	cfg.Render.Engine = "resid"
	if err := cfg.Validate(); err == nil || !strings.Contains(err.Error(), "render.engine") {
		t.Fatalf("expected engine error, got %v", err)
	}
}

func TestValidateRejectsExcessiveAnalysisRate(t *testing.T) {
	cfg := Default()
	cfg.Analysis.AnalysisRate = cfg.Render.SampleRate * 2
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected analysis rate error")
	}
}

func TestValidateRejectsStaleBelowHeartbeat(t *testing.T) {
	cfg := Default()
	cfg.Workflow.StaleTimeout = cfg.Workflow.HeartbeatInterval
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected stale timeout error")
	}
}

func TestWriteSampleRefusesOverwrite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := WriteSample(path); err != nil {
		t.Fatalf("first write: %v", err)
	}
	if err := WriteSample(path); err == nil {
		t.Fatal("expected overwrite refusal")
	}
}

func TestExpandPathHome(t *testing.T) {
	home, err := os.UserHomeDir()
	if err != nil {
		t.Skip("no home directory")
	}
	got, err := expandPath("~/x")
	if err != nil {
		t.Fatal(err)
	}
	if got != filepath.Join(home, "x") {
		t.Errorf("expandPath = %q", got)
	}
}
