package sidplay

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"testing"

	"github.com/chrisgleissner/sidflow-sub004/internal/engine"
	"github.com/chrisgleissner/sidflow-sub004/internal/services"
	"github.com/chrisgleissner/sidflow-sub004/internal/wavio"
)

func TestNewCLIWithBinary(t *testing.T) {
	cli := NewCLI(WithBinary("/opt/sidplayfp"))
	if cli.binary != "/opt/sidplayfp" {
		t.Fatalf("expected binary override, got %q", cli.binary)
	}
}

func TestRenderRequiresSource(t *testing.T) {
	cli := NewCLI()
	_, err := cli.Render(context.Background(), engine.Request{OutputDir: "/tmp"}, nil)
	if err == nil {
		t.Fatal("expected error for empty source path")
	}
	if !services.IsFatal(err) {
		t.Errorf("missing source should be fatal, got %v", err)
	}
}

func TestRenderRequiresOutputDir(t *testing.T) {
	cli := NewCLI()
	if _, err := cli.Render(context.Background(), engine.Request{SourcePath: "a.sid"}, nil); err == nil {
		t.Fatal("expected error for empty output dir")
	}
}

func TestRenderArgs(t *testing.T) {
	var capturedArgs []string
	tempDir := t.TempDir()
	wavPath := filepath.Join(tempDir, "Commando_2.wav")

	original := commandContext
	commandContext = func(ctx context.Context, name string, args ...string) *exec.Cmd {
		capturedArgs = append([]string(nil), args...)
		cmd := exec.CommandContext(ctx, os.Args[0], "-test.run=TestHelperProcess")
		cmd.Env = append(os.Environ(),
			"GO_WANT_HELPER_PROCESS=1",
			"SIDPLAY_HELPER_MODE=success",
			"SIDPLAY_HELPER_WAV="+wavPath)
		return cmd
	}
	t.Cleanup(func() { commandContext = original })

	cli := NewCLI()
	req := engine.Request{
		SourcePath: "/hvsc/Commando.sid",
		OutputDir:  tempDir,
		Song:       2,
		Seconds:    90,
		SampleRate: 44100,
	}
	resp, err := cli.Render(context.Background(), req, nil)
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	if resp.WAVPath != wavPath {
		t.Errorf("wav path = %q, want %q", resp.WAVPath, wavPath)
	}
	if !resp.HasAudio {
		t.Error("helper wrote an audible wav")
	}

	for _, want := range []string{"-w" + wavPath, "-t90", "-f44100", "-o2", "/hvsc/Commando.sid"} {
		if findArg(capturedArgs, want) == -1 {
			t.Errorf("args missing %q: %v", want, capturedArgs)
		}
	}
}

func TestRenderForwardsProgress(t *testing.T) {
	tempDir := t.TempDir()
	setHelperCommand(t, "progress", filepath.Join(tempDir, "tune.wav"))

	cli := NewCLI()
	var updates []engine.Update
	req := engine.Request{
		SourcePath: "/hvsc/tune.sid",
		OutputDir:  tempDir,
		Seconds:    90,
		SampleRate: 44100,
	}
	if _, err := cli.Render(context.Background(), req, func(u engine.Update) {
		updates = append(updates, u)
	}); err != nil {
		t.Fatalf("Render: %v", err)
	}
	if len(updates) != 2 {
		t.Fatalf("updates = %d, want 2", len(updates))
	}
	// 0:45 of a 90 second render
	if updates[1].Percent != 50 {
		t.Errorf("percent = %f, want 50", updates[1].Percent)
	}
}

func TestRenderFailure(t *testing.T) {
	tempDir := t.TempDir()
	setHelperCommand(t, "failure", filepath.Join(tempDir, "tune.wav"))

	cli := NewCLI()
	req := engine.Request{SourcePath: "/hvsc/tune.sid", OutputDir: tempDir, Seconds: 90, SampleRate: 44100}
	_, err := cli.Render(context.Background(), req, nil)
	if err == nil {
		t.Fatal("expected render failure")
	}
	if !errors.Is(err, services.ErrExternalTool) {
		t.Errorf("want external-tool marker, got %v", err)
	}
}

func TestRenderSilentOutput(t *testing.T) {
	tempDir := t.TempDir()
	setHelperCommand(t, "silent", filepath.Join(tempDir, "tune.wav"))

	cli := NewCLI()
	req := engine.Request{SourcePath: "/hvsc/tune.sid", OutputDir: tempDir, Seconds: 90, SampleRate: 44100}
	resp, err := cli.Render(context.Background(), req, nil)
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	if resp.HasAudio {
		t.Error("silent render should report HasAudio=false")
	}
}

func TestPositionPercent(t *testing.T) {
	cases := []struct {
		line string
		want float64
	}{
		{"1:30.500", 100},
		{"0:45", 50},
		{"no position here", 0},
		{"2:00", 100}, // capped
	}
	for _, tc := range cases {
		if got := positionPercent(tc.line, 90); got != tc.want {
			t.Errorf("positionPercent(%q) = %f, want %f", tc.line, got, tc.want)
		}
	}
}

func setHelperCommand(t *testing.T, mode, wavPath string) {
	t.Helper()
	original := commandContext
	commandContext = func(ctx context.Context, name string, args ...string) *exec.Cmd {
		cmd := exec.CommandContext(ctx, os.Args[0], "-test.run=TestHelperProcess")
		cmd.Env = append(os.Environ(),
			"GO_WANT_HELPER_PROCESS=1",
			fmt.Sprintf("SIDPLAY_HELPER_MODE=%s", mode),
			"SIDPLAY_HELPER_WAV="+wavPath)
		return cmd
	}
	t.Cleanup(func() { commandContext = original })
}

func TestHelperProcess(t *testing.T) {
	if os.Getenv("GO_WANT_HELPER_PROCESS") != "1" {
		return
	}
	wavPath := os.Getenv("SIDPLAY_HELPER_WAV")

	writeWAV := func(silent bool) {
		samples := make([]float64, 4410)
		if !silent {
			for i := range samples {
				samples[i] = 0.25
			}
		}
		if err := wavio.EncodeFile(wavPath, 44100, 1, samples); err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
	}

	switch os.Getenv("SIDPLAY_HELPER_MODE") {
	case "success":
		writeWAV(false)
		os.Exit(0)
	case "progress":
		fmt.Println("0:15")
		fmt.Println("0:45")
		writeWAV(false)
		os.Exit(0)
	case "silent":
		writeWAV(true)
		os.Exit(0)
	case "failure":
		fmt.Fprintln(os.Stderr, "SIDPLAYFP ERROR: unable to load ROMs")
		os.Exit(1)
	default:
		os.Exit(0)
	}
}

func findArg(args []string, target string) int {
	for i, arg := range args {
		if arg == target {
			return i
		}
	}
	return -1
}
