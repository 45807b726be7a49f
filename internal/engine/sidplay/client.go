// Package sidplay adapts the sidplayfp command-line player as a render
// engine. The player is driven in batch mode, writing a WAV file and
// printing its playback position, which the adapter converts into progress
// updates.
package sidplay

import (
	"bufio"
	"context"
	"fmt"
	"os/exec"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"github.com/chrisgleissner/sidflow-sub004/internal/engine"
	"github.com/chrisgleissner/sidflow-sub004/internal/services"
)

var commandContext = exec.CommandContext

// positionRe matches the mm:ss.mmm playback position sidplayfp prints while
// rendering.
var positionRe = regexp.MustCompile(`(\d+):(\d{2})(?:\.\d+)?`)

// Option configures the CLI adapter.
type Option func(*CLI)

// WithBinary overrides the default binary name.
func WithBinary(binary string) Option {
	return func(c *CLI) {
		if binary != "" {
			c.binary = binary
		}
	}
}

// CLI wraps the sidplayfp command-line player.
type CLI struct {
	binary string
}

// NewCLI constructs a CLI adapter using defaults.
func NewCLI(opts ...Option) *CLI {
	cli := &CLI{binary: "sidplayfp"}
	for _, opt := range opts {
		opt(cli)
	}
	return cli
}

// Name identifies the engine in logs and progress output.
func (c *CLI) Name() string { return "sidplay" }

// Render launches sidplayfp and blocks until the WAV is written or ctx is
// cancelled.
func (c *CLI) Render(ctx context.Context, req engine.Request, progress func(engine.Update)) (*engine.Response, error) {
	if req.SourcePath == "" {
		return nil, services.Wrap(services.ErrValidation, "sidplay", "render",
			"source path required", nil)
	}
	outputDir := strings.TrimSpace(req.OutputDir)
	if outputDir == "" {
		return nil, services.Wrap(services.ErrValidation, "sidplay", "render",
			"output directory required", nil)
	}

	base := filepath.Base(req.SourcePath)
	stem := strings.TrimSuffix(base, filepath.Ext(base))
	if stem == "" {
		stem = base
	}
	if req.Song > 0 {
		stem = fmt.Sprintf("%s_%d", stem, req.Song)
	}
	wavPath := filepath.Join(outputDir, stem+".wav")

	args := []string{
		"-w" + wavPath,
		"-t" + strconv.Itoa(req.Seconds),
		"-f" + strconv.Itoa(req.SampleRate),
		"-q",
	}
	if req.Song > 0 {
		args = append(args, "-o"+strconv.Itoa(req.Song))
	}
	args = append(args, req.SourcePath)

	cmd := commandContext(ctx, c.binary, args...) //nolint:gosec
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, services.Wrap(services.ErrExternalTool, "sidplay", "render",
			"stdout pipe", err)
	}
	cmd.Stderr = cmd.Stdout
	if err := cmd.Start(); err != nil {
		return nil, services.Wrap(services.ErrExternalTool, "sidplay", "render",
			"start "+c.binary, err)
	}

	scanner := bufio.NewScanner(stdout)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || progress == nil {
			continue
		}
		progress(engine.Update{
			Percent: positionPercent(line, req.Seconds),
			Message: line,
		})
	}
	if err := scanner.Err(); err != nil {
		return nil, services.Wrap(services.ErrExternalTool, "sidplay", "render",
			"read player output", err)
	}
	if err := cmd.Wait(); err != nil {
		if ctx.Err() != nil {
			return nil, services.Wrap(services.ErrTimeout, "sidplay", "render",
				"render timeout for "+base, ctx.Err())
		}
		return nil, services.Wrap(services.ErrExternalTool, "sidplay", "render",
			c.binary+" failed for "+base, err)
	}

	audible, seconds, err := engine.ScanAudible(wavPath)
	if err != nil {
		return nil, services.Wrap(services.ErrExternalTool, "sidplay", "render",
			"inspect rendered audio "+wavPath, err)
	}
	return &engine.Response{WAVPath: wavPath, Seconds: seconds, HasAudio: audible}, nil
}

// positionPercent derives a rough completion fraction from the player's
// mm:ss position output. Unparseable lines report zero.
func positionPercent(line string, targetSeconds int) float64 {
	if targetSeconds <= 0 {
		return 0
	}
	m := positionRe.FindStringSubmatch(line)
	if m == nil {
		return 0
	}
	minutes, _ := strconv.Atoi(m[1])
	seconds, _ := strconv.Atoi(m[2])
	pct := float64(minutes*60+seconds) / float64(targetSeconds) * 100
	if pct > 100 {
		pct = 100
	}
	return pct
}

var _ engine.Engine = (*CLI)(nil)
