// Package stub is a render engine that synthesizes deterministic audio
// instead of invoking an external player. The waveform is seeded from the
// source path and subtune, so the same request always produces the same
// bytes. It backs tests and lets the pipeline run on machines without
// sidplayfp installed.
package stub

import (
	"context"
	"crypto/sha256"
	"fmt"
	"math"
	"path/filepath"
	"strings"

	"github.com/chrisgleissner/sidflow-sub004/internal/engine"
	"github.com/chrisgleissner/sidflow-sub004/internal/services"
	"github.com/chrisgleissner/sidflow-sub004/internal/sidfile"
	"github.com/chrisgleissner/sidflow-sub004/internal/wavio"
)

// Option configures the stub.
type Option func(*Stub)

// WithSilence makes the stub emit silent audio for sources the predicate
// matches. Used to exercise the no-audio escalation path.
func WithSilence(fn func(sourcePath string) bool) Option {
	return func(s *Stub) { s.silent = fn }
}

// Stub synthesizes a short voice mixture per request.
type Stub struct {
	silent func(string) bool
}

// New constructs a stub engine.
func New(opts ...Option) *Stub {
	s := &Stub{}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Name identifies the engine in logs and progress output.
func (s *Stub) Name() string { return "stub" }

// Render synthesizes audio for the request and writes it as WAV.
func (s *Stub) Render(ctx context.Context, req engine.Request, progress func(engine.Update)) (*engine.Response, error) {
	if req.SourcePath == "" {
		return nil, services.Wrap(services.ErrValidation, "stub", "render",
			"source path required", nil)
	}
	if req.OutputDir == "" {
		return nil, services.Wrap(services.ErrValidation, "stub", "render",
			"output directory required", nil)
	}
	if err := ctx.Err(); err != nil {
		return nil, services.Wrap(services.ErrTimeout, "stub", "render",
			"cancelled before start", err)
	}

	rate := req.SampleRate
	if rate <= 0 {
		rate = 44100
	}
	seconds := req.Seconds
	if seconds <= 0 {
		seconds = 1
	}

	song := req.Song
	if header, err := sidfile.ParseFile(req.SourcePath); err == nil && song == 0 {
		song = header.StartSong
	}
	if song == 0 {
		song = 1
	}

	base := filepath.Base(req.SourcePath)
	stem := strings.TrimSuffix(base, filepath.Ext(base))
	if stem == "" {
		stem = base
	}
	if req.Song > 0 {
		stem = fmt.Sprintf("%s_%d", stem, req.Song)
	}
	wavPath := filepath.Join(req.OutputDir, stem+".wav")

	silent := s.silent != nil && s.silent(req.SourcePath)
	samples := synthesize(req.SourcePath, song, rate, seconds, silent)

	if progress != nil {
		progress(engine.Update{Percent: 100, Message: "synthesized " + base})
	}
	if err := wavio.EncodeFile(wavPath, rate, 1, samples); err != nil {
		return nil, services.Wrap(services.ErrExternalTool, "stub", "render",
			"write "+wavPath, err)
	}
	return &engine.Response{
		WAVPath:  wavPath,
		Seconds:  float64(len(samples)) / float64(rate),
		HasAudio: !silent,
	}, nil
}

// synthesize mixes three seeded voices: two tones and a square-ish pulse.
// Frequencies land in chiptune range (110..990 Hz) derived from the seed.
func synthesize(sourcePath string, song, rate, seconds int, silent bool) []float64 {
	n := rate * seconds
	samples := make([]float64, n)
	if silent {
		return samples
	}

	seed := sha256.Sum256([]byte(fmt.Sprintf("%s#%d", sourcePath, song)))
	f1 := 110 + float64(seed[0])*3.45
	f2 := 110 + float64(seed[1])*3.45
	f3 := 110 + float64(seed[2])*3.45

	for i := 0; i < n; i++ {
		t := float64(i) / float64(rate)
		v := 0.30*math.Sin(2*math.Pi*f1*t) + 0.20*math.Sin(2*math.Pi*f2*t)
		if math.Sin(2*math.Pi*f3*t) >= 0 {
			v += 0.15
		} else {
			v -= 0.15
		}
		samples[i] = v
	}
	return samples
}

var _ engine.Engine = (*Stub)(nil)
