package features

import (
	"log/slog"
	"math"

	"github.com/chrisgleissner/sidflow-sub004/internal/logging"
	"github.com/chrisgleissner/sidflow-sub004/internal/wavio"
)

// Config bounds the analysis window.
type Config struct {
	// MaxAnalysisSeconds caps the representative window length.
	MaxAnalysisSeconds int
	// IntroSkipSeconds is skipped at the start when enough material remains,
	// so lead-in silence and intro arpeggios do not dominate the features.
	IntroSkipSeconds int
	// AnalysisRate is the internal rate everything is decimated to. Chiptune
	// content carries little energy above ~5 kHz, so 11025 Hz keeps the
	// signal and cuts downstream compute roughly 4x.
	AnalysisRate int
}

// DefaultConfig returns the analysis window used in production.
func DefaultConfig() Config {
	return Config{MaxAnalysisSeconds: 60, IntroSkipSeconds: 5, AnalysisRate: 11025}
}

// Extractor derives feature vectors from rendered audio. The primary path
// needs a spectrum function (DSP capability); when none is available or it
// fails, extraction degrades to the fallback path instead of erroring.
type Extractor struct {
	cfg      Config
	spectrum SpectrumFunc
	logger   *slog.Logger
}

// Option customizes extractor construction.
type Option func(*Extractor)

// WithSpectrum replaces the DSP capability.
func WithSpectrum(fn SpectrumFunc) Option {
	return func(e *Extractor) { e.spectrum = fn }
}

// WithoutDSP removes the DSP capability, forcing the fallback path.
func WithoutDSP() Option {
	return func(e *Extractor) { e.spectrum = nil }
}

// NewExtractor constructs an extractor with the gonum-backed spectrum as the
// default DSP capability.
func NewExtractor(cfg Config, logger *slog.Logger, opts ...Option) *Extractor {
	if cfg.MaxAnalysisSeconds <= 0 {
		cfg.MaxAnalysisSeconds = DefaultConfig().MaxAnalysisSeconds
	}
	if cfg.AnalysisRate <= 0 {
		cfg.AnalysisRate = DefaultConfig().AnalysisRate
	}
	if cfg.IntroSkipSeconds < 0 {
		cfg.IntroSkipSeconds = 0
	}
	e := &Extractor{
		cfg:      cfg,
		spectrum: MagnitudeSpectrum,
		logger:   logging.NewComponentLogger(logger, "features"),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Extract decodes the rendered audio at wavPath and produces a feature
// vector. sourcePath identifies the originating SID file and is used only to
// seed placeholder values on the fallback path. Container validation errors
// propagate; DSP failures select the fallback path instead.
func (e *Extractor) Extract(wavPath, sourcePath string) (Set, error) {
	audio, err := wavio.DecodeFile(wavPath)
	if err != nil {
		return Set{}, err
	}

	window := e.analysisWindow(audio)
	duration := audio.Duration()

	if e.spectrum != nil {
		set, err := e.extractPrimary(window, duration)
		if err == nil {
			return set, nil
		}
		e.logger.Warn("primary feature extraction failed, using fallback",
			logging.String("wav", wavPath), logging.Error(err))
	}
	return e.extractFallback(window, duration, sourcePath), nil
}

// analysisWindow selects a bounded representative mono window at the
// analysis rate: intro skip (when enough material remains), channel-average
// downmix, then boxcar decimation.
func (e *Extractor) analysisWindow(audio *wavio.Audio) window {
	mono := downmix(audio)
	rate := audio.Format.SampleRate

	skip := e.cfg.IntroSkipSeconds * rate
	// Skip the intro only when at least as much material remains afterwards.
	if skip > 0 && len(mono) > 2*skip {
		mono = mono[skip:]
	}
	if limit := e.cfg.MaxAnalysisSeconds * rate; len(mono) > limit {
		mono = mono[:limit]
	}

	factor := rate / e.cfg.AnalysisRate
	if factor < 1 {
		factor = 1
	}
	return window{samples: decimate(mono, factor), rate: rate / factor}
}

type window struct {
	samples []float64
	rate    int
}

func downmix(audio *wavio.Audio) []float64 {
	channels := audio.Format.Channels
	if channels == 1 {
		out := make([]float64, len(audio.Samples))
		copy(out, audio.Samples)
		return out
	}
	frames := audio.Frames()
	out := make([]float64, frames)
	for i := 0; i < frames; i++ {
		var sum float64
		for ch := 0; ch < channels; ch++ {
			sum += audio.Samples[i*channels+ch]
		}
		out[i] = sum / float64(channels)
	}
	return out
}

// decimate reduces the rate by an integer factor, averaging each block to
// suppress aliasing of the discarded band.
func decimate(samples []float64, factor int) []float64 {
	if factor <= 1 {
		return samples
	}
	out := make([]float64, 0, len(samples)/factor+1)
	for i := 0; i+factor <= len(samples); i += factor {
		var sum float64
		for j := 0; j < factor; j++ {
			sum += samples[i+j]
		}
		out = append(out, sum/float64(factor))
	}
	return out
}

// Time-domain descriptors shared by both extraction paths.

func meanEnergy(samples []float64) float64 {
	if len(samples) == 0 {
		return 0
	}
	var sum float64
	for _, s := range samples {
		sum += s * s
	}
	return sum / float64(len(samples))
}

func rms(samples []float64) float64 {
	return math.Sqrt(meanEnergy(samples))
}

// zeroCrossingRate returns crossings per second at the given rate.
func zeroCrossingRate(samples []float64, rate int) float64 {
	if len(samples) < 2 {
		return 0
	}
	crossings := 0
	for i := 1; i < len(samples); i++ {
		if (samples[i-1] >= 0) != (samples[i] >= 0) {
			crossings++
		}
	}
	seconds := float64(len(samples)) / float64(rate)
	if seconds <= 0 {
		return 0
	}
	return float64(crossings) / seconds
}

func peakAmplitude(samples []float64) float64 {
	var peak float64
	for _, s := range samples {
		if a := math.Abs(s); a > peak {
			peak = a
		}
	}
	return peak
}

func dynamicRangeDB(peak, rmsValue float64) float64 {
	if rmsValue <= 0 || peak <= 0 {
		return 0
	}
	return 20 * math.Log10(peak/rmsValue)
}
