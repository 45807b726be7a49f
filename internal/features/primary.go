package features

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/dsp/fourier"
)

// SpectrumFunc is the externally supplied DSP capability: it maps a
// time-domain window to a one-sided magnitude spectrum.
type SpectrumFunc func(samples []float64) ([]float64, error)

// MagnitudeSpectrum is the default DSP capability, backed by gonum's real
// FFT.
func MagnitudeSpectrum(samples []float64) ([]float64, error) {
	if len(samples) < 2 {
		return nil, errors.New("window too short for spectrum")
	}
	fft := fourier.NewFFT(len(samples))
	coeffs := fft.Coefficients(nil, samples)
	magnitudes := make([]float64, len(coeffs))
	for i, c := range coeffs {
		magnitudes[i] = math.Hypot(real(c), imag(c))
	}
	return magnitudes, nil
}

const (
	primaryBPMConfidence = 0.5
	rolloffFraction      = 0.85
)

// extractPrimary computes the full feature vector. The magnitude spectrum is
// computed once and reused for every spectral descriptor.
func (e *Extractor) extractPrimary(w window, duration float64) (Set, error) {
	if len(w.samples) == 0 {
		return Set{}, errors.New("empty analysis window")
	}
	magnitudes, err := e.spectrum(w.samples)
	if err != nil {
		return Set{}, fmt.Errorf("magnitude spectrum: %w", err)
	}
	if len(magnitudes) == 0 {
		return Set{}, errors.New("spectrum capability returned no bins")
	}

	energy := meanEnergy(w.samples)
	rmsValue := rms(w.samples)
	zcr := zeroCrossingRate(w.samples, w.rate)
	peak := peakAmplitude(w.samples)

	centroid := spectralCentroid(magnitudes, w.rate, len(w.samples))
	rolloff := spectralRolloff(magnitudes, w.rate, len(w.samples))
	bpm := bpmFromZCR(zcr)

	return Set{
		SchemaVersion: SchemaVersion,
		Variant:       VariantFull,
		Values: map[string]float64{
			KeyEnergy:           energy,
			KeyRMS:              rmsValue,
			KeyZeroCrossingRate: zcr,
			KeySpectralCentroid: centroid,
			KeySpectralRolloff:  rolloff,
			KeyBPM:              bpm,
			KeyBPMConfidence:    primaryBPMConfidence,
			KeyDuration:         duration,
			KeyPeakAmplitude:    peak,
			KeyDynamicRange:     dynamicRangeDB(peak, rmsValue),
		},
	}, nil
}

// binFrequency converts a one-sided spectrum bin index to Hz.
func binFrequency(bin, rate, windowLen int) float64 {
	return float64(bin) * float64(rate) / float64(windowLen)
}

func spectralCentroid(magnitudes []float64, rate, windowLen int) float64 {
	var weighted, total float64
	for i, m := range magnitudes {
		weighted += binFrequency(i, rate, windowLen) * m
		total += m
	}
	if total == 0 {
		return 0
	}
	return weighted / total
}

// spectralRolloff returns the frequency below which rolloffFraction of the
// spectral energy lies.
func spectralRolloff(magnitudes []float64, rate, windowLen int) float64 {
	var total float64
	for _, m := range magnitudes {
		total += m * m
	}
	if total == 0 {
		return 0
	}
	threshold := total * rolloffFraction
	var running float64
	for i, m := range magnitudes {
		running += m * m
		if running >= threshold {
			return binFrequency(i, rate, windowLen)
		}
	}
	return binFrequency(len(magnitudes)-1, rate, windowLen)
}

// bpmFromZCR is a deliberately cheap tempo proxy: full onset/rhythm
// extraction is avoided for batch throughput. Busier waveforms cross zero
// more often, which correlates loosely with tempo for this material.
func bpmFromZCR(zcr float64) float64 {
	bpm := zcr / 20
	return math.Max(40, math.Min(220, bpm))
}
