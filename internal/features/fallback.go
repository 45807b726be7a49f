package features

import (
	"crypto/sha256"
	"math"
)

const fallbackBPMConfidence = 0.25

// extractFallback produces a degraded vector when no DSP capability is
// available or the primary path failed. Time-domain descriptors use the same
// formulas as the primary path; spectral descriptors are placeholders seeded
// from the source path so a given file stays stable across runs.
func (e *Extractor) extractFallback(w window, duration float64, sourcePath string) Set {
	energy := meanEnergy(w.samples)
	rmsValue := rms(w.samples)
	zcr := zeroCrossingRate(w.samples, w.rate)
	peak := peakAmplitude(w.samples)

	seed := sha256.Sum256([]byte(sourcePath))
	centroid := 600 + float64(seed[0])*4  // 600..1620 Hz
	rolloff := 2000 + float64(seed[1])*12 // 2000..5060 Hz

	// Cruder tempo proxy than the primary path: coarser quantization, same
	// evidence.
	bpm := math.Max(40, math.Min(200, math.Round(zcr/25/10)*10))

	return Set{
		SchemaVersion: SchemaVersion,
		Variant:       VariantDegraded,
		Values: map[string]float64{
			KeyEnergy:           energy,
			KeyRMS:              rmsValue,
			KeyZeroCrossingRate: zcr,
			KeySpectralCentroid: centroid,
			KeySpectralRolloff:  rolloff,
			KeyBPM:              bpm,
			KeyBPMConfidence:    fallbackBPMConfidence,
			KeyDuration:         duration,
			KeyPeakAmplitude:    peak,
			KeyDynamicRange:     dynamicRangeDB(peak, rmsValue),
		},
	}
}
