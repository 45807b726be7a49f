package features

// SchemaVersion identifies the feature vector layout. Bump it whenever keys
// are added, removed, or change meaning; cached vectors with a different
// version are not comparable.
const SchemaVersion = 2

// Variant distinguishes the extraction path that produced a vector.
// (SchemaVersion, Variant) is part of feature validity: vectors from
// different variants must never be normalized against each other.
type Variant string

const (
	// VariantFull marks vectors produced by the spectral (primary) path.
	VariantFull Variant = "full"
	// VariantDegraded marks vectors from the fallback path, so downstream
	// consumers can discount them.
	VariantDegraded Variant = "degraded"
)

// Canonical feature keys.
const (
	KeyEnergy           = "energy"
	KeyRMS              = "rms"
	KeyZeroCrossingRate = "zero_crossing_rate"
	KeySpectralCentroid = "spectral_centroid"
	KeySpectralRolloff  = "spectral_rolloff"
	KeyBPM              = "bpm"
	KeyBPMConfidence    = "bpm_confidence"
	KeyDuration         = "duration_seconds"
	KeyPeakAmplitude    = "peak_amplitude"
	KeyDynamicRange     = "dynamic_range"
)

// Set is a flat feature vector plus its validity stamp.
type Set struct {
	SchemaVersion int                `json:"schema_version"`
	Variant       Variant            `json:"variant"`
	Values        map[string]float64 `json:"values"`
}

// Compatible reports whether two sets share a validity stamp.
func (s Set) Compatible(other Set) bool {
	return s.SchemaVersion == other.SchemaVersion && s.Variant == other.Variant
}

// Clone returns a deep copy of the set.
func (s Set) Clone() Set {
	values := make(map[string]float64, len(s.Values))
	for k, v := range s.Values {
		values[k] = v
	}
	return Set{SchemaVersion: s.SchemaVersion, Variant: s.Variant, Values: values}
}
