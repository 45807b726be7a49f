package rating

import (
	"encoding/json"
	"fmt"
	"math"
	"os"
	"time"

	"github.com/chrisgleissner/sidflow-sub004/internal/features"
	"github.com/chrisgleissner/sidflow-sub004/internal/fileutil"
	"github.com/chrisgleissner/sidflow-sub004/internal/services"
)

// normalizedClamp bounds z-scores so a single outlier cannot dominate the
// weighted tag combinations downstream.
const normalizedClamp = 3.0

// Model holds the learned per-feature normalization layer. Everything else
// in the rating system (tag weights, axis weights) is fixed; the model is
// immutable after Fit.
type Model struct {
	SchemaVersion int              `json:"schema_version"`
	Variant       features.Variant `json:"variant"`
	FittedAt      time.Time        `json:"fitted_at"`
	Stats         map[string]Stat  `json:"stats"`
}

// Fit builds a model from a training corpus in a single pass. Every vector
// must carry the same (SchemaVersion, Variant) stamp; mixing extraction
// variants would normalize degraded placeholders against real spectra.
func Fit(sets []features.Set) (*Model, error) {
	if len(sets) == 0 {
		return nil, services.Wrap(services.ErrValidation, "rating", "fit",
			"training corpus is empty", nil)
	}
	stamp := sets[0]
	accs := make(map[string]*Accumulator)
	for i, set := range sets {
		if !stamp.Compatible(set) {
			return nil, services.Wrap(services.ErrValidation, "rating", "fit",
				fmt.Sprintf("vector %d has stamp (%d,%s), corpus started with (%d,%s)",
					i, set.SchemaVersion, set.Variant, stamp.SchemaVersion, stamp.Variant), nil)
		}
		for key, value := range set.Values {
			acc := accs[key]
			if acc == nil {
				acc = &Accumulator{}
				accs[key] = acc
			}
			acc.Add(value)
		}
	}

	stats := make(map[string]Stat)
	for key, acc := range accs {
		stat := acc.Finalize()
		if stat.usable() {
			stats[key] = stat
		}
	}
	return &Model{
		SchemaVersion: stamp.SchemaVersion,
		Variant:       stamp.Variant,
		FittedAt:      time.Now().UTC(),
		Stats:         stats,
	}, nil
}

// Normalize maps a raw feature value to a clamped z-score. ok is false when
// the feature was dropped at fit time or the value is not finite, so callers
// can exclude missing evidence instead of folding in a sentinel.
func (m *Model) Normalize(key string, value float64) (float64, bool) {
	stat, found := m.Stats[key]
	if !found {
		return 0, false
	}
	if math.IsNaN(value) || math.IsInf(value, 0) {
		return 0, false
	}
	z := (value - stat.Mu) / stat.Sigma
	if z > normalizedClamp {
		z = normalizedClamp
	} else if z < -normalizedClamp {
		z = -normalizedClamp
	}
	return z, true
}

// Compatible reports whether a feature vector may be scored by this model.
func (m *Model) Compatible(set features.Set) bool {
	return m.SchemaVersion == set.SchemaVersion && m.Variant == set.Variant
}

// Save writes the model as JSON, atomically so a crashed fit never leaves a
// truncated model behind.
func (m *Model) Save(path string) error {
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return services.Wrap(services.ErrValidation, "rating", "save",
			"encode model", err)
	}
	if err := fileutil.WriteAtomic(path, data, 0o644); err != nil {
		return services.Wrap(services.ErrValidation, "rating", "save",
			fmt.Sprintf("write %s", path), err)
	}
	return nil
}

// Load reads a model saved by Save.
func Load(path string) (*Model, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, services.Wrap(services.ErrNotFound, "rating", "load",
				fmt.Sprintf("model %s", path), err)
		}
		return nil, services.Wrap(services.ErrValidation, "rating", "load",
			fmt.Sprintf("read %s", path), err)
	}
	var model Model
	if err := json.Unmarshal(data, &model); err != nil {
		return nil, services.Wrap(services.ErrValidation, "rating", "load",
			fmt.Sprintf("malformed model file %s", path), err)
	}
	if model.Stats == nil {
		model.Stats = map[string]Stat{}
	}
	return &model, nil
}
