package rating

import (
	"testing"

	"github.com/chrisgleissner/sidflow-sub004/internal/features"
)

func fittedModel(t *testing.T) *Model {
	t.Helper()
	corpus := []features.Set{
		vector(map[string]float64{
			features.KeyBPM: 80, features.KeyZeroCrossingRate: 900,
			features.KeyDynamicRange: 10, features.KeyEnergy: 0.1,
			features.KeySpectralCentroid: 800, features.KeySpectralRolloff: 2000,
		}),
		vector(map[string]float64{
			features.KeyBPM: 125, features.KeyZeroCrossingRate: 1600,
			features.KeyDynamicRange: 20, features.KeyEnergy: 0.3,
			features.KeySpectralCentroid: 1500, features.KeySpectralRolloff: 4500,
		}),
		vector(map[string]float64{
			features.KeyBPM: 180, features.KeyZeroCrossingRate: 2600,
			features.KeyDynamicRange: 32, features.KeyEnergy: 0.6,
			features.KeySpectralCentroid: 2800, features.KeySpectralRolloff: 8000,
		}),
	}
	model, err := Fit(corpus)
	if err != nil {
		t.Fatalf("Fit: %v", err)
	}
	return model
}

func TestPredictDeterministic(t *testing.T) {
	model := fittedModel(t)
	set := vector(map[string]float64{
		features.KeyBPM: 170, features.KeyBPMConfidence: 0.5,
		features.KeyZeroCrossingRate: 2400, features.KeyDynamicRange: 30,
		features.KeyEnergy: 0.55, features.KeySpectralCentroid: 2600,
		features.KeySpectralRolloff: 7500,
	})

	first := model.Predict(set)
	second := model.Predict(set)
	for name, tv := range first.Tags {
		other := second.Tags[name]
		if tv.Value != other.Value || tv.Present != other.Present {
			t.Errorf("tag %s differs across identical predictions", name)
		}
	}
	for axis, score := range first.Ratings {
		if second.Ratings[axis] != score {
			t.Errorf("rating %s differs across identical predictions", axis)
		}
	}
}

func TestPredictTagDirections(t *testing.T) {
	model := fittedModel(t)

	fast := model.Predict(vector(map[string]float64{
		features.KeyBPM: 180, features.KeyBPMConfidence: 1.0,
		features.KeyZeroCrossingRate: 2600, features.KeyDynamicRange: 32,
		features.KeyEnergy: 0.6, features.KeySpectralCentroid: 2800,
		features.KeySpectralRolloff: 8000,
	}))
	slow := model.Predict(vector(map[string]float64{
		features.KeyBPM: 80, features.KeyBPMConfidence: 1.0,
		features.KeyZeroCrossingRate: 900, features.KeyDynamicRange: 10,
		features.KeyEnergy: 0.1, features.KeySpectralCentroid: 800,
		features.KeySpectralRolloff: 2000,
	}))

	if fast.Tags[TagTempoFast].Value <= slow.Tags[TagTempoFast].Value {
		t.Error("faster track should score higher on tempo_fast")
	}
	if fast.Tags[TagBright].Value <= slow.Tags[TagBright].Value {
		t.Error("brighter spectrum should score higher on bright")
	}
	if fast.Ratings[AxisEnergy] <= slow.Ratings[AxisEnergy] {
		t.Errorf("energy ratings: fast=%d slow=%d", fast.Ratings[AxisEnergy], slow.Ratings[AxisEnergy])
	}

	for _, p := range []Prediction{fast, slow} {
		noisy := p.Tags[TagNoisy]
		clarity := p.Tags[TagTonalClarity]
		if clarity.Present != noisy.Present || clarity.Value != 1-noisy.Value {
			t.Errorf("tonal_clarity must mirror noisy: %+v vs %+v", clarity, noisy)
		}
	}
}

func TestPredictConfidenceShrinksTempoEvidence(t *testing.T) {
	model := fittedModel(t)
	base := map[string]float64{
		features.KeyBPM:              180,
		features.KeyZeroCrossingRate: 1600,
	}

	confident := vector(map[string]float64{})
	for k, v := range base {
		confident.Values[k] = v
	}
	confident.Values[features.KeyBPMConfidence] = 1.0

	shaky := vector(map[string]float64{})
	for k, v := range base {
		shaky.Values[k] = v
	}
	shaky.Values[features.KeyBPMConfidence] = 0.1

	hi := model.Predict(confident).Tags[TagTempoFast].Value
	lo := model.Predict(shaky).Tags[TagTempoFast].Value
	if hi <= lo {
		t.Errorf("high-confidence tempo evidence should outweigh shaky: %f <= %f", hi, lo)
	}
}

func TestPredictAbsentEvidenceIsNeutral(t *testing.T) {
	model := fittedModel(t)
	empty := model.Predict(vector(map[string]float64{}))

	for name, tv := range empty.Tags {
		if tv.Present {
			t.Errorf("tag %s present with no evidence", name)
		}
		if tv.Value != neutral && name != TagTonalClarity {
			t.Errorf("tag %s = %f, want neutral", name, tv.Value)
		}
	}
	// tonal_clarity mirrors noisy's neutral
	if v := empty.Tags[TagTonalClarity].Value; v != 1-neutral {
		t.Errorf("tonal_clarity = %f", v)
	}
	for axis, score := range empty.Ratings {
		if score != 3 {
			t.Errorf("axis %s = %d, want neutral 3", axis, score)
		}
	}
}

func TestPredictPartialEvidenceRenormalizes(t *testing.T) {
	model := fittedModel(t)
	// only centroid present for bright; rolloff missing
	p := model.Predict(vector(map[string]float64{
		features.KeySpectralCentroid: 2800,
	}))
	bright := p.Tags[TagBright]
	if !bright.Present {
		t.Fatal("bright should be present with one term")
	}
	if bright.Value <= neutral {
		t.Errorf("high centroid alone should push bright above neutral, got %f", bright.Value)
	}
}

func TestScoreFromValue(t *testing.T) {
	cases := []struct {
		value float64
		want  int
	}{
		{0, 1}, {0.1, 1}, {0.2, 2}, {0.5, 3}, {0.75, 4}, {1, 5}, {-1, 1}, {2, 5},
	}
	for _, tc := range cases {
		if got := scoreFromValue(tc.value); got != tc.want {
			t.Errorf("scoreFromValue(%f) = %d, want %d", tc.value, got, tc.want)
		}
	}
}
