package rating

import (
	"math"

	"github.com/chrisgleissner/sidflow-sub004/internal/features"
)

// Tag names produced by Predict.
const (
	TagTempoFast    = "tempo_fast"
	TagPercussive   = "percussive"
	TagBright       = "bright"
	TagNoisy        = "noisy"
	TagTonalClarity = "tonal_clarity"
	TagDemoLike     = "demo_like"
)

// Rating axis names produced by Predict.
const (
	AxisEnergy     = "energy"
	AxisComplexity = "complexity"
	AxisMood       = "mood"
)

// neutral is the value a tag or axis takes when no contributing evidence
// was present in the feature vector.
const neutral = 0.5

// TagValue is a tag activation in [0,1]. Present is false when none of the
// tag's contributing features survived normalization; the value is then the
// neutral 0.5 and must not count as evidence in further combinations.
type TagValue struct {
	Value   float64 `json:"value"`
	Present bool    `json:"present"`
}

// Prediction is the deterministic output of Predict for one feature vector.
type Prediction struct {
	Tags    map[string]TagValue `json:"tags"`
	Ratings map[string]int      `json:"ratings"`
}

// term is one weighted contribution to a tag. invert flips the direction of
// the evidence (high z lowers the tag instead of raising it).
type term struct {
	key    string
	weight float64
	invert bool
}

// Tag definitions are fixed. Weights sum to 1 per tag; only per-feature
// mu/sigma are learned, which keeps the rule set small and auditable.
// Iteration over these slices is ordered, so repeated predictions on the
// same vector are bit-identical.
var (
	tempoFastTerms = []term{
		{key: features.KeyBPM, weight: 0.7},
		{key: features.KeyZeroCrossingRate, weight: 0.3},
	}
	percussiveTerms = []term{
		{key: features.KeyDynamicRange, weight: 0.6},
		{key: features.KeyEnergy, weight: 0.4},
	}
	brightTerms = []term{
		{key: features.KeySpectralCentroid, weight: 0.6},
		{key: features.KeySpectralRolloff, weight: 0.4},
	}
	noisyTerms = []term{
		{key: features.KeyZeroCrossingRate, weight: 0.7},
		{key: features.KeyDynamicRange, weight: 0.3, invert: true},
	}
)

// axisTerm weights one tag's contribution to a rating axis.
type axisTerm struct {
	tag    string
	weight float64
}

var axisTerms = []struct {
	axis  string
	terms []axisTerm
}{
	{AxisEnergy, []axisTerm{
		{TagTempoFast, 0.40},
		{TagPercussive, 0.35},
		{TagNoisy, 0.25},
	}},
	{AxisComplexity, []axisTerm{
		{TagDemoLike, 0.40},
		{TagBright, 0.30},
		{TagTempoFast, 0.30},
	}},
	{AxisMood, []axisTerm{
		{TagTonalClarity, 0.50},
		{TagBright, 0.30},
		{TagTempoFast, 0.20},
	}},
}

func sigmoid(z float64) float64 {
	return 1 / (1 + math.Exp(-z))
}

// combineTerms evaluates a fixed term list against the model, renormalizing
// weights over the terms that were actually present.
func (m *Model) combineTerms(terms []term, values map[string]float64) TagValue {
	var sum, weight float64
	for _, t := range terms {
		raw, ok := values[t.key]
		if !ok {
			continue
		}
		z, ok := m.Normalize(t.key, raw)
		if !ok {
			continue
		}
		if t.invert {
			z = -z
		}
		sum += t.weight * sigmoid(z)
		weight += t.weight
	}
	if weight == 0 {
		return TagValue{Value: neutral}
	}
	return TagValue{Value: sum / weight, Present: true}
}

// tempoTag folds the BPM evidence in after shrinking it toward neutral by
// √confidence, so a low-confidence tempo estimate cannot flip the tag.
func (m *Model) tempoTag(values map[string]float64) TagValue {
	confidence := values[features.KeyBPMConfidence]
	if confidence < 0 || math.IsNaN(confidence) {
		confidence = 0
	} else if confidence > 1 {
		confidence = 1
	}
	shrink := math.Sqrt(confidence)

	var sum, weight float64
	for _, t := range tempoFastTerms {
		raw, ok := values[t.key]
		if !ok {
			continue
		}
		z, ok := m.Normalize(t.key, raw)
		if !ok {
			continue
		}
		v := sigmoid(z)
		if t.key == features.KeyBPM {
			v = neutral + (v-neutral)*shrink
		}
		sum += t.weight * v
		weight += t.weight
	}
	if weight == 0 {
		return TagValue{Value: neutral}
	}
	return TagValue{Value: sum / weight, Present: true}
}

// demoLike combines already-computed tags rather than raw features.
func demoLike(tags map[string]TagValue) TagValue {
	parts := []axisTerm{
		{TagTempoFast, 0.40},
		{TagPercussive, 0.30},
		{TagBright, 0.30},
	}
	var sum, weight float64
	for _, p := range parts {
		tv := tags[p.tag]
		if !tv.Present {
			continue
		}
		sum += p.weight * tv.Value
		weight += p.weight
	}
	if weight == 0 {
		return TagValue{Value: neutral}
	}
	return TagValue{Value: sum / weight, Present: true}
}

// scoreFromValue maps a [0,1] axis value to a 1..5 rating.
func scoreFromValue(v float64) int {
	score := int(math.Round(1 + 4*v))
	if score < 1 {
		score = 1
	} else if score > 5 {
		score = 5
	}
	return score
}

// Predict scores one feature vector against the fitted model. It is pure:
// the same model and vector always produce bit-identical tags and ratings.
// Vectors with a different validity stamp still score, but every feature
// the model never saw normalizes to absent, so the result degrades to
// neutral rather than mixing variants silently; callers should check
// Compatible first.
func (m *Model) Predict(set features.Set) Prediction {
	values := set.Values

	tags := map[string]TagValue{
		TagTempoFast:  m.tempoTag(values),
		TagPercussive: m.combineTerms(percussiveTerms, values),
		TagBright:     m.combineTerms(brightTerms, values),
		TagNoisy:      m.combineTerms(noisyTerms, values),
	}
	noisy := tags[TagNoisy]
	tags[TagTonalClarity] = TagValue{Value: 1 - noisy.Value, Present: noisy.Present}
	tags[TagDemoLike] = demoLike(tags)

	ratings := make(map[string]int, len(axisTerms))
	for _, axis := range axisTerms {
		var sum, weight float64
		for _, t := range axis.terms {
			tv := tags[t.tag]
			if !tv.Present {
				continue
			}
			sum += t.weight * tv.Value
			weight += t.weight
		}
		value := neutral
		if weight > 0 {
			value = sum / weight
		}
		ratings[axis.axis] = scoreFromValue(value)
	}

	return Prediction{Tags: tags, Ratings: ratings}
}
