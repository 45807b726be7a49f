package rating

import "math"

// Accumulator computes running mean and variance with Welford's algorithm.
// It is O(1) memory per feature and order-independent up to floating-point
// rounding, which keeps corpus fitting a single streaming pass.
type Accumulator struct {
	count   int
	mean    float64
	m2      float64
	nonZero int
}

// Add folds one observation into the accumulator. Non-finite values are
// ignored so a single corrupt vector cannot poison a feature's statistics.
func (a *Accumulator) Add(value float64) {
	if math.IsNaN(value) || math.IsInf(value, 0) {
		return
	}
	a.count++
	if value != 0 {
		a.nonZero++
	}
	delta := value - a.mean
	a.mean += delta / float64(a.count)
	a.m2 += delta * (value - a.mean)
}

// Stat is the finalized per-feature statistic kept by a fitted model.
type Stat struct {
	Mu           float64 `json:"mu"`
	Sigma        float64 `json:"sigma"`
	Count        int     `json:"count"`
	NonZeroCount int     `json:"non_zero_count"`
}

// Finalize produces the statistic. Sigma is the sample standard deviation;
// with fewer than two observations it is zero, which callers treat as
// degenerate.
func (a *Accumulator) Finalize() Stat {
	stat := Stat{Mu: a.mean, Count: a.count, NonZeroCount: a.nonZero}
	if a.count > 1 {
		stat.Sigma = math.Sqrt(a.m2 / float64(a.count-1))
	}
	return stat
}

// usable reports whether a finalized feature carries signal the model can
// normalize against: it appeared, was not always zero, and has a positive
// finite spread.
func (s Stat) usable() bool {
	if s.Count == 0 || s.NonZeroCount == 0 {
		return false
	}
	if math.IsNaN(s.Sigma) || math.IsInf(s.Sigma, 0) || s.Sigma <= 0 {
		return false
	}
	return true
}
