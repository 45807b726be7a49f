// Package rating implements the deterministic scoring layer: a learned
// per-feature normalization (Welford mean/sigma over a training corpus)
// underneath a fixed, hand-specified set of weighted sigmoid tags and
// three rating axes. Only mu/sigma are learned; every weight and formula
// is a constant, so predictions are reproducible and auditable.
package rating
