// Package features turns rendered audio into flat numeric feature vectors.
//
// Both extraction paths share the same preprocessing: strict container
// validation, a bounded representative analysis window (intro skip + length
// cap), mono downmix, and decimation to a fixed analysis rate matched to the
// limited effective bandwidth of chiptune material.
//
// The primary path computes one magnitude spectrum and derives every
// spectral descriptor from it. The fallback path runs when the DSP
// capability is unavailable or fails: identical time-domain formulas, fixed
// placeholder spectral descriptors, a cruder tempo proxy, lower confidence,
// and a distinct variant stamp so downstream consumers can discount it.
package features
