// Package wavio decodes and encodes uncompressed PCM WAV containers.
//
// Decoding is deliberately strict: only PCM with 1-2 channels, 8/16/24/32-bit
// depth, and a non-empty data payload is accepted. Rejections carry
// validation markers (and "invalid"/"malformed" messages) so the retry layer
// treats container damage as fatal rather than burning attempts on it.
package wavio
