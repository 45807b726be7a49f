// Package services defines shared utilities consumed by the pipeline phases
// and external integrations.
//
// Key responsibilities:
//   - Context helpers that stamp file paths, phase names, thread indexes, and
//     correlation identifiers for logging and tracing.
//   - Structured error markers plus the Wrap helper that let the retry layer
//     classify failures without parsing message text.
//
// Use these helpers when wiring new phase logic so operational behaviour
// (error handling, observability, retries) stays uniform across the pipeline.
package services
