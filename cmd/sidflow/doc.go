// Package main hosts the sidflow CLI entrypoint and command graph.
//
// The Cobra-based command tree covers the full corpus workflow: fitting the
// rating model, classifying tunes, and housekeeping for the feature cache
// and configuration. Command bodies stay thin; the pipeline, cache, and
// rating packages do the actual work.
package main
