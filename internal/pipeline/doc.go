// Package pipeline composes the classifier: it drives each file through
// analyzing, building, metadata, and tagging using the render pool, feature
// cache, extractor, and rating model, retrying each phase under its policy
// and reporting everything to the progress aggregator.
package pipeline
