// Package config loads, validates, and normalizes the TOML configuration for
// the classifier.
//
// Load resolves the config path (explicit flag, ~/.config/sidflow/config.toml,
// or a project-local sidflow.toml), decodes it over Default() values, expands
// home-relative paths, and rejects configurations the pipeline cannot run
// with. WriteSample scaffolds a commented starter file for `sidflow config
// init`.
package config
