// Package config loads, normalizes, and validates Video Insight configuration.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files (or YAML when the file ends in .yaml/.yml), and
// honours environment fallbacks such as SUMMARY_API_KEY and HF_TOKEN. The
// Config type centralizes every knob the daemon and CLI need.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths, canonical device names, and clear validation errors.
package config
