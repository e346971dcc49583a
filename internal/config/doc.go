// Package config loads, normalizes, and validates genguard configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and honours environment fallbacks such as
// GENGUARD_API_KEY. The Config type centralizes the retry budget, backoff
// policy, generation endpoint, and telemetry destinations so the CLI and the
// orchestrator discover them in one pass.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths, canonical log formats, and clear validation errors.
package config
