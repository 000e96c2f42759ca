// Package config loads, normalizes, and validates mmx configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and honours the MMX_BACKEND environment
// override. The Config type centralizes the knobs the remux runner and CLI
// need: which element library backend to use, how long the execution monitor
// may block on the control bus, how often progress is reported, and where logs
// and the job history ledger live.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths, canonical log formats, and clear validation errors.
package config
