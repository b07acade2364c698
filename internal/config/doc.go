// Package config loads, normalizes, and validates lootwatch configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and honours environment fallbacks such as
// POESESSID. The Config type centralizes every knob the pollers, renderer,
// dispatcher, and CLI need so they all observe the same pacing values.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths, millisecond delays above the enforced floor, and clear
// validation errors.
package config
