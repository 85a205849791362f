// Package config loads, normalizes, and validates comicreel configuration.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), and reads TOML files. The Config type centralizes every knob
// the CLI needs: library roots to browse for archives and music, optional
// output directories, video timing parameters, pipeline limits, and logging
// preferences.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths, canonical extension lists, and clear validation errors.
package config
