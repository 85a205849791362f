// Package logging wraps log/slog with the conventions used across comicreel:
// structured JSON output for files and services, a human-oriented console
// handler for interactive runs, component-scoped child loggers, and helpers
// that lift job metadata out of a context into log fields.
package logging
