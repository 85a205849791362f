// Package services defines shared utilities consumed by the conversion
// pipeline and the external tool clients.
//
// Key responsibilities:
//   - Context helpers that stamp job IDs, archive names, and stage names for
//     logging.
//   - Structured error markers plus the Wrap helper that keep failure
//     classification (recoverable skip vs batch abort) uniform across stages.
package services
