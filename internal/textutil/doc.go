// Package textutil provides the small text transforms the pipeline needs:
// deriving safe output video names from archive names, sanitizing strings
// destined for the filesystem, and producing human-readable display titles
// for logs and tables.
package textutil
