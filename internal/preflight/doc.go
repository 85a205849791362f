// Package preflight provides readiness checks for the filesystem paths and
// external binaries a conversion batch depends on.
//
// These checks run in two contexts:
//   - The batch runner calls the targeted helpers before its first job so a
//     doomed run fails in seconds instead of after a long encode.
//   - The CLI "comicreel check" command uses RunAll to display overall health.
package preflight
