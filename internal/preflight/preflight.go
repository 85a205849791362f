package preflight

import (
	"comicreel/internal/config"
)

// Result reports the outcome of a single preflight check.
type Result struct {
	Name   string
	Passed bool
	Detail string
}

// RunAll executes all applicable preflight checks for the given config.
func RunAll(cfg *config.Config) []Result {
	if cfg == nil {
		return nil
	}

	var results []Result

	results = append(results, CheckDirectoryAccess("Staging directory", cfg.Paths.StagingDir))
	results = append(results, CheckDirectoryAccess("Comic library", cfg.Library.ComicDir))
	results = append(results, CheckDirectoryAccess("Zip library", cfg.Library.ZipDir))
	results = append(results, CheckDirectoryAccess("Music library", cfg.Library.MusicDir))

	if cfg.Output.ComicDir != "" {
		results = append(results, CheckDirectoryAccess("Comic output", cfg.Output.ComicDir))
	}
	if cfg.Output.ZipDir != "" {
		results = append(results, CheckDirectoryAccess("Zip output", cfg.Output.ZipDir))
	}

	results = append(results, CheckDiskSpace("Staging free space", cfg.Paths.StagingDir, cfg.Pipeline.MinFreeSpaceGB))

	return results
}
