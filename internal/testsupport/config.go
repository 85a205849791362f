package testsupport

import (
	"os"
	"path/filepath"
	"testing"

	"comicreel/internal/config"
)

// NewConfig produces a config rooted in per-test temp directories, with the
// worker pool pinned small and the free-space floor disabled so tests never
// depend on the host machine. Callers adjust the returned config directly
// when a test needs something unusual.
func NewConfig(t testing.TB) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfg := config.Default()
	cfg.Library.ComicDir = filepath.Join(base, "comics")
	cfg.Library.ZipDir = filepath.Join(base, "zips")
	cfg.Library.MusicDir = filepath.Join(base, "music")
	cfg.Output.ComicDir = ""
	cfg.Output.ZipDir = ""
	cfg.Paths.StagingDir = filepath.Join(base, "staging")
	cfg.Paths.LogDir = filepath.Join(base, "logs")
	cfg.Paths.HistoryDB = filepath.Join(base, "history.db")
	cfg.Pipeline.Workers = 2
	cfg.Pipeline.MinFreeSpaceGB = 0

	for _, dir := range []string{
		cfg.Library.ComicDir,
		cfg.Library.ZipDir,
		cfg.Library.MusicDir,
		cfg.Paths.StagingDir,
	} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			t.Fatalf("create %s: %v", dir, err)
		}
	}
	return &cfg
}

// BaseDir returns the temp root backing a NewConfig result.
func BaseDir(cfg *config.Config) string {
	return filepath.Dir(cfg.Paths.StagingDir)
}
