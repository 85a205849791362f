package main

import (
	"archive/zip"
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"comicreel/internal/history"
	"comicreel/internal/services"
	"comicreel/internal/testsupport"
)

type cliTestEnv struct {
	base       string
	configPath string
	comicDir   string
	zipDir     string
	musicDir   string
	stagingDir string
	logDir     string
	historyDB  string
}

func setupCLITestEnv(t *testing.T) *cliTestEnv {
	t.Helper()

	base := t.TempDir()
	env := &cliTestEnv{
		base:       base,
		configPath: filepath.Join(base, "config.toml"),
		comicDir:   filepath.Join(base, "comics"),
		zipDir:     filepath.Join(base, "zips"),
		musicDir:   filepath.Join(base, "music"),
		stagingDir: filepath.Join(base, "staging"),
		logDir:     filepath.Join(base, "logs"),
		historyDB:  filepath.Join(base, "history.db"),
	}
	for _, dir := range []string{env.comicDir, env.zipDir, env.musicDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			t.Fatal(err)
		}
	}

	content := fmt.Sprintf(`[library]
comic_dir = %q
zip_dir = %q
music_dir = %q

[pipeline]
min_free_space_gb = 0

[paths]
staging_dir = %q
log_dir = %q
history_db = %q
`, env.comicDir, env.zipDir, env.musicDir, env.stagingDir, env.logDir, env.historyDB)
	if err := os.WriteFile(env.configPath, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return env
}

// stubTools puts shell stubs for the named binaries on PATH, replacing it
// entirely so the test never reaches real tools.
func (env *cliTestEnv) stubTools(t *testing.T, names ...string) {
	t.Helper()
	dir := filepath.Join(env.base, "bin")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatal(err)
	}
	for _, name := range names {
		script := "#!/bin/sh\nexit 0\n"
		if err := os.WriteFile(filepath.Join(dir, name), []byte(script), 0o755); err != nil {
			t.Fatal(err)
		}
	}
	t.Setenv("PATH", dir)
}

func writeTestArchive(t *testing.T, path string, pages ...string) {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for _, page := range pages {
		w, err := zw.Create(page)
		if err != nil {
			t.Fatal(err)
		}
		if _, err := w.Write([]byte("image bytes")); err != nil {
			t.Fatal(err)
		}
	}
	if err := zw.Close(); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		t.Fatal(err)
	}
}

func writeTestTrack(t *testing.T, path string) {
	t.Helper()
	if err := os.WriteFile(path, []byte("audio bytes"), 0o644); err != nil {
		t.Fatal(err)
	}
}

func runCLI(t *testing.T, configPath string, args ...string) (string, string, error) {
	t.Helper()
	cmd := newRootCommand()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	var flags []string
	if configPath != "" {
		flags = append(flags, "--config", configPath)
	}
	cmd.SetArgs(append(flags, args...))
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func requireContains(t *testing.T, haystack, needle string) {
	t.Helper()
	if !strings.Contains(haystack, needle) {
		t.Fatalf("expected output to contain %q, got:\n%s", needle, haystack)
	}
}

func TestRootShowsHelpWithoutArgs(t *testing.T) {
	t.Setenv("HOME", t.TempDir())

	out, _, err := runCLI(t, "")
	if err != nil {
		t.Fatalf("root: %v", err)
	}
	requireContains(t, out, "Usage:")
	requireContains(t, out, "convert")
	requireContains(t, out, "watch")
}

func TestConvertDryRunPlansWithoutEncoding(t *testing.T) {
	env := setupCLITestEnv(t)
	env.stubTools(t, "ffmpeg", "magick")
	writeTestArchive(t, filepath.Join(env.comicDir, "alpha.cbz"), "001.jpg", "002.jpg")
	writeTestTrack(t, filepath.Join(env.musicDir, "theme.mp3"))

	out, _, err := runCLI(t, env.configPath, "convert", "--dry-run")
	if err != nil {
		t.Fatalf("convert --dry-run: %v", err)
	}
	requireContains(t, out, "alpha.cbz")
	requireContains(t, out, "theme.mp3")
	requireContains(t, out, "dry run")

	if _, err := os.Stat(filepath.Join(env.comicDir, "alpha.mp4")); !os.IsNotExist(err) {
		t.Fatalf("dry run should not produce a video, stat err = %v", err)
	}
	entries, err := os.ReadDir(env.stagingDir)
	if err != nil {
		t.Fatal(err)
	}
	for _, entry := range entries {
		if strings.HasPrefix(entry.Name(), "job-") {
			t.Fatalf("dry run left scratch directory %s", entry.Name())
		}
	}
}

func TestConvertRunsBatchAndRecordsHistory(t *testing.T) {
	env := setupCLITestEnv(t)
	env.stubTools(t, "ffmpeg", "magick")
	writeTestArchive(t, filepath.Join(env.comicDir, "alpha.cbz"), "001.jpg", "002.jpg")
	writeTestTrack(t, filepath.Join(env.musicDir, "theme.mp3"))

	out, _, err := runCLI(t, env.configPath, "convert")
	if err != nil {
		t.Fatalf("convert: %v", err)
	}
	requireContains(t, out, "alpha.cbz")
	requireContains(t, out, "1 succeeded, 0 failed")

	store, err := history.Open(env.historyDB)
	if err != nil {
		t.Fatalf("open history: %v", err)
	}
	defer store.Close()
	records, err := store.List(context.Background(), history.ListOptions{})
	if err != nil {
		t.Fatalf("list history: %v", err)
	}
	if len(records) != 1 || records[0].Status != history.StatusSucceeded {
		t.Fatalf("history records = %+v, want one succeeded row", records)
	}
	if records[0].Title != "Alpha" {
		t.Fatalf("recorded title = %q", records[0].Title)
	}
}

func TestConvertFailsWhenFFmpegMissing(t *testing.T) {
	env := setupCLITestEnv(t)
	env.stubTools(t) // empty PATH: no tools at all
	writeTestArchive(t, filepath.Join(env.comicDir, "alpha.cbz"), "001.jpg")
	writeTestTrack(t, filepath.Join(env.musicDir, "theme.mp3"))

	_, _, err := runCLI(t, env.configPath, "convert")
	if !errors.Is(err, services.ErrConfiguration) {
		t.Fatalf("err = %v, want configuration error", err)
	}
	requireContains(t, err.Error(), "missing required dependencies")
}

func TestConvertReportsFailedArchives(t *testing.T) {
	env := setupCLITestEnv(t)
	env.stubTools(t, "ffmpeg", "magick")
	writeTestArchive(t, filepath.Join(env.comicDir, "good.cbz"), "001.jpg")
	if err := os.WriteFile(filepath.Join(env.comicDir, "broken.cbz"), []byte("not a zip"), 0o644); err != nil {
		t.Fatal(err)
	}
	writeTestTrack(t, filepath.Join(env.musicDir, "theme.mp3"))

	out, _, err := runCLI(t, env.configPath, "convert")
	if err == nil || !strings.Contains(err.Error(), "1 of 2 conversions failed") {
		t.Fatalf("err = %v, want a failure count", err)
	}
	requireContains(t, out, "broken.cbz")
	requireContains(t, out, "1 succeeded, 1 failed")
}

func TestCheckCommandFailsWithoutFFmpeg(t *testing.T) {
	env := setupCLITestEnv(t)
	env.stubTools(t)

	out, _, err := runCLI(t, env.configPath, "check")
	if err == nil || !strings.Contains(err.Error(), "FFmpeg") {
		t.Fatalf("err = %v, want missing FFmpeg", err)
	}
	requireContains(t, out, "not found")
}

func TestCheckCommandPassesWithStubbedTools(t *testing.T) {
	env := setupCLITestEnv(t)
	env.stubTools(t, "ffmpeg", "magick")

	out, _, err := runCLI(t, env.configPath, "check")
	if err != nil {
		t.Fatalf("check: %v", err)
	}
	requireContains(t, out, "FFmpeg")
	requireContains(t, out, "ImageMagick")
	requireContains(t, out, "Staging free space")
}

func TestHistoryCommandListsAndFilters(t *testing.T) {
	env := setupCLITestEnv(t)

	store, err := history.Open(env.historyDB)
	if err != nil {
		t.Fatalf("open history: %v", err)
	}
	now := time.Now().UTC()
	seed := []history.Record{
		{
			ArchivePath: "/comics/alpha.cbz",
			ArchiveKind: "comic",
			Title:       "Alpha",
			Status:      history.StatusSucceeded,
			OutputPath:  "/comics/alpha.mp4",
			StartedAt:   now.Add(-2 * time.Minute),
			FinishedAt:  now.Add(-time.Minute),
		},
		{
			ArchivePath:  "/comics/beta.cbz",
			ArchiveKind:  "comic",
			Title:        "Beta",
			Status:       history.StatusFailed,
			ErrorMessage: "all 3 pages failed",
			StartedAt:    now.Add(-time.Minute),
			FinishedAt:   now,
		},
	}
	for _, rec := range seed {
		testsupport.AddRecord(t, store, rec)
	}
	store.Close()

	out, _, err := runCLI(t, env.configPath, "history")
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	requireContains(t, out, "Alpha")
	requireContains(t, out, "Beta")

	out, _, err = runCLI(t, env.configPath, "history", "--failed")
	if err != nil {
		t.Fatalf("history --failed: %v", err)
	}
	requireContains(t, out, "Beta")
	if strings.Contains(out, "Alpha") {
		t.Fatalf("--failed output should not list successes:\n%s", out)
	}
}

func TestHistoryCommandEmptyStore(t *testing.T) {
	env := setupCLITestEnv(t)

	out, _, err := runCLI(t, env.configPath, "history")
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	requireContains(t, out, "No conversions recorded yet.")
}

func TestHistoryCommandDisabledWithoutDatabase(t *testing.T) {
	env := setupCLITestEnv(t)
	content := fmt.Sprintf(`[library]
comic_dir = %q
zip_dir = %q
music_dir = %q

[paths]
staging_dir = %q
log_dir = %q
history_db = ""
`, env.comicDir, env.zipDir, env.musicDir, env.stagingDir, env.logDir)
	if err := os.WriteFile(env.configPath, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	_, _, err := runCLI(t, env.configPath, "history")
	if err == nil || !strings.Contains(err.Error(), "history is disabled") {
		t.Fatalf("err = %v, want history disabled", err)
	}
}
