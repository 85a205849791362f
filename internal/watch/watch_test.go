package watch

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"comicreel/internal/batch"
	"comicreel/internal/config"
	"comicreel/internal/logging"
	"comicreel/internal/services"
	"comicreel/internal/testsupport"
)

type fakeConverter struct {
	mu       sync.Mutex
	requests []batch.Request
	err      error
}

func (f *fakeConverter) Run(ctx context.Context, req batch.Request) (*batch.Result, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, req)
	if f.err != nil {
		return nil, f.err
	}
	return &batch.Result{Succeeded: len(req.Archives)}, nil
}

func (f *fakeConverter) converted() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var archives []string
	for _, req := range f.requests {
		archives = append(archives, req.Archives...)
	}
	return archives
}

func TestTrackerSettlesAfterStableSize(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "a.cbz")
	testsupport.WriteFile(t, path, 64)

	tr := newTracker()
	if !tr.note(path) {
		t.Fatal("first note should report a new path")
	}
	if tr.note(path) {
		t.Fatal("second note should not report a new path")
	}
	if ready := tr.settle(); len(ready) != 0 {
		t.Fatalf("first settle = %v, want nothing ready yet", ready)
	}
	ready := tr.settle()
	if len(ready) != 1 || ready[0] != path {
		t.Fatalf("second settle = %v, want the stable archive", ready)
	}
	if ready = tr.settle(); len(ready) != 0 {
		t.Fatalf("settled archive came back: %v", ready)
	}
}

func TestTrackerWaitsWhileGrowing(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "a.cbz")
	testsupport.WriteFile(t, path, 64)

	tr := newTracker()
	tr.note(path)
	tr.settle()

	testsupport.WriteFile(t, path, 128)
	if ready := tr.settle(); len(ready) != 0 {
		t.Fatalf("growing archive settled early: %v", ready)
	}
	ready := tr.settle()
	if len(ready) != 1 {
		t.Fatalf("settle after growth stopped = %v, want one archive", ready)
	}
}

func TestTrackerDropsVanishedFiles(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "a.cbz")
	testsupport.WriteFile(t, path, 64)

	tr := newTracker()
	tr.note(path)
	tr.settle()
	if err := os.Remove(path); err != nil {
		t.Fatal(err)
	}
	if ready := tr.settle(); len(ready) != 0 {
		t.Fatalf("vanished archive settled: %v", ready)
	}
	if len(tr.pending) != 0 {
		t.Fatalf("pending = %v, want empty", tr.pending)
	}
}

func TestTrackerIgnoresEmptyFiles(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "a.cbz")
	testsupport.WriteFile(t, path, 0)

	tr := newTracker()
	tr.note(path)
	tr.settle()
	if ready := tr.settle(); len(ready) != 0 {
		t.Fatalf("empty archive settled: %v", ready)
	}

	testsupport.WriteFile(t, path, 32)
	tr.settle()
	if ready := tr.settle(); len(ready) != 1 {
		t.Fatalf("archive with content never settled: %v", ready)
	}
}

func TestWatcherConvertsSettledArchive(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	converter := &fakeConverter{}
	watcher, err := New(cfg, converter, []string{"/music/theme.mp3"}, logging.NewNop(), WithInterval(20*time.Millisecond))
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- watcher.Run(ctx) }()

	// Give the fsnotify watch a moment to attach before creating the file.
	time.Sleep(100 * time.Millisecond)
	archivePath := filepath.Join(cfg.Library.ComicDir, "new.cbz")
	testsupport.WriteFile(t, archivePath, 256)

	deadline := time.After(5 * time.Second)
	for len(converter.converted()) == 0 {
		select {
		case <-deadline:
			t.Fatal("archive was never converted")
		case <-time.After(20 * time.Millisecond):
		}
	}
	got := converter.converted()
	if len(got) != 1 || got[0] != archivePath {
		t.Fatalf("converted %v, want %q", got, archivePath)
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run after cancel = %v, want nil", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("watcher did not stop after cancel")
	}
}

func TestWatcherIgnoresNonArchiveFiles(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	converter := &fakeConverter{}
	watcher, err := New(cfg, converter, []string{"/music/theme.mp3"}, logging.NewNop(), WithInterval(20*time.Millisecond))
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- watcher.Run(ctx) }()

	time.Sleep(100 * time.Millisecond)
	testsupport.WriteFile(t, filepath.Join(cfg.Library.ComicDir, "cover.jpg"), 128)
	time.Sleep(200 * time.Millisecond)

	if got := converter.converted(); len(got) != 0 {
		t.Fatalf("converted %v, want nothing for a non-archive", got)
	}
	cancel()
	<-done
}

func TestWatcherStopsOnConfigurationError(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	converter := &fakeConverter{
		err: services.Wrap(services.ErrConfiguration, "encode", "", "ffmpeg binary not found", nil),
	}
	watcher, err := New(cfg, converter, []string{"/music/theme.mp3"}, logging.NewNop(), WithInterval(20*time.Millisecond))
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- watcher.Run(ctx) }()

	time.Sleep(100 * time.Millisecond)
	testsupport.WriteFile(t, filepath.Join(cfg.Library.ComicDir, "new.cbz"), 256)

	select {
	case err := <-done:
		if !errors.Is(err, services.ErrConfiguration) {
			t.Fatalf("Run = %v, want configuration error", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("watcher kept running after a configuration error")
	}
}

func TestWatcherKeepsRunningAfterRecoverableBatchError(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	converter := &fakeConverter{
		err: services.Wrap(services.ErrValidation, "batch", "", "no archives to convert", nil),
	}
	watcher, err := New(cfg, converter, []string{"/music/theme.mp3"}, logging.NewNop(), WithInterval(20*time.Millisecond))
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- watcher.Run(ctx) }()

	time.Sleep(100 * time.Millisecond)
	testsupport.WriteFile(t, filepath.Join(cfg.Library.ComicDir, "new.cbz"), 256)

	deadline := time.After(5 * time.Second)
	for len(converter.converted()) == 0 {
		select {
		case <-deadline:
			t.Fatal("batch was never attempted")
		case <-time.After(20 * time.Millisecond):
		}
	}

	select {
	case err := <-done:
		t.Fatalf("watcher exited with %v after a recoverable error", err)
	case <-time.After(200 * time.Millisecond):
	}
	cancel()
	if err := <-done; err != nil {
		t.Fatalf("Run after cancel = %v, want nil", err)
	}
}

func TestWatcherRequiresExistingLibraryDirs(t *testing.T) {
	base := t.TempDir()
	cfg := config.Default()
	cfg.Library.ComicDir = filepath.Join(base, "missing-comics")
	cfg.Library.ZipDir = filepath.Join(base, "missing-zips")

	watcher, err := New(&cfg, &fakeConverter{}, []string{"/music/theme.mp3"}, logging.NewNop())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := watcher.Run(context.Background()); !errors.Is(err, services.ErrConfiguration) {
		t.Fatalf("Run = %v, want configuration error", err)
	}
}

func TestNewRejectsEmptyAudioPool(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	if _, err := New(cfg, &fakeConverter{}, nil, logging.NewNop()); !errors.Is(err, services.ErrValidation) {
		t.Fatalf("New = %v, want validation error", err)
	}
}
