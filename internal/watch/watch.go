// Package watch converts archives as they land in the library
// directories. New files are debounced until their size stops moving,
// since an archive being copied in raises a stream of write events long
// before it is complete, then handed to the batch runner.
package watch

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"comicreel/internal/batch"
	"comicreel/internal/config"
	"comicreel/internal/logging"
	"comicreel/internal/natsort"
	"comicreel/internal/services"
)

// DefaultInterval is how often pending archives are re-measured.
const DefaultInterval = 2 * time.Second

// Converter runs one batch over settled archives.
type Converter interface {
	Run(ctx context.Context, req batch.Request) (*batch.Result, error)
}

// Watcher owns the fsnotify loop over the library directories.
type Watcher struct {
	cfg       *config.Config
	converter Converter
	audioPool []string
	logger    *slog.Logger
	interval  time.Duration
}

// Option adjusts watcher construction.
type Option func(*Watcher)

// WithInterval overrides the settle-check interval.
func WithInterval(interval time.Duration) Option {
	return func(w *Watcher) {
		if interval > 0 {
			w.interval = interval
		}
	}
}

// New builds a watcher over the configured library directories.
func New(cfg *config.Config, converter Converter, audioPool []string, logger *slog.Logger, opts ...Option) (*Watcher, error) {
	if cfg == nil {
		return nil, errors.New("config is required")
	}
	if converter == nil {
		return nil, errors.New("converter is required")
	}
	if len(audioPool) == 0 {
		return nil, services.Wrap(services.ErrValidation, "watch", "", "no audio tracks available", nil)
	}
	if logger == nil {
		logger = slog.Default()
	}
	watcher := &Watcher{
		cfg:       cfg,
		converter: converter,
		audioPool: audioPool,
		logger:    logging.NewComponentLogger(logger, "watch"),
		interval:  DefaultInterval,
	}
	for _, opt := range opts {
		opt(watcher)
	}
	return watcher, nil
}

// Run watches until ctx is canceled, which is the clean way out. The
// error return is reserved for setup problems and configuration errors
// surfaced by a conversion, both of which would repeat forever.
func (w *Watcher) Run(ctx context.Context) error {
	dirs := w.libraryDirs()
	if len(dirs) == 0 {
		return services.Wrap(services.ErrConfiguration, "watch", "",
			"no library directories exist; set [library] comic_dir or zip_dir", nil)
	}

	notifier, err := fsnotify.NewWatcher()
	if err != nil {
		return services.Wrap(services.ErrConfiguration, "watch", "", "create filesystem watcher", err)
	}
	defer notifier.Close()

	for _, dir := range dirs {
		if err := notifier.Add(dir); err != nil {
			return services.Wrap(services.ErrConfiguration, "watch", "", "watch "+dir, err)
		}
		w.logger.Info("watching directory", logging.String("path", dir))
	}

	pending := newTracker()
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-notifier.Events:
			if !ok {
				return nil
			}
			w.handleEvent(pending, event)

		case err, ok := <-notifier.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("filesystem watcher error", logging.Error(err))

		case <-ticker.C:
			ready := pending.settle()
			if len(ready) == 0 {
				continue
			}
			if err := w.convert(ctx, ready); err != nil {
				if ctx.Err() != nil {
					return nil
				}
				return err
			}
		}
	}
}

func (w *Watcher) handleEvent(pending *tracker, event fsnotify.Event) {
	if !batch.IsArchivePath(event.Name) {
		return
	}
	switch {
	case event.Has(fsnotify.Remove) || event.Has(fsnotify.Rename):
		pending.forget(event.Name)
	case event.Has(fsnotify.Create) || event.Has(fsnotify.Write):
		if pending.note(event.Name) {
			w.logger.Info("archive appeared; waiting for it to settle",
				logging.String("archive", filepath.Base(event.Name)),
			)
		}
	}
}

// convert runs one batch over the settled archives. Recoverable batch
// failures were already absorbed per archive; only configuration errors
// come back, and those end the watch.
func (w *Watcher) convert(ctx context.Context, archives []string) error {
	result, err := w.converter.Run(ctx, batch.Request{
		Archives:  archives,
		AudioPool: w.audioPool,
	})
	if err != nil {
		if services.Recoverable(err) && ctx.Err() == nil {
			w.logger.Warn("conversion batch failed; continuing to watch", logging.Error(err))
			return nil
		}
		return err
	}
	w.logger.Info("converted settled archives",
		logging.Int("succeeded", result.Succeeded),
		logging.Int("failed", result.Failed),
	)
	return nil
}

func (w *Watcher) libraryDirs() []string {
	var dirs []string
	for _, dir := range []string{w.cfg.Library.ComicDir, w.cfg.Library.ZipDir} {
		if dir == "" {
			continue
		}
		if info, err := os.Stat(dir); err == nil && info.IsDir() {
			dirs = append(dirs, dir)
		} else {
			w.logger.Warn("library directory not watchable", logging.String("path", dir))
		}
	}
	return dirs
}

// tracker holds archives seen by the watcher until their size is the
// same on two consecutive measurements, which is the signal that the
// copy or download writing them has finished.
type tracker struct {
	pending map[string]int64
}

func newTracker() *tracker {
	return &tracker{pending: make(map[string]int64)}
}

// note registers a path, reporting whether it is new to the tracker.
func (t *tracker) note(path string) bool {
	_, known := t.pending[path]
	if !known {
		t.pending[path] = -1
	}
	return !known
}

func (t *tracker) forget(path string) {
	delete(t.pending, path)
}

// settle re-measures every pending archive and returns the ones whose
// size held steady, removing them from the pending set. Vanished files
// are dropped; still-growing and empty files stay pending.
func (t *tracker) settle() []string {
	var ready []string
	for path, lastSize := range t.pending {
		info, err := os.Stat(path)
		if err != nil {
			delete(t.pending, path)
			continue
		}
		size := info.Size()
		if size > 0 && size == lastSize {
			delete(t.pending, path)
			ready = append(ready, path)
			continue
		}
		t.pending[path] = size
	}
	natsort.Strings(ready)
	return ready
}
