// Package batch drives conversions sequentially over a selected set of
// archives. Each archive gets its own audio draw from the pool, failures
// stay contained to the archive that caused them, and every outcome lands
// in the history store when one is attached. Only configuration errors
// abort the remaining work, since those would fail every later job the
// same way.
package batch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"

	"comicreel/internal/archive"
	"comicreel/internal/config"
	"comicreel/internal/history"
	"comicreel/internal/logging"
	"comicreel/internal/preflight"
	"comicreel/internal/services"
	"comicreel/internal/slideshow"
	"comicreel/internal/textutil"
)

// LockFileName is the lock file claimed under the staging directory so
// two runs never share scratch space.
const LockFileName = "comicreel.lock"

// AcquireLock claims the single-run lock under dir. The returned release
// function must be called when the run ends. A held lock yields an error
// naming the conflict rather than blocking.
func AcquireLock(dir string) (func(), error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create staging directory: %w", err)
	}
	lock := flock.New(filepath.Join(dir, LockFileName))
	ok, err := lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("acquire run lock: %w", err)
	}
	if !ok {
		return nil, errors.New("another comicreel run is already active")
	}
	return func() { _ = lock.Unlock() }, nil
}

// JobRunner abstracts the per-archive conversion.
type JobRunner interface {
	Run(ctx context.Context, req slideshow.Request) (*slideshow.Result, error)
}

// HistoryStore receives one row per finished or failed conversion.
type HistoryStore interface {
	Add(ctx context.Context, rec history.Record) (int64, error)
}

// Request names the archives to convert and the audio pool to draw from.
type Request struct {
	Archives  []string
	AudioPool []string
}

// JobRecord captures one archive's outcome for the run summary.
type JobRecord struct {
	Archive string
	Audio   string
	Output  string
	Pages   int
	Elapsed time.Duration
	Err     error
}

// Result accumulates the batch outcome.
type Result struct {
	Records   []JobRecord
	Succeeded int
	Failed    int
}

// FailedArchives lists the archives that did not produce a video, in the
// order they were attempted.
func (r *Result) FailedArchives() []string {
	var failed []string
	for _, rec := range r.Records {
		if rec.Err != nil {
			failed = append(failed, rec.Archive)
		}
	}
	return failed
}

// Runner converts archives one at a time. Callers serialize whole runs
// with AcquireLock; the runner itself assumes the lock is held.
type Runner struct {
	cfg    *config.Config
	job    JobRunner
	store  HistoryStore
	logger *slog.Logger
	pick   func(n int) int
}

// Option adjusts runner construction.
type Option func(*Runner)

// WithHistory attaches a store that records every conversion outcome.
func WithHistory(store HistoryStore) Option {
	return func(r *Runner) { r.store = store }
}

// New builds a Runner around a ready conversion job.
func New(cfg *config.Config, job JobRunner, logger *slog.Logger, opts ...Option) (*Runner, error) {
	if cfg == nil {
		return nil, errors.New("config is required")
	}
	if job == nil {
		return nil, errors.New("job runner is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	runner := &Runner{
		cfg:    cfg,
		job:    job,
		logger: logging.NewComponentLogger(logger, "batch"),
		pick:   rand.IntN,
	}
	for _, opt := range opts {
		opt(runner)
	}
	return runner, nil
}

// Run converts every archive in the request. Per-archive failures are
// recorded and skipped; the error return is non-nil only when the batch
// could not proceed at all, was canceled, or hit a configuration error.
func (r *Runner) Run(ctx context.Context, req Request) (*Result, error) {
	if err := r.validate(req); err != nil {
		return nil, err
	}
	if err := r.checkFreeSpace(); err != nil {
		return nil, err
	}

	r.logger.Info("batch started",
		logging.Int("archives", len(req.Archives)),
		logging.Int("audio_pool", len(req.AudioPool)),
	)

	result := &Result{}
	for i, archivePath := range req.Archives {
		if err := ctx.Err(); err != nil {
			return result, err
		}

		audioPath := r.pickAudio(req.AudioPool)
		r.logger.Info("converting archive",
			logging.Int("index", i+1),
			logging.Int("total", len(req.Archives)),
			logging.String("archive", filepath.Base(archivePath)),
			logging.String("audio", filepath.Base(audioPath)),
		)

		started := time.Now()
		jobResult, err := r.job.Run(ctx, slideshow.Request{
			ArchivePath: archivePath,
			AudioPath:   audioPath,
		})

		record := JobRecord{
			Archive: archivePath,
			Audio:   audioPath,
			Elapsed: time.Since(started),
			Err:     err,
		}
		if jobResult != nil {
			record.Output = jobResult.OutputPath
			record.Pages = jobResult.PagesEncoded
			if jobResult.Elapsed > 0 {
				record.Elapsed = jobResult.Elapsed
			}
		}
		result.Records = append(result.Records, record)

		if err != nil {
			result.Failed++
			r.recordHistory(ctx, started, record, jobResult)
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return result, err
			}
			if !services.Recoverable(err) {
				r.logger.Error("conversion failed; aborting remaining archives",
					logging.String("archive", filepath.Base(archivePath)),
					logging.Error(err),
				)
				return result, err
			}
			r.logger.Warn("conversion failed; continuing with next archive",
				logging.String("archive", filepath.Base(archivePath)),
				logging.Error(err),
			)
			continue
		}

		result.Succeeded++
		r.recordHistory(ctx, started, record, jobResult)
	}

	r.logger.Info("batch finished",
		logging.Int("total", len(result.Records)),
		logging.Int("succeeded", result.Succeeded),
		logging.Int("failed", result.Failed),
		logging.String("outcome", textutil.Ternary(result.Failed == 0, "clean", "with failures")),
	)
	for _, failed := range result.FailedArchives() {
		r.logger.Warn("archive was not converted", logging.String("archive", filepath.Base(failed)))
	}
	return result, nil
}

// PlannedJob predicts one conversion without running it.
type PlannedJob struct {
	Archive string
	Audio   string
	Output  string
}

// Plan resolves what Run would do: for each archive, the audio draw and
// the final video location. Nothing is written.
func (r *Runner) Plan(req Request) ([]PlannedJob, error) {
	if err := r.validate(req); err != nil {
		return nil, err
	}
	planned := make([]PlannedJob, 0, len(req.Archives))
	for _, archivePath := range req.Archives {
		planned = append(planned, PlannedJob{
			Archive: archivePath,
			Audio:   r.pickAudio(req.AudioPool),
			Output:  slideshow.FinalPath(r.cfg, archivePath),
		})
	}
	return planned, nil
}

func (r *Runner) validate(req Request) error {
	if len(req.Archives) == 0 {
		return services.Wrap(services.ErrValidation, "batch", "", "no archives to convert", nil)
	}
	if len(req.AudioPool) == 0 {
		return services.Wrap(services.ErrValidation, "batch", "", "no audio tracks available", nil)
	}
	return nil
}

// pickAudio draws a track for one archive. A pool of one is deterministic;
// anything larger draws uniformly with replacement, so consecutive
// archives may share a track.
func (r *Runner) pickAudio(pool []string) string {
	if len(pool) == 1 {
		return pool[0]
	}
	return pool[r.pick(len(pool))]
}

// checkFreeSpace refuses the batch when the staging volume is below the
// configured floor. A probe failure only warns, since encoding may still
// succeed.
func (r *Runner) checkFreeSpace() error {
	floor := r.cfg.Pipeline.MinFreeSpaceGB
	if floor <= 0 {
		return nil
	}
	free, err := preflight.FreeSpace(r.cfg.Paths.StagingDir)
	if err != nil {
		r.logger.Warn("free space probe failed",
			logging.String("path", r.cfg.Paths.StagingDir),
			logging.Error(err),
		)
		return nil
	}
	if free < uint64(floor)<<30 {
		return services.Wrap(services.ErrConfiguration, "batch", "preflight",
			fmt.Sprintf("staging volume has %.1f GiB free, below the %d GiB floor",
				float64(free)/(1<<30), floor), nil)
	}
	return nil
}

func (r *Runner) recordHistory(ctx context.Context, started time.Time, rec JobRecord, jobResult *slideshow.Result) {
	if r.store == nil {
		return
	}
	row := history.Record{
		ArchivePath: rec.Archive,
		ArchiveKind: string(archive.DetectKind(rec.Archive)),
		Title:       textutil.DisplayTitle(rec.Archive),
		AudioPath:   rec.Audio,
		Status:      history.StatusSucceeded,
		StartedAt:   started,
		FinishedAt:  time.Now(),
	}
	if jobResult != nil {
		row.JobID = jobResult.JobID
		row.OutputPath = jobResult.OutputPath
		row.PagesExtracted = jobResult.PagesExtracted
		row.PagesEncoded = jobResult.PagesEncoded
		row.ExpectedSeconds = jobResult.ExpectedSeconds
	}
	if rec.Err != nil {
		row.Status = history.StatusFailed
		row.ErrorMessage = rec.Err.Error()
	}
	// Outcomes are still worth recording when the run is shutting down.
	if _, err := r.store.Add(context.WithoutCancel(ctx), row); err != nil {
		r.logger.Warn("failed to record conversion history", logging.Error(err))
	}
}
