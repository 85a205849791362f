// Package slideshow runs the full conversion for one archive: extract the
// pages into a scratch directory, filter them through the validation
// stages, write the timed manifest, drive the encoder, and place the
// finished video.
package slideshow

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"comicreel/internal/archive"
	"comicreel/internal/config"
	"comicreel/internal/fileutil"
	"comicreel/internal/imagecheck"
	"comicreel/internal/logging"
	"comicreel/internal/manifest"
	"comicreel/internal/services"
	"comicreel/internal/services/ffmpeg"
	"comicreel/internal/textutil"
)

// Request names the inputs for one conversion.
type Request struct {
	ArchivePath string
	AudioPath   string
}

// Result describes a finished conversion.
type Result struct {
	JobID           string
	Archive         string
	Kind            archive.Kind
	AudioPath       string
	OutputPath      string
	PagesExtracted  int
	PagesEncoded    int
	ExpectedSeconds float64
	AudioSeconds    float64
	Elapsed         time.Duration
}

// Job converts archives into slideshow videos, one at a time.
type Job struct {
	cfg      *config.Config
	encoder  ffmpeg.Encoder
	rewriter imagecheck.Rewriter
	logger   *slog.Logger
	bars     bool
}

// Option configures a Job.
type Option func(*Job)

// WithRewriter supplies the reconstruction client. Left unset, the
// reconstruction stage is skipped and pages go straight to verification.
func WithRewriter(r imagecheck.Rewriter) Option {
	return func(j *Job) {
		j.rewriter = r
	}
}

// WithProgressBars toggles terminal progress bars for the validation
// stages and the encode. Callers gate this on stdout being a terminal.
func WithProgressBars(enabled bool) Option {
	return func(j *Job) {
		j.bars = enabled
	}
}

// New builds a conversion job runner.
func New(cfg *config.Config, encoder ffmpeg.Encoder, logger *slog.Logger, opts ...Option) (*Job, error) {
	if cfg == nil {
		return nil, errors.New("config required")
	}
	if encoder == nil {
		return nil, errors.New("encoder required")
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	job := &Job{
		cfg:     cfg,
		encoder: encoder,
		logger:  logging.NewComponentLogger(logger, "slideshow"),
	}
	for _, opt := range opts {
		opt(job)
	}
	return job, nil
}

// OutputPath predicts where the finished video for an archive is first
// written: beside the archive, named after the sanitized archive stem.
func OutputPath(archivePath string) string {
	return filepath.Join(filepath.Dir(archivePath), textutil.OutputStem(archivePath)+".mp4")
}

// FinalPath predicts where an archive's finished video settles once the
// optional relocation step has run: the configured destination directory
// for the archive kind when one is set, otherwise beside the archive.
func FinalPath(cfg *config.Config, archivePath string) string {
	outputPath := OutputPath(archivePath)
	var destDir string
	switch archive.DetectKind(archivePath) {
	case archive.KindComic:
		destDir = strings.TrimSpace(cfg.Output.ComicDir)
	default:
		destDir = strings.TrimSpace(cfg.Output.ZipDir)
	}
	if destDir == "" {
		return outputPath
	}
	return filepath.Join(destDir, filepath.Base(outputPath))
}

// Run converts one archive. Recoverable failures (missing or corrupt
// archive, zero surviving pages, encoder exit) come back as errors the
// batch treats as per-archive skips; configuration problems such as a
// missing encoder binary are the only fatal class. The scratch directory
// is removed on every path out.
func (j *Job) Run(ctx context.Context, req Request) (*Result, error) {
	archivePath := strings.TrimSpace(req.ArchivePath)
	audioPath := strings.TrimSpace(req.AudioPath)
	if archivePath == "" {
		return nil, services.Wrap(services.ErrValidation, "setup", "", "archive path required", nil)
	}
	if audioPath == "" {
		return nil, services.Wrap(services.ErrValidation, "setup", "", "audio path required", nil)
	}

	jobID := uuid.NewString()
	ctx = services.WithJobID(ctx, jobID)
	ctx = services.WithArchive(ctx, filepath.Base(archivePath))
	logger := logging.WithContext(ctx, j.logger)

	started := time.Now()
	kind := archive.DetectKind(archivePath)
	outputPath := OutputPath(archivePath)

	base := filepath.Base(archivePath)
	token := textutil.SanitizeToken(strings.TrimSuffix(base, filepath.Ext(base)))
	scratchDir := filepath.Join(j.cfg.Paths.StagingDir, "job-"+token+"-"+jobID)
	if err := os.MkdirAll(scratchDir, 0o755); err != nil {
		return nil, services.Wrap(services.ErrTransient, "setup", "", "create scratch directory", err)
	}
	defer func() {
		if err := os.RemoveAll(scratchDir); err != nil {
			logger.Warn("failed to remove scratch directory",
				logging.String("path", scratchDir),
				logging.Error(err),
			)
		}
	}()

	logger.Info("conversion started",
		logging.String("audio", filepath.Base(audioPath)),
		logging.String("output", outputPath),
		logging.String("scratch", scratchDir),
	)

	pages, err := archive.Extract(ctx, archivePath, scratchDir, j.cfg.Video.ImageExtensions)
	if err != nil {
		return nil, err
	}
	extracted := len(pages)
	logger.Info("pages extracted", logging.Int("pages", extracted))

	tracker := newStageTracker(j.bars)
	pipeline, err := imagecheck.New(j.encoder, j.rewriter, j.cfg.WorkerCount(), logger,
		imagecheck.WithItemHook(tracker.tick))
	if err != nil {
		return nil, services.Wrap(services.ErrConfiguration, "setup", "", "build validation pipeline", err)
	}

	if j.rewriter != nil {
		tracker.begin("rebuilding pages", len(pages))
		rebuilt, err := pipeline.Reconstruct(ctx, scratchDir, pages)
		tracker.end()
		if err != nil {
			return nil, err
		}
		if dropped := len(pages) - len(rebuilt); dropped > 0 {
			logger.Warn("pages dropped during reconstruction", logging.Int("dropped", dropped))
		}
		pages = rebuilt
	}

	tracker.begin("verifying pages", len(pages))
	verified, err := pipeline.Verify(ctx, scratchDir, pages)
	tracker.end()
	if err != nil {
		return nil, err
	}
	if dropped := len(pages) - len(verified); dropped > 0 {
		logger.Warn("pages dropped during verification", logging.Int("dropped", dropped))
	}
	pages = verified

	perFrame := 1.0 / float64(j.cfg.Video.FrameRate)
	manifestPath, err := manifest.Write(scratchDir, pages, perFrame)
	if err != nil {
		return nil, services.Wrap(services.ErrTransient, "manifest", "", "write input list", err)
	}
	expected := manifest.ExpectedSeconds(len(pages), perFrame)

	extraArgs, err := j.cfg.ExtraEncoderArgs()
	if err != nil {
		return nil, services.Wrap(services.ErrConfiguration, "encode", "", "invalid extra encoder arguments", err)
	}

	logger.Info("encoding started",
		logging.Int("pages", len(pages)),
		logging.Float64("expected_seconds", expected),
		logging.Int("fps", j.cfg.Video.FrameRate),
	)

	encodeRes, err := j.encode(ctx, logger, ffmpeg.EncodeRequest{
		ManifestPath:    manifestPath,
		AudioPath:       audioPath,
		OutputPath:      outputPath,
		FrameRate:       j.cfg.Video.FrameRate,
		ExpectedSeconds: expected,
		FadeInSeconds:   j.cfg.Video.FadeIn,
		FadeOutSeconds:  j.cfg.Video.FadeOut,
		ExtraArgs:       extraArgs,
	})
	if err != nil {
		return nil, err
	}

	result := &Result{
		JobID:           jobID,
		Archive:         archivePath,
		Kind:            kind,
		AudioPath:       audioPath,
		OutputPath:      j.relocate(logger, archivePath, outputPath),
		PagesExtracted:  extracted,
		PagesEncoded:    len(pages),
		ExpectedSeconds: expected,
		AudioSeconds:    encodeRes.AudioSeconds,
		Elapsed:         time.Since(started),
	}

	logger.Info("conversion finished",
		logging.String("output", result.OutputPath),
		logging.Int("pages", result.PagesEncoded),
		logging.Duration("elapsed", result.Elapsed),
	)
	return result, nil
}

func (j *Job) encode(ctx context.Context, logger *slog.Logger, req ffmpeg.EncodeRequest) (ffmpeg.EncodeResult, error) {
	bar := newPercentBar(j.bars, "encoding video")
	sampler := logging.NewProgressSampler(0)

	result, err := j.encoder.Encode(ctx, req, func(update ffmpeg.ProgressUpdate) {
		if bar != nil {
			_ = bar.Set(int(update.Percent))
		}
		if sampler.ShouldLog(update.Percent, "encode") {
			logger.Info("encoding progress",
				logging.Float64("percent", update.Percent),
				logging.Float64("seconds", update.Seconds),
			)
		}
	})
	if bar != nil {
		_ = bar.Finish()
	}
	return result, err
}

// relocate moves the finished video into the configured destination for
// the archive kind. Failure downgrades to a warning and the video stays
// where the encoder wrote it.
func (j *Job) relocate(logger *slog.Logger, archivePath, outputPath string) string {
	target := FinalPath(j.cfg, archivePath)
	if target == outputPath {
		return outputPath
	}
	if err := fileutil.MoveFile(outputPath, target); err != nil {
		logger.Warn("relocation failed; video remains beside the archive",
			logging.String("from", outputPath),
			logging.String("to", target),
			logging.Error(err),
		)
		return outputPath
	}
	logger.Info("video relocated", logging.String("path", target))
	return target
}
