package main

import (
	"fmt"
	"log/slog"
	"strings"

	"comicreel/internal/batch"
	"comicreel/internal/config"
	"comicreel/internal/deps"
	"comicreel/internal/history"
	"comicreel/internal/logging"
	"comicreel/internal/preflight"
	"comicreel/internal/services"
	"comicreel/internal/services/ffmpeg"
	"comicreel/internal/services/magick"
	"comicreel/internal/slideshow"
)

type pipeline struct {
	cfg    *config.Config
	runner *batch.Runner
	store  *history.Store
}

func (p *pipeline) Close() {
	if p.store != nil {
		p.store.Close()
	}
}

// buildPipeline assembles the conversion stack behind one preflight. The
// external binaries are probed exactly once here, never per archive: a
// missing ffmpeg fails the run up front and a missing ImageMagick only
// disables the reconstruction stage.
func buildPipeline(cmdCtx *commandContext, logger *slog.Logger, noReconstruct, bars bool) (*pipeline, error) {
	cfg, err := cmdCtx.ensureConfig()
	if err != nil {
		return nil, err
	}

	statuses := preflight.CheckSystemDeps(cfg)
	if missing := deps.MissingRequired(statuses); len(missing) > 0 {
		return nil, services.Wrap(services.ErrConfiguration, "setup", "",
			fmt.Sprintf("missing required dependencies: %s (run `comicreel check`)", strings.Join(missing, ", ")), nil)
	}

	encoder, err := ffmpeg.New(cfg.FFmpegBinary())
	if err != nil {
		return nil, err
	}

	jobOpts := []slideshow.Option{slideshow.WithProgressBars(bars)}
	switch {
	case noReconstruct || !cfg.Pipeline.Reconstruction:
		logger.Info("page reconstruction disabled")
	default:
		if status, ok := deps.Find(statuses, "ImageMagick"); ok && status.Available {
			rewriter, err := magick.New(status.Command)
			if err != nil {
				return nil, err
			}
			jobOpts = append(jobOpts, slideshow.WithRewriter(rewriter))
		} else {
			logger.Warn("page reconstruction disabled; ImageMagick not found")
		}
	}

	job, err := slideshow.New(cfg, encoder, logger, jobOpts...)
	if err != nil {
		return nil, err
	}

	var runnerOpts []batch.Option
	var store *history.Store
	if dbPath := strings.TrimSpace(cfg.Paths.HistoryDB); dbPath != "" {
		store, err = history.Open(dbPath)
		if err != nil {
			logger.Warn("history database unavailable; outcomes will not be recorded", logging.Error(err))
			store = nil
		} else {
			runnerOpts = append(runnerOpts, batch.WithHistory(store))
		}
	}

	runner, err := batch.New(cfg, job, logger, runnerOpts...)
	if err != nil {
		if store != nil {
			store.Close()
		}
		return nil, err
	}
	return &pipeline{cfg: cfg, runner: runner, store: store}, nil
}
