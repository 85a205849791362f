// Package imagecheck filters a job's extracted pages through the
// reconstruction and verification stages before encoding. Both stages fan
// the page list out over a bounded worker pool and fan survivors back in;
// a page that fails a stage is dropped with a diagnostic, never retried.
package imagecheck

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"sync/atomic"

	"comicreel/internal/logging"
	"comicreel/internal/services"
)

// Stage names used in log fields and error details.
const (
	StageReconstruct = "reconstruct"
	StageVerify      = "verify"
)

// Rewriter resaves an image in place with its metadata stripped. The
// ImageMagick client satisfies it.
type Rewriter interface {
	Rewrite(ctx context.Context, imagePath string) error
}

// Verifier decodes an image and discards the result. The FFmpeg client
// satisfies it.
type Verifier interface {
	VerifyImage(ctx context.Context, imagePath string) error
}

// Pipeline runs the page-filtering stages for one job.
type Pipeline struct {
	verifier Verifier
	rewriter Rewriter
	workers  int
	logger   *slog.Logger
	onItem   func(stage string, completed, total int)
}

// Option configures a pipeline.
type Option func(*Pipeline)

// WithItemHook registers a callback invoked once per page as it finishes a
// stage, kept or dropped. Hooks run from worker goroutines and must be safe
// for concurrent use.
func WithItemHook(fn func(stage string, completed, total int)) Option {
	return func(p *Pipeline) {
		p.onItem = fn
	}
}

// New builds a pipeline. A nil rewriter disables the reconstruction stage
// entirely; verification cannot be disabled, so the verifier is required.
func New(verifier Verifier, rewriter Rewriter, workers int, logger *slog.Logger, opts ...Option) (*Pipeline, error) {
	if verifier == nil {
		return nil, errors.New("verifier required")
	}
	if workers < 1 {
		workers = 1
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	pipeline := &Pipeline{
		verifier: verifier,
		rewriter: rewriter,
		workers:  workers,
		logger:   logger,
	}
	for _, opt := range opts {
		opt(pipeline)
	}
	return pipeline, nil
}

// Reconstruct rewrites every page in place through the image transcoder and
// returns the pages that survived, in input order. Without a rewriter the
// stage passes the list through untouched.
func (p *Pipeline) Reconstruct(ctx context.Context, scratchDir string, pages []string) ([]string, error) {
	if p.rewriter == nil {
		p.logger.Debug("reconstruction stage disabled; pages pass through",
			logging.String(logging.FieldStage, StageReconstruct))
		return pages, nil
	}
	return p.runStage(ctx, StageReconstruct, scratchDir, pages, p.rewriter.Rewrite)
}

// Verify decodes every surviving page through the encoder and returns the
// pages it accepted, in input order.
func (p *Pipeline) Verify(ctx context.Context, scratchDir string, pages []string) ([]string, error) {
	return p.runStage(ctx, StageVerify, scratchDir, pages, p.verifier.VerifyImage)
}

// runStage dispatches pages to a bounded worker pool and collects survivors
// by input index, so completion order never changes page order. Per-page
// failures are absorbed here; the stage itself fails only when no page
// survives.
func (p *Pipeline) runStage(ctx context.Context, stage, scratchDir string, pages []string, check func(context.Context, string) error) ([]string, error) {
	if len(pages) == 0 {
		return nil, services.Wrap(services.ErrValidation, stage, "", "no pages to check", nil)
	}

	kept := make([]bool, len(pages))
	jobs := make(chan int)
	workers := min(p.workers, len(pages))

	var completed atomic.Int64
	var wg sync.WaitGroup
	wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer wg.Done()
			for idx := range jobs {
				page := pages[idx]
				if err := check(ctx, filepath.Join(scratchDir, page)); err != nil {
					p.logger.Warn("page check failed; dropping page",
						logging.String(logging.FieldStage, stage),
						logging.String("page", page),
						logging.Error(err),
					)
				} else {
					kept[idx] = true
				}
				if p.onItem != nil {
					p.onItem(stage, int(completed.Add(1)), len(pages))
				}
			}
		}()
	}

dispatch:
	for idx := range pages {
		select {
		case <-ctx.Done():
			break dispatch
		case jobs <- idx:
		}
	}
	close(jobs)
	wg.Wait()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	survivors := make([]string, 0, len(pages))
	for idx, ok := range kept {
		if ok {
			survivors = append(survivors, pages[idx])
		}
	}
	if len(survivors) == 0 {
		return nil, services.Wrap(services.ErrValidation, stage, "",
			fmt.Sprintf("all %d pages failed", len(pages)), nil)
	}
	return survivors, nil
}
