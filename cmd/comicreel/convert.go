package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"comicreel/internal/batch"
	"comicreel/internal/config"
	"comicreel/internal/services"
)

type convertOptions struct {
	audio         string
	dryRun        bool
	noReconstruct bool
}

func addConvertFlags(cmd *cobra.Command, opts *convertOptions) {
	cmd.Flags().StringVar(&opts.audio, "audio", "", "Audio track or directory for the music pool (default: [library] music_dir)")
	cmd.Flags().BoolVar(&opts.dryRun, "dry-run", false, "Plan the conversions and print them without encoding")
	cmd.Flags().BoolVar(&opts.noReconstruct, "no-reconstruct", false, "Skip the ImageMagick page reconstruction stage")
}

func newConvertCommand(ctx *commandContext) *cobra.Command {
	opts := &convertOptions{}
	cmd := &cobra.Command{
		Use:   "convert [archive|directory]...",
		Short: "Convert archives into slideshow videos",
		Long: `Convert the given archives into slideshow videos. Directory arguments
are scanned for .cbz/.zip files; with no arguments the configured comic
and zip library directories are scanned instead.`,
		Args: cobra.ArbitraryArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runConvert(cmd.Context(), ctx, args, opts, cmd.OutOrStdout())
		},
	}
	addConvertFlags(cmd, opts)
	return cmd
}

func runConvert(parent context.Context, cmdCtx *commandContext, args []string, opts *convertOptions, out io.Writer) error {
	cfg, err := cmdCtx.ensureConfig()
	if err != nil {
		return err
	}
	logger, err := cmdCtx.ensureLogger()
	if err != nil {
		return err
	}

	archives, err := selectArchives(cfg, args)
	if err != nil {
		return err
	}
	if len(archives) == 0 {
		return services.Wrap(services.ErrValidation, "select", "",
			"no archives found; pass paths or populate the library directories", nil)
	}
	pool, err := selectAudio(cfg, opts.audio)
	if err != nil {
		return err
	}
	req := batch.Request{Archives: archives, AudioPool: pool}

	bars := progressBarsEnabled(cfg, cmdCtx.logFormatFlag) && !opts.dryRun
	pipe, err := buildPipeline(cmdCtx, logger, opts.noReconstruct, bars)
	if err != nil {
		return err
	}
	defer pipe.Close()

	if opts.dryRun {
		planned, err := pipe.runner.Plan(req)
		if err != nil {
			return err
		}
		renderPlan(out, planned)
		return nil
	}

	release, err := batch.AcquireLock(cfg.Paths.StagingDir)
	if err != nil {
		return err
	}
	defer release()

	signalCtx, cancel := signalContext(parent)
	defer cancel()

	result, err := pipe.runner.Run(signalCtx, req)
	if result != nil && len(result.Records) > 0 {
		renderSummary(out, result)
	}
	if err != nil {
		return err
	}
	if result.Failed > 0 {
		return fmt.Errorf("%d of %d conversions failed", result.Failed, len(result.Records))
	}
	return nil
}

// selectArchives resolves the run's archive list: explicit arguments when
// given, otherwise the library directories that exist.
func selectArchives(cfg *config.Config, args []string) ([]string, error) {
	if len(args) > 0 {
		return batch.FindArchives(args)
	}
	var roots []string
	for _, dir := range []string{cfg.Library.ComicDir, cfg.Library.ZipDir} {
		if strings.TrimSpace(dir) == "" {
			continue
		}
		if info, err := os.Stat(dir); err == nil && info.IsDir() {
			roots = append(roots, dir)
		}
	}
	return batch.FindArchives(roots)
}

func selectAudio(cfg *config.Config, flag string) ([]string, error) {
	source := strings.TrimSpace(flag)
	if source == "" {
		source = strings.TrimSpace(cfg.Library.MusicDir)
	}
	if source == "" {
		return nil, services.Wrap(services.ErrValidation, "select", "",
			"no audio source; pass --audio or set [library] music_dir", nil)
	}
	return batch.FindAudio(source, cfg.Video.AudioExtensions)
}

func renderPlan(out io.Writer, planned []batch.PlannedJob) {
	rows := make([][]string, 0, len(planned))
	for _, job := range planned {
		rows = append(rows, []string{
			filepath.Base(job.Archive),
			filepath.Base(job.Audio),
			job.Output,
		})
	}
	fmt.Fprintln(out, renderTable([]string{"Archive", "Audio", "Output"}, rows, nil))
	fmt.Fprintf(out, "%d conversions planned (dry run, nothing encoded)\n", len(planned))
}

func renderSummary(out io.Writer, result *batch.Result) {
	rows := make([][]string, 0, len(result.Records))
	for _, rec := range result.Records {
		status := "ok"
		detail := rec.Output
		if rec.Err != nil {
			status = "failed"
			detail = rec.Err.Error()
		}
		rows = append(rows, []string{
			filepath.Base(rec.Archive),
			status,
			strconv.Itoa(rec.Pages),
			rec.Elapsed.Round(100 * time.Millisecond).String(),
			detail,
		})
	}
	aligns := []columnAlignment{alignLeft, alignLeft, alignRight, alignRight, alignLeft}
	fmt.Fprintln(out, renderTable([]string{"Archive", "Status", "Pages", "Time", "Result"}, rows, aligns))
	fmt.Fprintf(out, "%d succeeded, %d failed\n", result.Succeeded, result.Failed)
}
