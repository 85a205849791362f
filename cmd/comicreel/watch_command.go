package main

import (
	"time"

	"github.com/spf13/cobra"

	"comicreel/internal/batch"
	"comicreel/internal/watch"
)

func newWatchCommand(ctx *commandContext) *cobra.Command {
	var audioFlag string
	var noReconstruct bool
	var interval time.Duration

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Watch the library directories and convert archives as they arrive",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			logger, err := ctx.ensureLogger()
			if err != nil {
				return err
			}
			pool, err := selectAudio(cfg, audioFlag)
			if err != nil {
				return err
			}

			bars := progressBarsEnabled(cfg, ctx.logFormatFlag)
			pipe, err := buildPipeline(ctx, logger, noReconstruct, bars)
			if err != nil {
				return err
			}
			defer pipe.Close()

			watcher, err := watch.New(cfg, pipe.runner, pool, logger, watch.WithInterval(interval))
			if err != nil {
				return err
			}

			release, err := batch.AcquireLock(cfg.Paths.StagingDir)
			if err != nil {
				return err
			}
			defer release()

			signalCtx, cancel := signalContext(cmd.Context())
			defer cancel()
			return watcher.Run(signalCtx)
		},
	}

	cmd.Flags().StringVar(&audioFlag, "audio", "", "Audio track or directory for the music pool (default: [library] music_dir)")
	cmd.Flags().BoolVar(&noReconstruct, "no-reconstruct", false, "Skip the ImageMagick page reconstruction stage")
	cmd.Flags().DurationVar(&interval, "interval", watch.DefaultInterval, "How often arriving archives are re-checked for a stable size")
	return cmd
}
