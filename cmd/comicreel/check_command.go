package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"comicreel/internal/deps"
	"comicreel/internal/preflight"
	"comicreel/internal/services/ffmpeg"
	"comicreel/internal/services/magick"
)

func newCheckCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Check external dependencies, directory access, and disk space",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()

			statuses := preflight.CheckSystemDeps(cfg)
			depRows := make([][]string, 0, len(statuses))
			for _, status := range statuses {
				depRows = append(depRows, []string{
					status.Name,
					yesNo(!status.Optional),
					availabilityLabel(cmd.Context(), status),
				})
			}
			fmt.Fprintln(out, renderTable([]string{"Dependency", "Required", "Status"}, depRows, nil))

			checkRows := make([][]string, 0, 8)
			for _, result := range preflight.RunAll(cfg) {
				checkRows = append(checkRows, []string{
					result.Name,
					yesNo(result.Passed),
					result.Detail,
				})
			}
			fmt.Fprintln(out, renderTable([]string{"Check", "OK", "Detail"}, checkRows, nil))

			if missing := deps.MissingRequired(statuses); len(missing) > 0 {
				return fmt.Errorf("missing required dependencies: %s", strings.Join(missing, ", "))
			}
			return nil
		},
	}
}

func availabilityLabel(ctx context.Context, status deps.Status) string {
	if !status.Available {
		return status.Detail
	}
	if version := probeVersion(ctx, status); version != "" {
		return version
	}
	return "available"
}

func probeVersion(ctx context.Context, status deps.Status) string {
	switch status.Name {
	case "FFmpeg":
		client, err := ffmpeg.New(status.Command)
		if err != nil {
			return ""
		}
		version, err := client.Version(ctx)
		if err != nil {
			return ""
		}
		return tidyVersion(version)
	case "ImageMagick":
		client, err := magick.New(status.Command)
		if err != nil {
			return ""
		}
		version, err := client.Version(ctx)
		if err != nil {
			return ""
		}
		return tidyVersion(version)
	}
	return ""
}

// tidyVersion trims the license and URL chatter version banners carry.
func tidyVersion(line string) string {
	for _, marker := range []string{" Copyright", " https:", " http:"} {
		if before, _, found := strings.Cut(line, marker); found {
			line = before
		}
	}
	return strings.TrimSpace(line)
}
