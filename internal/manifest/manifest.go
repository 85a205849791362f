// Package manifest renders the concat-demuxer input list that tells the
// encoder how long to display each page.
package manifest

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// FileName is the manifest's name inside a job's scratch directory.
const FileName = "ffmpeg_input.txt"

// Write renders the input list for images (paths relative to scratchDir)
// and returns the manifest path. Each image yields a quoted absolute path
// line and a duration line; the final image's path line is then repeated
// once without a duration, because the concat demuxer otherwise holds the
// last frame for zero seconds.
func Write(scratchDir string, images []string, perFrameSeconds float64) (string, error) {
	if len(images) == 0 {
		return "", errors.New("manifest requires at least one image")
	}
	if perFrameSeconds <= 0 {
		return "", fmt.Errorf("per-frame duration must be positive, got %v", perFrameSeconds)
	}

	var b strings.Builder
	for _, rel := range images {
		writeFileLine(&b, scratchDir, rel)
		fmt.Fprintf(&b, "duration %.4f\n", perFrameSeconds)
	}
	writeFileLine(&b, scratchDir, images[len(images)-1])

	path := filepath.Join(scratchDir, FileName)
	if err := os.WriteFile(path, []byte(b.String()), 0o644); err != nil {
		return "", fmt.Errorf("write manifest: %w", err)
	}
	return path, nil
}

// ExpectedSeconds returns the slideshow duration implied by a manifest for
// imageCount pages: one slot per page plus one for the repeated final
// line. The encoder's audio fades and progress total both derive from this
// value, so they always agree.
func ExpectedSeconds(imageCount int, perFrameSeconds float64) float64 {
	if imageCount <= 0 {
		return 0
	}
	return float64(imageCount+1) * perFrameSeconds
}

func writeFileLine(b *strings.Builder, scratchDir, rel string) {
	full := filepath.ToSlash(filepath.Join(scratchDir, rel))
	escaped := strings.ReplaceAll(full, "'", `'\''`)
	fmt.Fprintf(b, "file '%s'\n", escaped)
}
