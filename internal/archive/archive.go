// Package archive extracts page images from zip-compatible comic archives
// into a job's scratch directory.
package archive

import (
	"archive/zip"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"comicreel/internal/natsort"
	"comicreel/internal/services"
)

// Kind classifies an archive by its extension. The kind only selects the
// relocation target for the finished video.
type Kind string

const (
	KindComic Kind = "comic"
	KindZip   Kind = "zip"
)

// DetectKind returns KindComic for .cbz archives and KindZip for anything
// else the zip reader can open.
func DetectKind(path string) Kind {
	if strings.EqualFold(filepath.Ext(path), ".cbz") {
		return KindComic
	}
	return KindZip
}

// ErrNoImages reports an archive with zero entries matching the configured
// image extensions.
var ErrNoImages = errors.New("no matching image entries")

// ErrCorrupt reports a container the zip reader refuses to open.
var ErrCorrupt = errors.New("invalid or corrupted archive")

// Extract materializes the image entries of archivePath into destDir and
// returns their paths relative to destDir in natural reading order.
//
// Entry selection is a case-insensitive suffix match against extensions.
// The returned list is re-derived by walking destDir after extraction
// rather than trusting the archive listing, which tolerates entry names
// the filesystem normalizes.
func Extract(ctx context.Context, archivePath, destDir string, extensions []string) ([]string, error) {
	if _, err := os.Stat(archivePath); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, services.Wrap(services.ErrNotFound, "extract", "open", "archive not found", err)
		}
		return nil, services.Wrap(services.ErrTransient, "extract", "open", "stat archive", err)
	}

	reader, err := zip.OpenReader(archivePath)
	if err != nil {
		return nil, services.Wrap(services.ErrValidation, "extract", "open", "", fmt.Errorf("%w: %w", ErrCorrupt, err))
	}
	defer reader.Close()

	var members []*zip.File
	for _, entry := range reader.File {
		if entry.FileInfo().IsDir() {
			continue
		}
		if matchesExtension(entry.Name, extensions) {
			members = append(members, entry)
		}
	}
	if len(members) == 0 {
		return nil, services.Wrap(services.ErrValidation, "extract", "scan", "archive has no usable pages", ErrNoImages)
	}

	for _, entry := range members {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if err := extractEntry(entry, destDir); err != nil {
			return nil, services.Wrap(services.ErrTransient, "extract", "entry", fmt.Sprintf("extract %s", entry.Name), err)
		}
	}

	images, err := scanImages(destDir, extensions)
	if err != nil {
		return nil, services.Wrap(services.ErrTransient, "extract", "scan", "walk extracted tree", err)
	}
	if len(images) == 0 {
		return nil, services.Wrap(services.ErrValidation, "extract", "scan", "no images found after extraction", ErrNoImages)
	}

	natsort.Strings(images)
	return images, nil
}

func extractEntry(entry *zip.File, destDir string) error {
	destPath := filepath.Join(destDir, filepath.FromSlash(entry.Name))

	// Reject entries that would escape the scratch directory.
	rel, err := filepath.Rel(destDir, destPath)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return fmt.Errorf("entry path escapes destination: %s", entry.Name)
	}

	if err := os.MkdirAll(filepath.Dir(destPath), 0o755); err != nil {
		return fmt.Errorf("create entry directory: %w", err)
	}

	rc, err := entry.Open()
	if err != nil {
		return fmt.Errorf("open entry: %w", err)
	}
	defer rc.Close()

	out, err := os.OpenFile(destPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return fmt.Errorf("create entry file: %w", err)
	}
	if _, err := io.Copy(out, rc); err != nil {
		out.Close()
		return fmt.Errorf("write entry file: %w", err)
	}
	return out.Close()
}

// scanImages walks root and returns relative paths of files matching the
// extension allow-list.
func scanImages(root string, extensions []string) ([]string, error) {
	var images []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		if !matchesExtension(d.Name(), extensions) {
			return nil
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		images = append(images, rel)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return images, nil
}

func matchesExtension(name string, extensions []string) bool {
	lowered := strings.ToLower(name)
	for _, ext := range extensions {
		if strings.HasSuffix(lowered, ext) {
			return true
		}
	}
	return false
}
