package batch

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"comicreel/internal/natsort"
	"comicreel/internal/services"
)

// archiveExtensions lists the container suffixes the selector accepts.
var archiveExtensions = []string{".cbz", ".zip"}

// IsArchivePath reports whether name carries a supported archive suffix.
func IsArchivePath(name string) bool {
	return hasSuffix(name, archiveExtensions)
}

// FindArchives expands command-line arguments into the ordered archive
// list for a run. File arguments must exist and carry an archive suffix;
// directory arguments are scanned one level deep, each scan in natural
// order. Argument order is preserved and duplicates collapse onto their
// first appearance.
func FindArchives(args []string) ([]string, error) {
	var (
		selected []string
		seen     = map[string]bool{}
	)
	add := func(path string) {
		if !seen[path] {
			seen[path] = true
			selected = append(selected, path)
		}
	}

	for _, arg := range args {
		path, err := filepath.Abs(strings.TrimSpace(arg))
		if err != nil {
			return nil, services.Wrap(services.ErrValidation, "select", "", fmt.Sprintf("resolve path %q", arg), err)
		}
		info, err := os.Stat(path)
		if err != nil {
			if os.IsNotExist(err) {
				return nil, services.Wrap(services.ErrNotFound, "select", "", fmt.Sprintf("archive path %q does not exist", arg), nil)
			}
			return nil, services.Wrap(services.ErrTransient, "select", "", fmt.Sprintf("stat %q", arg), err)
		}
		if !info.IsDir() {
			if !hasSuffix(path, archiveExtensions) {
				return nil, services.Wrap(services.ErrValidation, "select", "",
					fmt.Sprintf("%q is not a supported archive (want %s)", arg, strings.Join(archiveExtensions, " or ")), nil)
			}
			add(path)
			continue
		}
		found, err := scanDir(path)
		if err != nil {
			return nil, err
		}
		for _, match := range found {
			add(match)
		}
	}
	return selected, nil
}

// scanDir lists the archives directly inside dir in natural order.
// Subdirectories are not descended into.
func scanDir(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, services.Wrap(services.ErrTransient, "select", "", fmt.Sprintf("read directory %q", dir), err)
	}
	var found []string
	for _, entry := range entries {
		if entry.IsDir() || !hasSuffix(entry.Name(), archiveExtensions) {
			continue
		}
		found = append(found, filepath.Join(dir, entry.Name()))
	}
	natsort.Strings(found)
	return found, nil
}

// FindAudio builds the audio pool for a run. A file argument names a pool
// of one; a directory argument is walked recursively for tracks matching
// the configured extensions, collected in natural order.
func FindAudio(path string, extensions []string) ([]string, error) {
	path, err := filepath.Abs(strings.TrimSpace(path))
	if err != nil {
		return nil, services.Wrap(services.ErrValidation, "select", "", "resolve audio path", err)
	}
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, services.Wrap(services.ErrNotFound, "select", "", fmt.Sprintf("audio path %q does not exist", path), nil)
		}
		return nil, services.Wrap(services.ErrTransient, "select", "", fmt.Sprintf("stat %q", path), err)
	}
	if !info.IsDir() {
		return []string{path}, nil
	}

	var pool []string
	walkErr := filepath.WalkDir(path, func(entry string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && hasSuffix(entry, extensions) {
			pool = append(pool, entry)
		}
		return nil
	})
	if walkErr != nil {
		return nil, services.Wrap(services.ErrTransient, "select", "", fmt.Sprintf("scan audio directory %q", path), walkErr)
	}
	natsort.Strings(pool)
	return pool, nil
}

func hasSuffix(name string, extensions []string) bool {
	lowered := strings.ToLower(name)
	for _, ext := range extensions {
		if strings.HasSuffix(lowered, strings.ToLower(ext)) {
			return true
		}
	}
	return false
}
