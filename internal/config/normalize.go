package config

import (
	"fmt"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizeLibrary(); err != nil {
		return err
	}
	if err := c.normalizeOutput(); err != nil {
		return err
	}
	c.normalizeVideo()
	c.normalizePipeline()
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizeLibrary() error {
	var err error
	if c.Library.ComicDir, err = expandPath(c.Library.ComicDir); err != nil {
		return fmt.Errorf("library.comic_dir: %w", err)
	}
	if c.Library.ZipDir, err = expandPath(c.Library.ZipDir); err != nil {
		return fmt.Errorf("library.zip_dir: %w", err)
	}
	if c.Library.MusicDir, err = expandPath(c.Library.MusicDir); err != nil {
		return fmt.Errorf("library.music_dir: %w", err)
	}
	return nil
}

// normalizeOutput expands only non-empty entries: an empty output directory
// means the finished video stays beside its archive.
func (c *Config) normalizeOutput() error {
	var err error
	if strings.TrimSpace(c.Output.ComicDir) != "" {
		if c.Output.ComicDir, err = expandPath(c.Output.ComicDir); err != nil {
			return fmt.Errorf("output.comic_dir: %w", err)
		}
	} else {
		c.Output.ComicDir = ""
	}
	if strings.TrimSpace(c.Output.ZipDir) != "" {
		if c.Output.ZipDir, err = expandPath(c.Output.ZipDir); err != nil {
			return fmt.Errorf("output.zip_dir: %w", err)
		}
	} else {
		c.Output.ZipDir = ""
	}
	return nil
}

func (c *Config) normalizeVideo() {
	c.Video.ImageExtensions = normalizeExtensions(c.Video.ImageExtensions, defaultImageExtensions())
	c.Video.AudioExtensions = normalizeExtensions(c.Video.AudioExtensions, defaultAudioExtensions())
	c.Video.ExtraEncoderArgs = strings.TrimSpace(c.Video.ExtraEncoderArgs)
}

func (c *Config) normalizePipeline() {
	if c.Pipeline.Workers < 0 {
		c.Pipeline.Workers = 0
	}
	if c.Pipeline.MinFreeSpaceGB < 0 {
		c.Pipeline.MinFreeSpaceGB = 0
	}
}

func (c *Config) normalizePaths() error {
	var err error
	if c.Paths.StagingDir, err = expandPath(c.Paths.StagingDir); err != nil {
		return fmt.Errorf("paths.staging_dir: %w", err)
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	// An empty history_db disables the history store entirely.
	if db := strings.TrimSpace(c.Paths.HistoryDB); db == "" {
		c.Paths.HistoryDB = ""
	} else if c.Paths.HistoryDB, err = expandPath(db); err != nil {
		return fmt.Errorf("paths.history_db: %w", err)
	}
	return nil
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	switch c.Logging.Format {
	case "", "auto":
		c.Logging.Format = "auto"
	case "console", "json":
	default:
		c.Logging.Format = "auto"
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}

// normalizeExtensions lowercases entries, guarantees a leading dot, and
// removes duplicates while preserving order. An empty result falls back to
// the repository defaults.
func normalizeExtensions(values []string, fallback []string) []string {
	cleaned := make([]string, 0, len(values))
	seen := make(map[string]struct{}, len(values))
	for _, value := range values {
		ext := strings.ToLower(strings.TrimSpace(value))
		if ext == "" {
			continue
		}
		if !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		if _, ok := seen[ext]; ok {
			continue
		}
		seen[ext] = struct{}{}
		cleaned = append(cleaned, ext)
	}
	if len(cleaned) == 0 {
		return fallback
	}
	return cleaned
}
