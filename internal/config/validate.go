package config

import (
	"errors"
	"fmt"
	"strings"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateLibrary(); err != nil {
		return err
	}
	if err := c.validateVideo(); err != nil {
		return err
	}
	if err := c.validatePipeline(); err != nil {
		return err
	}
	if err := c.validatePaths(); err != nil {
		return err
	}
	if err := c.validateLogging(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validateLibrary() error {
	if strings.TrimSpace(c.Library.ComicDir) == "" {
		return errors.New("library.comic_dir must be set")
	}
	if strings.TrimSpace(c.Library.ZipDir) == "" {
		return errors.New("library.zip_dir must be set")
	}
	if strings.TrimSpace(c.Library.MusicDir) == "" {
		return errors.New("library.music_dir must be set")
	}
	return nil
}

func (c *Config) validateVideo() error {
	if c.Video.FrameRate <= 0 {
		return errors.New("video.frame_rate must be positive")
	}
	if c.Video.FadeIn < 0 {
		return errors.New("video.fade_in must be >= 0")
	}
	if c.Video.FadeOut < 0 {
		return errors.New("video.fade_out must be >= 0")
	}
	if len(c.Video.ImageExtensions) == 0 {
		return errors.New("video.image_extensions must include at least one extension")
	}
	if len(c.Video.AudioExtensions) == 0 {
		return errors.New("video.audio_extensions must include at least one extension")
	}
	if _, err := c.ExtraEncoderArgs(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validatePipeline() error {
	if c.Pipeline.Workers < 0 {
		return errors.New("pipeline.workers must be >= 0")
	}
	if c.Pipeline.MinFreeSpaceGB < 0 {
		return errors.New("pipeline.min_free_space_gb must be >= 0")
	}
	return nil
}

func (c *Config) validatePaths() error {
	if strings.TrimSpace(c.Paths.StagingDir) == "" {
		return errors.New("paths.staging_dir must be set")
	}
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		return errors.New("paths.log_dir must be set")
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level must be one of debug, info, warn, error (got %q)", c.Logging.Level)
	}
	switch c.Logging.Format {
	case "auto", "console", "json":
	default:
		return fmt.Errorf("logging.format must be one of auto, console, json (got %q)", c.Logging.Format)
	}
	return nil
}
