package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/google/shlex"
	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Library contains the directories browsed for input archives and music.
type Library struct {
	ComicDir string `toml:"comic_dir"`
	ZipDir   string `toml:"zip_dir"`
	MusicDir string `toml:"music_dir"`
}

// Output contains optional destination directories for finished videos.
// An empty value leaves the video next to its source archive.
type Output struct {
	ComicDir string `toml:"comic_dir"`
	ZipDir   string `toml:"zip_dir"`
}

// Video contains slideshow timing and format parameters.
type Video struct {
	FrameRate        int      `toml:"frame_rate"`
	FadeIn           float64  `toml:"fade_in"`
	FadeOut          float64  `toml:"fade_out"`
	ImageExtensions  []string `toml:"image_extensions"`
	AudioExtensions  []string `toml:"audio_extensions"`
	ExtraEncoderArgs string   `toml:"extra_encoder_args"`
}

// Pipeline contains validation and resource limits.
type Pipeline struct {
	// Reconstruction toggles the metadata-stripping rewrite stage.
	Reconstruction bool `toml:"reconstruction"`
	// Workers bounds the validation pool; 0 derives it from CPU count.
	Workers        int `toml:"workers"`
	MinFreeSpaceGB int `toml:"min_free_space_gb"`
}

// Paths contains working directories and the history database location.
type Paths struct {
	StagingDir string `toml:"staging_dir"`
	LogDir     string `toml:"log_dir"`
	HistoryDB  string `toml:"history_db"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Config encapsulates all configuration values for comicreel.
//
// Configuration sections by subsystem:
//   - Library: directories browsed for comic archives, zip archives, and music
//   - Output: optional relocation targets for finished videos
//   - Video: frame rate, audio fades, extension filters, extra encoder args
//   - Pipeline: reconstruction toggle, worker pool bound, free-space floor
//   - Paths: staging scratch root, log directory, history database
//   - Logging: log format and level
type Config struct {
	Library  Library  `toml:"library"`
	Output   Output   `toml:"output"`
	Video    Video    `toml:"video"`
	Pipeline Pipeline `toml:"pipeline"`
	Paths    Paths    `toml:"paths"`
	Logging  Logging  `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/comicreel/config.toml")
}

// Load locates, parses, and validates a configuration file. The returned config has all
// path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := expandPath("~/.config/comicreel/config.toml")
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("comicreel.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates the working directories the pipeline needs.
// Library roots are created on a best-effort basis so the CLI still runs
// when external storage is temporarily unavailable.
func (c *Config) EnsureDirectories() error {
	required := []string{c.Paths.StagingDir, c.Paths.LogDir}
	if db := strings.TrimSpace(c.Paths.HistoryDB); db != "" {
		required = append(required, filepath.Dir(db))
	}
	for _, dir := range required {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	for _, dir := range []string{c.Library.ComicDir, c.Library.ZipDir, c.Library.MusicDir} {
		if strings.TrimSpace(dir) != "" {
			_ = os.MkdirAll(dir, 0o755)
		}
	}
	return nil
}

// FFmpegBinary returns the encoder executable name.
func (c *Config) FFmpegBinary() string {
	return "ffmpeg"
}

// MagickBinary returns the ImageMagick executable name used for image reconstruction.
func (c *Config) MagickBinary() string {
	return "magick"
}

// WorkerCount resolves the validation pool size: the configured value when
// positive, otherwise twice the CPU count with a floor of four.
func (c *Config) WorkerCount() int {
	if c.Pipeline.Workers > 0 {
		return c.Pipeline.Workers
	}
	return max(4, runtime.NumCPU()*2)
}

// ExtraEncoderArgs splits the configured extra encoder argument string using
// shell quoting rules, so values like `-metadata title="My Comic"` survive.
func (c *Config) ExtraEncoderArgs() ([]string, error) {
	raw := strings.TrimSpace(c.Video.ExtraEncoderArgs)
	if raw == "" {
		return nil, nil
	}
	args, err := shlex.Split(raw)
	if err != nil {
		return nil, fmt.Errorf("video.extra_encoder_args: %w", err)
	}
	return args, nil
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	sample := sampleConfig

	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, []byte(sample), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
