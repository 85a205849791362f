package magick

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"comicreel/internal/services"
)

// Rewriter defines the behaviour the reconstruction stage needs.
type Rewriter interface {
	Rewrite(ctx context.Context, imagePath string) error
}

// Executor abstracts command execution for testability.
type Executor interface {
	Run(ctx context.Context, binary string, args []string, onLine func(string)) error
}

// Option configures the client.
type Option func(*Client)

// WithExecutor injects a custom executor (primarily for tests).
func WithExecutor(exec Executor) Option {
	return func(c *Client) {
		if exec != nil {
			c.exec = exec
		}
	}
}

// Client wraps the ImageMagick command line.
type Client struct {
	binary string
	exec   Executor
}

// New constructs an ImageMagick client.
func New(binary string, opts ...Option) (*Client, error) {
	binary = strings.TrimSpace(binary)
	if binary == "" {
		return nil, errors.New("magick binary required")
	}
	client := &Client{
		binary: binary,
		exec:   commandExecutor{},
	}
	for _, opt := range opts {
		opt(client)
	}
	return client, nil
}

// Rewrite resaves an image with its metadata profiles stripped, replacing
// the original atomically. The rewrite goes through a temporary sibling so a
// failed run never clobbers the source file.
func (c *Client) Rewrite(ctx context.Context, imagePath string) error {
	imagePath = strings.TrimSpace(imagePath)
	if imagePath == "" {
		return errors.New("image path required")
	}

	dir := filepath.Dir(imagePath)
	ext := filepath.Ext(imagePath)
	tmp, err := os.CreateTemp(dir, "rewrite-*"+ext)
	if err != nil {
		return fmt.Errorf("create temp image: %w", err)
	}
	tmpPath := tmp.Name()
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("close temp image: %w", err)
	}

	args := []string{imagePath, "+profile", "*", tmpPath}

	var tail []string
	if err := c.exec.Run(ctx, c.binary, args, func(line string) {
		line = strings.TrimSpace(line)
		if line == "" {
			return
		}
		tail = append(tail, line)
		if len(tail) > 6 {
			tail = tail[len(tail)-6:]
		}
	}); err != nil {
		_ = os.Remove(tmpPath)
		return c.wrapRunError(err, tail)
	}

	if err := os.Rename(tmpPath, imagePath); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("replace original image: %w", err)
	}
	return nil
}

// Version returns the first line of `magick -version` output.
func (c *Client) Version(ctx context.Context) (string, error) {
	var first string
	if err := c.exec.Run(ctx, c.binary, []string{"-version"}, func(line string) {
		if first == "" && strings.TrimSpace(line) != "" {
			first = strings.TrimSpace(line)
		}
	}); err != nil {
		return "", c.wrapRunError(err, nil)
	}
	return first, nil
}

func (c *Client) wrapRunError(err error, tail []string) error {
	marker := services.ErrExternalTool
	message := "magick failed"
	if errors.Is(err, exec.ErrNotFound) {
		marker = services.ErrConfiguration
		message = fmt.Sprintf("%s binary not found", c.binary)
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		message = fmt.Sprintf("exit status %d", exitErr.ExitCode())
	}
	if detail := strings.TrimSpace(strings.Join(tail, "; ")); detail != "" {
		err = fmt.Errorf("%w: %s", err, detail)
	}
	return services.Wrap(marker, "reconstruct", "magick", message, err)
}

var _ Rewriter = (*Client)(nil)
