package ffmpeg

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strconv"
	"strings"

	"comicreel/internal/services"
)

// filterGraph duplicates the image stream into a blurred full-frame
// background and a sharp height-fitted foreground, overlays them centered,
// and forces a 16:9 display aspect ratio.
const filterGraph = "[0:v]split=2[bg][fg];" +
	"[bg]scale=1280:720,boxblur=10:1[blurred];" +
	"[fg]scale=-1:720[fgscaled];" +
	"[blurred][fgscaled]overlay=(W-w)/2:(H-h)/2,setdar=16/9[v]"

// tailLines is how many trailing diagnostic lines are kept for error reports.
const tailLines = 12

// EncodeRequest describes one slideshow encode.
type EncodeRequest struct {
	ManifestPath string
	AudioPath    string
	OutputPath   string
	FrameRate    int
	// ExpectedSeconds is the predicted output duration. It caps the audio
	// fades and seeds the progress total, so both always agree.
	ExpectedSeconds float64
	FadeInSeconds   float64
	FadeOutSeconds  float64
	ExtraArgs       []string
}

// EncodeResult reports encode details gathered from the diagnostic stream.
type EncodeResult struct {
	AudioSeconds float64
}

// Encoder defines the behaviour the assembly job needs from the encoder.
type Encoder interface {
	Encode(ctx context.Context, req EncodeRequest, onProgress func(ProgressUpdate)) (EncodeResult, error)
	VerifyImage(ctx context.Context, imagePath string) error
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

// Client wraps the ffmpeg command line for encoding and image verification.
type Client struct {
	binary string
	exec   Executor
}

// New constructs an ffmpeg client.
func New(binary string, opts ...Option) (*Client, error) {
	binary = strings.TrimSpace(binary)
	if binary == "" {
		return nil, errors.New("ffmpeg binary required")
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

// Encode runs ffmpeg over the manifest and audio track, streaming progress
// derived from the diagnostic output. Progress never regresses: an update is
// delivered only when the reported time moves past the previous position.
// On success the final update is pinned to 100 percent.
func (c *Client) Encode(ctx context.Context, req EncodeRequest, onProgress func(ProgressUpdate)) (EncodeResult, error) {
	args, err := buildEncodeArgs(req)
	if err != nil {
		return EncodeResult{}, services.Wrap(services.ErrValidation, "encode", "ffmpeg", "invalid request", err)
	}

	var (
		result  EncodeResult
		last    float64
		tail    []string
		started bool
	)

	runErr := c.exec.Run(ctx, c.binary, args, func(line string) {
		if seconds, ok := parseDuration(line); ok && result.AudioSeconds == 0 {
			result.AudioSeconds = seconds
			return
		}
		if seconds, ok := parseProgressSeconds(line); ok {
			if onProgress == nil {
				return
			}
			if !started {
				started = true
			} else if seconds <= last {
				return
			}
			last = seconds
			onProgress(progressAt(seconds, req.ExpectedSeconds))
			return
		}
		tail = appendTail(tail, line)
	})

	if runErr != nil {
		return result, c.wrapRunError("encode", runErr, tail)
	}

	if onProgress != nil && req.ExpectedSeconds > 0 {
		onProgress(ProgressUpdate{Seconds: req.ExpectedSeconds, Total: req.ExpectedSeconds, Percent: 100})
	}
	return result, nil
}

// VerifyImage decodes an image and discards the result. A non-zero exit
// means the file is unusable for the slideshow.
func (c *Client) VerifyImage(ctx context.Context, imagePath string) error {
	if strings.TrimSpace(imagePath) == "" {
		return errors.New("image path required")
	}
	args := []string{"-v", "error", "-i", imagePath, "-vf", "scale=1:1", "-f", "null", "-"}

	var tail []string
	if err := c.exec.Run(ctx, c.binary, args, func(line string) {
		tail = appendTail(tail, line)
	}); err != nil {
		return c.wrapRunError("verify", err, tail)
	}
	return nil
}

// Version returns the first line of `ffmpeg -version` output.
func (c *Client) Version(ctx context.Context) (string, error) {
	var first string
	if err := c.exec.Run(ctx, c.binary, []string{"-version"}, func(line string) {
		if first == "" && strings.TrimSpace(line) != "" {
			first = strings.TrimSpace(line)
		}
	}); err != nil {
		return "", c.wrapRunError("version", err, nil)
	}
	return first, nil
}

func (c *Client) wrapRunError(operation string, err error, tail []string) error {
	marker := services.ErrExternalTool
	message := "ffmpeg failed"
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
	return services.Wrap(marker, operation, "ffmpeg", message, err)
}

func buildEncodeArgs(req EncodeRequest) ([]string, error) {
	if req.ManifestPath == "" {
		return nil, errors.New("manifest path required")
	}
	if req.AudioPath == "" {
		return nil, errors.New("audio path required")
	}
	if req.OutputPath == "" {
		return nil, errors.New("output path required")
	}
	if req.FrameRate <= 0 {
		return nil, errors.New("frame rate must be positive")
	}

	args := []string{
		"-y",
		"-hide_banner",
		"-loglevel", "info",
		"-f", "concat",
		"-safe", "0",
		"-i", req.ManifestPath,
		"-stream_loop", "-1",
		"-i", req.AudioPath,
		"-filter_complex", filterGraph,
		"-map", "[v]",
		"-map", "1:a",
		"-c:v", "libx264",
		"-r", strconv.Itoa(req.FrameRate),
		"-pix_fmt", "yuv420p",
		"-shortest",
	}
	if filter := fadeFilter(req.ExpectedSeconds, req.FadeInSeconds, req.FadeOutSeconds); filter != "" {
		args = append(args, "-af", filter)
	}
	args = append(args, req.ExtraArgs...)
	args = append(args, req.OutputPath)
	return args, nil
}

// fadeFilter builds the combined afade expression. Each fade duration is
// capped at the expected output duration; a capped duration of zero drops
// that fade entirely.
func fadeFilter(expected, fadeIn, fadeOut float64) string {
	in := min(fadeIn, expected)
	out := min(fadeOut, expected)
	start := max(0, expected-out)

	var filters []string
	if in > 0 {
		filters = append(filters, fmt.Sprintf("afade=t=in:st=0:d=%.4f", in))
	}
	if out > 0 {
		filters = append(filters, fmt.Sprintf("afade=t=out:st=%.4f:d=%.4f", start, out))
	}
	return strings.Join(filters, ",")
}

func progressAt(seconds, total float64) ProgressUpdate {
	update := ProgressUpdate{Seconds: seconds, Total: total}
	if total > 0 {
		update.Percent = min(seconds/total*100, 100)
	}
	return update
}

func appendTail(tail []string, line string) []string {
	line = strings.TrimSpace(line)
	if line == "" {
		return tail
	}
	tail = append(tail, line)
	if len(tail) > tailLines {
		tail = tail[len(tail)-tailLines:]
	}
	return tail
}

var _ Encoder = (*Client)(nil)
