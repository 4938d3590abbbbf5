package media

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
)

// ErrEmptyFrame is returned when ffmpeg succeeds but produces no image data.
var ErrEmptyFrame = errors.New("media: ffmpeg produced an empty frame")

// FFmpegProcessor implements Processor using the ffmpeg CLI.
type FFmpegProcessor struct {
	// ffmpegPath is the path to the ffmpeg binary. Defaults to "ffmpeg".
	ffmpegPath string
}

// NewFFmpegProcessor creates a new FFmpegProcessor.
// If ffmpegPath is empty, it defaults to "ffmpeg" (found via PATH).
func NewFFmpegProcessor(ffmpegPath string) *FFmpegProcessor {
	if ffmpegPath == "" {
		ffmpegPath = "ffmpeg"
	}
	return &FFmpegProcessor{ffmpegPath: ffmpegPath}
}

// ExtractFirstFrame decodes the first frame of videoPath and returns it as PNG.
// The frame is piped through stdout so no intermediate file is written.
func (p *FFmpegProcessor) ExtractFirstFrame(ctx context.Context, videoPath string) ([]byte, error) {
	args := []string{
		"-v", "error",
		"-i", videoPath,
		"-frames:v", "1", // Single frame
		"-f", "image2pipe",
		"-c:v", "png",
		"-", // Write to stdout
	}

	out, err := p.runFFmpeg(ctx, args)
	if err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, ErrEmptyFrame
	}
	return out, nil
}

// runFFmpeg executes ffmpeg with the given arguments and returns its stdout.
// On failure the error carries the stderr output.
func (p *FFmpegProcessor) runFFmpeg(ctx context.Context, args []string) ([]byte, error) {
	// #nosec G204 - ffmpegPath is set by the application, not user input
	cmd := exec.CommandContext(ctx, p.ffmpegPath, args...)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("ffmpeg cancelled: %w", ctx.Err())
		}
		return nil, &FFmpegError{
			Args:   args,
			Stderr: stderr.String(),
			Err:    err,
		}
	}

	return stdout.Bytes(), nil
}

// FFmpegError represents an error from running ffmpeg, including the stderr output.
type FFmpegError struct {
	Args   []string
	Stderr string
	Err    error
}

func (e *FFmpegError) Error() string {
	return fmt.Sprintf("ffmpeg error: %v\nargs: %v\nstderr: %s", e.Err, e.Args, e.Stderr)
}

func (e *FFmpegError) Unwrap() error {
	return e.Err
}
