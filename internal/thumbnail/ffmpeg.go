package thumbnail

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"
)

const (
	// DefaultTimeout bounds a single extraction attempt.
	DefaultTimeout = 30 * time.Second
	// DefaultWaitDelay bounds how long Wait blocks on I/O after the tool is killed.
	DefaultWaitDelay = 2 * time.Second
)

// Extractor writes one still frame of input to output as a JPEG.
type Extractor interface {
	Extract(ctx context.Context, input, output string, s Strategy) error
}

// FFmpeg extracts frames by running the ffmpeg binary.
type FFmpeg struct {
	Binary    string        // path or name looked up in PATH; defaults to "ffmpeg"
	Timeout   time.Duration // per-attempt limit; defaults to DefaultTimeout
	WaitDelay time.Duration
}

// Extract runs one ffmpeg invocation for strategy s.
func (f *FFmpeg) Extract(ctx context.Context, input, output string, s Strategy) error {
	bin := f.Binary
	if bin == "" {
		bin = "ffmpeg"
	}
	path, err := exec.LookPath(bin)
	if err != nil {
		return fmt.Errorf("%w: %s", ErrToolUnavailable, bin)
	}

	timeout := f.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	waitDelay := f.WaitDelay
	if waitDelay <= 0 {
		waitDelay = DefaultWaitDelay
	}

	cmdCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(cmdCtx, path, ffmpegArgs(input, output, s)...)
	cmd.WaitDelay = waitDelay
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	err = cmd.Run()
	if cmdErr := cmdCtx.Err(); cmdErr != nil {
		if ctx.Err() == nil && errors.Is(cmdErr, context.DeadlineExceeded) {
			return fmt.Errorf("%w: %s after %s", ErrTimeoutExceeded, s.Name, timeout)
		}
		return fmt.Errorf("%s: %w", s.Name, cmdErr)
	}
	if err != nil {
		return fmt.Errorf("ffmpeg %s: %w: %s", s.Name, err, lastLine(stderr.String()))
	}

	info, err := os.Stat(output)
	if err != nil {
		return fmt.Errorf("ffmpeg %s: no frame written: %w", s.Name, err)
	}
	if info.Size() == 0 {
		return fmt.Errorf("ffmpeg %s: empty frame", s.Name)
	}
	return nil
}

// ffmpegArgs scales and letterboxes to the thumbnail size. The seek is an
// output option so the frame is decoded accurately rather than snapped to the
// nearest keyframe.
func ffmpegArgs(input, output string, s Strategy) []string {
	args := []string{
		"-hide_banner", "-loglevel", "error",
		"-i", input,
		"-an",
		"-vcodec", "mjpeg",
		"-vframes", "1",
		"-q:v", "2",
		"-vf", fmt.Sprintf("scale=%d:%d:force_original_aspect_ratio=decrease,pad=%d:%d:(ow-iw)/2:(oh-ih)/2:color=black",
			Width, Height, Width, Height),
	}
	if !s.NoSeek {
		args = append(args, "-ss", formatTimestamp(s.Seek))
	}
	return append(args, "-y", output)
}

// formatTimestamp renders d as HH:MM:SS.mmm.
func formatTimestamp(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	ms := d.Milliseconds()
	return fmt.Sprintf("%02d:%02d:%02d.%03d", ms/3_600_000, ms/60_000%60, ms/1000%60, ms%1000)
}

func lastLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.LastIndexByte(s, '\n'); i >= 0 {
		s = s[i+1:]
	}
	if len(s) > 300 {
		s = s[:300]
	}
	return s
}
