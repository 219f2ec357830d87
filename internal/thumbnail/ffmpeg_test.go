package thumbnail

import (
	"context"
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeTool writes an executable shell script standing in for ffmpeg.
func fakeTool(t *testing.T, body string) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("shell scripts unavailable")
	}
	path := filepath.Join(t.TempDir(), "ffmpeg")
	require.NoError(t, os.WriteFile(path, []byte("#!/bin/sh\n"+body+"\n"), 0o755))
	return path
}

func TestFFmpegArgs(t *testing.T) {
	args := ffmpegArgs("in.mp4", "out.jpg", SeekAt(2*time.Second))
	joined := strings.Join(args, " ")

	assert.Contains(t, joined, "-i in.mp4 -an -vcodec mjpeg -vframes 1 -q:v 2")
	assert.Contains(t, joined, "scale=480:270:force_original_aspect_ratio=decrease,pad=480:270:(ow-iw)/2:(oh-ih)/2:color=black")
	assert.Contains(t, joined, "-ss 00:00:02.000")
	assert.Equal(t, []string{"-y", "out.jpg"}, args[len(args)-2:])

	noSeek := strings.Join(ffmpegArgs("in.mp4", "out.jpg", NoSeek()), " ")
	assert.NotContains(t, noSeek, "-ss")
}

func TestFormatTimestamp(t *testing.T) {
	assert.Equal(t, "00:00:00.000", formatTimestamp(0))
	assert.Equal(t, "00:00:01.500", formatTimestamp(1500*time.Millisecond))
	assert.Equal(t, "01:02:03.004", formatTimestamp(time.Hour+2*time.Minute+3*time.Second+4*time.Millisecond))
	assert.Equal(t, "00:00:00.000", formatTimestamp(-time.Second))
}

func TestFFmpegToolUnavailable(t *testing.T) {
	f := &FFmpeg{Binary: filepath.Join(t.TempDir(), "no-such-ffmpeg")}
	err := f.Extract(context.Background(), "in", filepath.Join(t.TempDir(), "out.jpg"), NoSeek())
	assert.True(t, errors.Is(err, ErrToolUnavailable), "got %v", err)
}

func TestFFmpegTimeout(t *testing.T) {
	f := &FFmpeg{
		Binary:    fakeTool(t, "exec sleep 10"),
		Timeout:   200 * time.Millisecond,
		WaitDelay: 200 * time.Millisecond,
	}

	start := time.Now()
	err := f.Extract(context.Background(), "in", filepath.Join(t.TempDir(), "out.jpg"), SeekAt(2*time.Second))
	assert.True(t, errors.Is(err, ErrTimeoutExceeded), "got %v", err)
	assert.Less(t, time.Since(start), 5*time.Second)
}

func TestFFmpegNonZeroExit(t *testing.T) {
	f := &FFmpeg{Binary: fakeTool(t, `echo "Invalid data found when processing input" >&2; exit 1`)}
	err := f.Extract(context.Background(), "in", filepath.Join(t.TempDir(), "out.jpg"), NoSeek())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Invalid data found")
}

func TestFFmpegMissingOutput(t *testing.T) {
	f := &FFmpeg{Binary: fakeTool(t, "exit 0")}
	err := f.Extract(context.Background(), "in", filepath.Join(t.TempDir(), "out.jpg"), NoSeek())
	assert.Error(t, err)
}

func TestFFmpegEmptyOutput(t *testing.T) {
	// The output path is the last argument.
	f := &FFmpeg{Binary: fakeTool(t, `for a; do out="$a"; done; : > "$out"`)}
	err := f.Extract(context.Background(), "in", filepath.Join(t.TempDir(), "out.jpg"), NoSeek())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "empty frame")
}

func TestDeriverWithHangingToolFallsBackInBoundedTime(t *testing.T) {
	tmp := t.TempDir()
	d := New(Config{
		Extractor: &FFmpeg{
			Binary:    fakeTool(t, "exec sleep 10"),
			Timeout:   100 * time.Millisecond,
			WaitDelay: 100 * time.Millisecond,
		},
		TempDir: tmp,
	})

	start := time.Now()
	out := d.Generate(context.Background(), []byte("video"), "x.mp4")
	assert.Equal(t, Placeholder(), out)
	assert.Less(t, time.Since(start), 5*time.Second)

	entries, err := os.ReadDir(tmp)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestGenerateWithRealFFmpeg(t *testing.T) {
	bin, err := exec.LookPath("ffmpeg")
	if err != nil {
		t.Skip("ffmpeg not installed")
	}
	dir := t.TempDir()
	src := filepath.Join(dir, "src.mp4")
	gen := exec.Command(bin, "-hide_banner", "-loglevel", "error",
		"-f", "lavfi", "-i", "testsrc=duration=3:size=640x360:rate=10",
		"-pix_fmt", "yuv420p", "-y", src)
	if out, err := gen.CombinedOutput(); err != nil {
		t.Skipf("cannot synthesize test video: %v: %s", err, out)
	}
	video, err := os.ReadFile(src)
	require.NoError(t, err)

	d := New(Config{Extractor: &FFmpeg{Binary: bin}, TempDir: t.TempDir()})
	out := d.Generate(context.Background(), video, "src.mp4")

	requireThumbnail(t, out)
	assert.NotEqual(t, Placeholder(), out)

	frame, err := d.CaptureAt(context.Background(), video, "src.mp4", time.Second)
	require.NoError(t, err)
	requireThumbnail(t, frame)
}
