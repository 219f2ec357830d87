package thumbnail

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/disintegration/imaging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/swinglab/mediacore/internal/workpool"
)

// stubExtractor fails the first failures attempts, then writes frame.
type stubExtractor struct {
	mu       sync.Mutex
	failures int
	frame    []byte
	panics   bool
	calls    []Strategy
	inputs   []string
}

func (s *stubExtractor) Extract(_ context.Context, input, output string, st Strategy) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, st)
	s.inputs = append(s.inputs, input)
	if _, err := os.Stat(input); err != nil {
		return err
	}
	if s.panics {
		panic("boom")
	}
	if len(s.calls) <= s.failures {
		return errors.New("no frame at offset")
	}
	return os.WriteFile(output, s.frame, 0o600)
}

func (s *stubExtractor) names() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	names := make([]string, 0, len(s.calls))
	for _, c := range s.calls {
		names = append(names, c.Name)
	}
	return names
}

func encodeFrame(t *testing.T, w, h int, format imaging.Format) []byte {
	t.Helper()
	img := imaging.New(w, h, color.NRGBA{R: 200, G: 30, B: 30, A: 255})
	var buf bytes.Buffer
	require.NoError(t, imaging.Encode(&buf, img, format))
	return buf.Bytes()
}

func requireThumbnail(t *testing.T, data []byte) image.Image {
	t.Helper()
	require.True(t, len(data) > 4)
	assert.Equal(t, []byte{0xFF, 0xD8}, data[:2], "JPEG SOI marker")
	assert.Equal(t, []byte{0xFF, 0xD9}, data[len(data)-2:], "JPEG EOI marker")
	img, err := imaging.Decode(bytes.NewReader(data))
	require.NoError(t, err)
	assert.Equal(t, Width, img.Bounds().Dx())
	assert.Equal(t, Height, img.Bounds().Dy())
	return img
}

func TestGenerateFallsBackInOrder(t *testing.T) {
	stub := &stubExtractor{failures: 2, frame: encodeFrame(t, 640, 360, imaging.PNG)}
	d := New(Config{Extractor: stub, TempDir: t.TempDir()})

	out := d.Generate(context.Background(), []byte("video"), "clip.MP4")

	requireThumbnail(t, out)
	assert.Equal(t, []string{"seek_2s", "seek_0s", "no_seek"}, stub.names())
	assert.NotEqual(t, Placeholder(), out)
	assert.Equal(t, ".mp4", filepath.Ext(stub.inputs[0]))
}

func TestGenerateStopsAtFirstSuccess(t *testing.T) {
	frame := encodeFrame(t, Width, Height, imaging.JPEG)
	stub := &stubExtractor{frame: frame}
	d := New(Config{Extractor: stub, TempDir: t.TempDir()})

	out := d.Generate(context.Background(), []byte("video"), "clip.mov")

	assert.Equal(t, frame, out, "a conforming frame passes through unchanged")
	assert.Equal(t, []string{"seek_2s"}, stub.names())
	assert.Equal(t, ".mov", filepath.Ext(stub.inputs[0]))
}

func TestGeneratePlaceholderWhenEveryAttemptFails(t *testing.T) {
	stub := &stubExtractor{failures: 100}
	d := New(Config{Extractor: stub, TempDir: t.TempDir()})

	out := d.Generate(context.Background(), []byte("not a video"), "x.mp4")

	requireThumbnail(t, out)
	assert.Equal(t, Placeholder(), out)
	assert.Len(t, stub.calls, 3, "exactly three attempts")
}

func TestGenerateUndecodableFrameCountsAsFailure(t *testing.T) {
	stub := &stubExtractor{frame: []byte("garbage")}
	d := New(Config{Extractor: stub, TempDir: t.TempDir()})

	out := d.Generate(context.Background(), []byte("video"), "x.mp4")

	assert.Equal(t, Placeholder(), out)
	assert.Len(t, stub.calls, 3)
}

func TestGenerateRecoversFromPanic(t *testing.T) {
	d := New(Config{Extractor: &stubExtractor{panics: true}, TempDir: t.TempDir()})

	var out []byte
	require.NotPanics(t, func() {
		out = d.Generate(context.Background(), []byte("video"), "x.mp4")
	})
	assert.Equal(t, Placeholder(), out)
}

func TestGenerateEmptyInput(t *testing.T) {
	stub := &stubExtractor{frame: encodeFrame(t, Width, Height, imaging.JPEG)}
	d := New(Config{Extractor: stub, TempDir: t.TempDir()})

	out := d.Generate(context.Background(), nil, "x.mp4")

	assert.Equal(t, Placeholder(), out)
	assert.Empty(t, stub.calls)
}

func TestGenerateRemovesTempFiles(t *testing.T) {
	tests := []struct {
		name string
		stub *stubExtractor
	}{
		{"success", &stubExtractor{frame: encodeFrame(t, 320, 240, imaging.PNG)}},
		{"failure", &stubExtractor{failures: 100}},
		{"panic", &stubExtractor{panics: true}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tmp := t.TempDir()
			d := New(Config{Extractor: tt.stub, TempDir: tmp})

			d.Generate(context.Background(), []byte("video"), "x.mp4")

			entries, err := os.ReadDir(tmp)
			require.NoError(t, err)
			assert.Empty(t, entries)
		})
	}
}

func TestGenerateOnPool(t *testing.T) {
	pool := workpool.New("derive-test", 2, 4)
	defer pool.Close()
	stub := &stubExtractor{frame: encodeFrame(t, 320, 240, imaging.PNG)}
	d := New(Config{Extractor: stub, Pool: pool, TempDir: t.TempDir()})

	requireThumbnail(t, d.Generate(context.Background(), []byte("video"), "x.mp4"))
}

func TestGenerateClosedPoolFallsBack(t *testing.T) {
	pool := workpool.New("derive-test", 1, 1)
	require.NoError(t, pool.Close())
	stub := &stubExtractor{frame: encodeFrame(t, Width, Height, imaging.JPEG)}
	d := New(Config{Extractor: stub, Pool: pool, TempDir: t.TempDir()})

	assert.Equal(t, Placeholder(), d.Generate(context.Background(), []byte("video"), "x.mp4"))
	assert.Empty(t, stub.calls)
}

func TestGenerateCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	stub := &stubExtractor{frame: encodeFrame(t, Width, Height, imaging.JPEG)}
	d := New(Config{Extractor: stub, TempDir: t.TempDir()})

	assert.Equal(t, Placeholder(), d.Generate(ctx, []byte("video"), "x.mp4"))
}

func TestCaptureAt(t *testing.T) {
	stub := &stubExtractor{frame: encodeFrame(t, 1280, 720, imaging.JPEG)}
	d := New(Config{Extractor: stub, TempDir: t.TempDir()})

	out, err := d.CaptureAt(context.Background(), []byte("video"), "x.mp4", 1500*time.Millisecond)
	require.NoError(t, err)
	requireThumbnail(t, out)
	require.Len(t, stub.calls, 1)
	assert.Equal(t, 1500*time.Millisecond, stub.calls[0].Seek)
}

func TestCaptureAtSurfacesFailure(t *testing.T) {
	stub := &stubExtractor{failures: 100}
	d := New(Config{Extractor: stub, TempDir: t.TempDir()})

	_, err := d.CaptureAt(context.Background(), []byte("video"), "x.mp4", time.Second)
	assert.True(t, errors.Is(err, ErrExtractionFailed))
	assert.Len(t, stub.calls, 1, "no fallback chain")

	_, err = d.CaptureAt(context.Background(), []byte("video"), "x.mp4", -time.Second)
	assert.True(t, errors.Is(err, ErrExtractionFailed))
}

func TestPlaceholderImage(t *testing.T) {
	img := requireThumbnail(t, Placeholder())

	near := func(c color.Color, want color.NRGBA) bool {
		r, g, b, _ := c.RGBA()
		diff := func(a uint32, b uint8) int {
			d := int(a>>8) - int(b)
			if d < 0 {
				d = -d
			}
			return d
		}
		return diff(r, want.R) < 24 && diff(g, want.G) < 24 && diff(b, want.B) < 24
	}

	assert.True(t, near(img.At(10, 10), placeholderBackground), "background")
	assert.True(t, near(img.At(Width/2-10, Height/2), placeholderInk), "play icon")
	r, g, b, _ := img.At(frameMargin+1, Height/2).RGBA()
	assert.Greater(t, int(r>>8+g>>8+b>>8)/3, 150, "frame")
	assert.True(t, near(img.At(frameMargin+20, frameMargin+20), placeholderBackground), "inside frame")

	// Callers may modify the returned slice.
	p := Placeholder()
	p[0] = 0
	assert.Equal(t, byte(0xFF), Placeholder()[0])
}
