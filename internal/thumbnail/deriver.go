// Package thumbnail derives a still-frame JPEG from video bytes with an
// external frame-extraction tool. Derivation never fails outward: when every
// strategy in the chain fails, a synthesized placeholder is returned.
package thumbnail

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image/color"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/disintegration/imaging"
	"go.uber.org/zap"

	"github.com/swinglab/mediacore/internal/logging"
	"github.com/swinglab/mediacore/internal/metrics"
	"github.com/swinglab/mediacore/internal/workpool"
)

// Output dimensions of every thumbnail.
const (
	Width  = 480
	Height = 270
)

var (
	// ErrExtractionFailed is returned when no strategy produced a frame.
	ErrExtractionFailed = errors.New("frame extraction failed")
	// ErrTimeoutExceeded is returned when an attempt ran past its time limit.
	ErrTimeoutExceeded = errors.New("frame extraction timed out")
	// ErrToolUnavailable is returned when the extraction binary cannot be found.
	ErrToolUnavailable = errors.New("frame extraction tool unavailable")
)

var inputExtPattern = regexp.MustCompile(`^\.[a-z0-9]{1,10}$`)

// Strategy is one extraction attempt: seek to an offset, or take the first
// decodable frame.
type Strategy struct {
	Name   string
	Seek   time.Duration
	NoSeek bool
}

// SeekAt returns a strategy that grabs the frame at d.
func SeekAt(d time.Duration) Strategy {
	return Strategy{Name: "seek_" + d.String(), Seek: d}
}

// NoSeek returns a strategy that grabs the first frame.
func NoSeek() Strategy {
	return Strategy{Name: "no_seek", NoSeek: true}
}

// DefaultChain is tried in order; the first success wins.
func DefaultChain() []Strategy {
	return []Strategy{SeekAt(2 * time.Second), SeekAt(0), NoSeek()}
}

// Config configures a Deriver.
type Config struct {
	Extractor Extractor
	Pool      *workpool.Pool // runs derivations; nil runs them on the caller's goroutine
	TempDir   string         // parent for per-call staging dirs; empty uses os.TempDir
	Chain     []Strategy     // defaults to DefaultChain
}

// Deriver turns video bytes into a thumbnail JPEG.
type Deriver struct {
	extractor Extractor
	pool      *workpool.Pool
	tempDir   string
	chain     []Strategy
}

// New creates a Deriver.
func New(cfg Config) *Deriver {
	chain := cfg.Chain
	if len(chain) == 0 {
		chain = DefaultChain()
	}
	extractor := cfg.Extractor
	if extractor == nil {
		extractor = &FFmpeg{}
	}
	return &Deriver{
		extractor: extractor,
		pool:      cfg.Pool,
		tempDir:   cfg.TempDir,
		chain:     chain,
	}
}

// Generate returns a 480x270 JPEG for video. It never fails: when every
// strategy fails the placeholder is returned and the failure is logged.
func (d *Deriver) Generate(ctx context.Context, video []byte, filename string) []byte {
	start := time.Now()
	frame, err := d.run(ctx, video, filename, d.chain)
	if err != nil {
		logging.WithContext(ctx).Warn("thumbnail derivation failed, using placeholder",
			zap.String("filename", filename),
			zap.Int("video_bytes", len(video)),
			zap.Error(err),
		)
		metrics.RecordThumbnail(time.Since(start), true)
		return Placeholder()
	}
	metrics.RecordThumbnail(time.Since(start), false)
	return frame
}

// CaptureAt extracts the frame at offset at with a single attempt. Unlike
// Generate, failures are returned to the caller.
func (d *Deriver) CaptureAt(ctx context.Context, video []byte, filename string, at time.Duration) ([]byte, error) {
	if at < 0 {
		return nil, fmt.Errorf("%w: negative offset %s", ErrExtractionFailed, at)
	}
	return d.run(ctx, video, filename, []Strategy{SeekAt(at)})
}

func (d *Deriver) run(ctx context.Context, video []byte, filename string, chain []Strategy) ([]byte, error) {
	var frame []byte
	job := func(ctx context.Context) (err error) {
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("%w: extractor panicked: %v", ErrExtractionFailed, r)
			}
		}()
		frame, err = d.derive(ctx, video, filename, chain)
		return err
	}

	var err error
	if d.pool != nil {
		err = d.pool.Do(ctx, job)
	} else {
		err = job(ctx)
	}
	if err != nil {
		if !errors.Is(err, ErrExtractionFailed) {
			err = fmt.Errorf("%w: %w", ErrExtractionFailed, err)
		}
		return nil, err
	}
	return frame, nil
}

// derive stages video in a private temp dir, walks chain and removes the
// dir on every exit path.
func (d *Deriver) derive(ctx context.Context, video []byte, filename string, chain []Strategy) ([]byte, error) {
	if len(video) == 0 {
		return nil, fmt.Errorf("%w: empty input", ErrExtractionFailed)
	}

	dir, err := os.MkdirTemp(d.tempDir, "thumb-*")
	if err != nil {
		return nil, fmt.Errorf("%w: create temp dir: %v", ErrExtractionFailed, err)
	}
	defer os.RemoveAll(dir)

	input := filepath.Join(dir, "input"+inputExt(filename))
	if err := os.WriteFile(input, video, 0o600); err != nil {
		return nil, fmt.Errorf("%w: stage input: %v", ErrExtractionFailed, err)
	}

	log := logging.WithContext(ctx)
	var errs []error
	for i, s := range chain {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}
		output := filepath.Join(dir, fmt.Sprintf("frame-%d.jpg", i))
		frame, err := d.attempt(ctx, input, output, s)
		metrics.RecordThumbnailAttempt(s.Name, err == nil)
		if err == nil {
			log.Debug("frame extracted", zap.String("strategy", s.Name), zap.Int("bytes", len(frame)))
			return frame, nil
		}
		log.Debug("frame extraction attempt failed", zap.String("strategy", s.Name), zap.Error(err))
		errs = append(errs, fmt.Errorf("%s: %w", s.Name, err))
	}
	return nil, fmt.Errorf("%w: %w", ErrExtractionFailed, errors.Join(errs...))
}

func (d *Deriver) attempt(ctx context.Context, input, output string, s Strategy) ([]byte, error) {
	if err := d.extractor.Extract(ctx, input, output, s); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(output)
	if err != nil {
		return nil, fmt.Errorf("read frame: %w", err)
	}
	if len(data) == 0 {
		return nil, errors.New("empty frame")
	}
	return normalize(data)
}

// normalize guarantees a 480x270 JPEG. Frames already in that shape pass
// through untouched; anything else is fitted and letterboxed on black.
func normalize(data []byte) ([]byte, error) {
	img, err := imaging.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode frame: %w", err)
	}
	b := img.Bounds()
	if b.Dx() == Width && b.Dy() == Height && isJPEG(data) {
		return data, nil
	}

	fitted := imaging.Fit(img, Width, Height, imaging.Lanczos)
	canvas := imaging.PasteCenter(imaging.New(Width, Height, color.Black), fitted)

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, canvas, imaging.JPEG, imaging.JPEGQuality(90)); err != nil {
		return nil, fmt.Errorf("encode frame: %w", err)
	}
	return buf.Bytes(), nil
}

func isJPEG(data []byte) bool {
	return len(data) > 4 && data[0] == 0xFF && data[1] == 0xD8
}

func inputExt(filename string) string {
	ext := strings.ToLower(filepath.Ext(filename))
	if !inputExtPattern.MatchString(ext) {
		return ".mp4"
	}
	return ext
}
