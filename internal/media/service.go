// Package media orchestrates uploads, thumbnail derivation, signed access
// and deletion on top of the storage, thumbnail and signedurl packages.
package media

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"path"
	"strconv"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/swinglab/mediacore/internal/logging"
	"github.com/swinglab/mediacore/internal/proxy"
	"github.com/swinglab/mediacore/internal/signedurl"
	"github.com/swinglab/mediacore/internal/storage"
	"github.com/swinglab/mediacore/internal/thumbnail"
)

var (
	// ErrClosed is returned for uploads after Close.
	ErrClosed = errors.New("media service closed")
	// ErrInvalidImageData is returned when markup image data cannot be decoded.
	ErrInvalidImageData = errors.New("invalid image data")
	// ErrInvalidOffset is returned for negative capture offsets.
	ErrInvalidOffset = errors.New("capture offset must not be negative")
)

var jst = time.FixedZone("JST", 9*60*60)

// ThumbnailKey returns the key of the thumbnail derived from videoKey: the
// video key with its extension replaced by ".jpg", or with "_thumb.jpg"
// appended to the stem when that would name the video itself.
func ThumbnailKey(videoKey string) string {
	stem := strings.TrimSuffix(videoKey, path.Ext(videoKey))
	if key := stem + ".jpg"; !strings.EqualFold(key, videoKey) {
		return key
	}
	return stem + "_thumb.jpg"
}

// VideoUpload is the result of a video upload. The thumbnail is derived in
// the background and appears at ThumbnailURL shortly after.
type VideoUpload struct {
	Video        *storage.StoredObject `json:"video"`
	ThumbnailKey string                `json:"thumbnail_key"`
	ThumbnailURL string                `json:"thumbnail_url"`
}

// FrameCapture is the result of capturing a single frame.
type FrameCapture struct {
	Image       *storage.StoredObject `json:"image"`
	CaptureTime float64               `json:"capture_time"`
}

// DeleteResult reports what a delete removed.
type DeleteResult struct {
	Deleted          bool  `json:"deleted"`
	ThumbnailDeleted *bool `json:"thumbnail_deleted,omitempty"`
}

// Service is the media façade used by the HTTP handlers and the CLI.
type Service struct {
	store   *storage.Service
	deriver *thumbnail.Deriver
	grants  *signedurl.Profile
	fetcher *proxy.Proxy
	now     func() time.Time

	mu     sync.Mutex
	closed bool
	wg     sync.WaitGroup
}

// NewService creates a media Service. grants issues client-facing URLs;
// fetcher reads stored videos back for frame capture.
func NewService(store *storage.Service, deriver *thumbnail.Deriver, grants *signedurl.Profile, fetcher *proxy.Proxy) *Service {
	return &Service{
		store:   store,
		deriver: deriver,
		grants:  grants,
		fetcher: fetcher,
		now:     time.Now,
	}
}

// UploadVideo stores video under a unique key and schedules thumbnail
// derivation. The returned result does not wait for the thumbnail.
func (s *Service) UploadVideo(ctx context.Context, video []byte, filename, owner string) (*VideoUpload, error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil, ErrClosed
	}
	s.wg.Add(1)
	s.mu.Unlock()

	obj, err := s.store.UploadVideo(ctx, bytes.NewReader(video), int64(len(video)), filename, owner)
	if err != nil {
		s.wg.Done()
		return nil, err
	}

	thumbKey := ThumbnailKey(obj.ObjectKey)
	go func() {
		defer s.wg.Done()
		s.deriveThumbnail(context.WithoutCancel(ctx), video, filename, thumbKey)
	}()

	return &VideoUpload{
		Video:        obj,
		ThumbnailKey: thumbKey,
		ThumbnailURL: s.store.URLFor(thumbKey),
	}, nil
}

func (s *Service) deriveThumbnail(ctx context.Context, video []byte, filename, key string) {
	log := logging.WithContext(ctx).With(zap.String("thumbnail_key", key))
	jpeg := s.deriver.Generate(ctx, video, filename)
	if _, err := s.store.UploadImageExact(ctx, bytes.NewReader(jpeg), int64(len(jpeg)), key); err != nil {
		log.Warn("thumbnail upload failed", zap.Error(err))
		return
	}
	log.Info("thumbnail stored", zap.Int("bytes", len(jpeg)))
}

// UploadImage stores an image under a unique key.
func (s *Service) UploadImage(ctx context.Context, image []byte, filename, owner string) (*storage.StoredObject, error) {
	return s.store.UploadImage(ctx, bytes.NewReader(image), int64(len(image)), filename, owner)
}

// PutImage stores an image under key, replacing any existing object.
func (s *Service) PutImage(ctx context.Context, image []byte, key string) (*storage.StoredObject, error) {
	return s.store.UploadImageExact(ctx, bytes.NewReader(image), int64(len(image)), key)
}

// UploadMarkup decodes base64 image data (raw or a data: URL) and stores it
// under filename verbatim.
func (s *Service) UploadMarkup(ctx context.Context, imageData, filename string) (*storage.StoredObject, error) {
	data, err := decodeImageData(imageData)
	if err != nil {
		return nil, err
	}
	return s.PutImage(ctx, data, filename)
}

func decodeImageData(s string) ([]byte, error) {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "data:") {
		meta, payload, ok := strings.Cut(s, ",")
		if !ok || !strings.HasPrefix(meta, "data:image/") || !strings.HasSuffix(meta, ";base64") {
			return nil, fmt.Errorf("%w: unsupported data URL", ErrInvalidImageData)
		}
		s = payload
	}
	data, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		if data, err = base64.RawStdEncoding.DecodeString(s); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidImageData, err)
		}
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: empty", ErrInvalidImageData)
	}
	return data, nil
}

// CaptureFrame grabs the frame of the stored video videoRef at offset at and
// stores it under filename, or a generated capture name when filename is empty.
func (s *Service) CaptureFrame(ctx context.Context, videoRef string, at time.Duration, filename string) (*FrameCapture, error) {
	if at < 0 {
		return nil, ErrInvalidOffset
	}
	if filename == "" {
		filename = fmt.Sprintf("capture_%s_%ss.jpg",
			s.now().In(jst).Format("20060102_150405"),
			strconv.FormatFloat(at.Seconds(), 'f', 1, 64))
	}
	if err := storage.ValidateKey(filename); err != nil {
		return nil, err
	}

	res, err := s.fetcher.Fetch(ctx, videoRef)
	if err != nil {
		return nil, err
	}
	videoKey, _ := s.store.KeyFromURL(videoRef)

	frame, err := s.deriver.CaptureAt(ctx, res.Body, videoKey, at)
	if err != nil {
		return nil, err
	}
	obj, err := s.PutImage(ctx, frame, filename)
	if err != nil {
		return nil, err
	}
	return &FrameCapture{Image: obj, CaptureTime: at.Seconds()}, nil
}

// Delete removes the object named by ref. With withThumbnail set, the
// thumbnail derived from it is removed too.
func (s *Service) Delete(ctx context.Context, ref string, withThumbnail bool) *DeleteResult {
	res := &DeleteResult{Deleted: s.store.Delete(ctx, ref)}
	if !withThumbnail {
		return res
	}
	thumbDeleted := false
	if key, err := s.store.KeyFromURL(ref); err == nil {
		thumbDeleted = s.store.Delete(ctx, ThumbnailKey(key))
	}
	res.ThumbnailDeleted = &thumbDeleted
	return res
}

// SignedURL issues a client-facing read grant for ref.
func (s *Service) SignedURL(ctx context.Context, ref string) (*signedurl.Grant, error) {
	key, err := s.store.KeyFromURL(ref)
	if err != nil {
		return nil, err
	}
	return s.grants.Issue(ctx, key)
}

// Exists reports whether ref names a stored object.
func (s *Service) Exists(ctx context.Context, ref string) (bool, error) {
	key, err := s.store.KeyFromURL(ref)
	if err != nil {
		return false, err
	}
	return s.store.Exists(ctx, key)
}

// Wait blocks until every scheduled thumbnail derivation has finished.
func (s *Service) Wait() {
	s.wg.Wait()
}

// Close stops accepting video uploads and waits for in-flight derivations.
func (s *Service) Close() error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	s.wg.Wait()
	return nil
}
