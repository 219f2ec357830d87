package storage

import (
	"context"
	"errors"
	"io"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/swinglab/mediacore/internal/logging"
	"github.com/swinglab/mediacore/internal/metrics"
)

// Service maps upload intents (video/image, unique/exact) onto a Backend.
type Service struct {
	backend Backend
	namer   *Namer
}

// NewService creates a Service over backend.
func NewService(backend Backend) *Service {
	return &Service{backend: backend, namer: NewNamer()}
}

// Backend returns the underlying backend.
func (s *Service) Backend() Backend { return s.backend }

// UploadVideo stores a video under a fresh unique key. A filename carrying
// an image extension is stored with ".mp4" so the key never collides with
// the video's derived thumbnail.
func (s *Service) UploadVideo(ctx context.Context, r io.Reader, size int64, filename, owner string) (*StoredObject, error) {
	return s.Upload(ctx, r, size, videoFilename(filename), owner, UploadPolicy{Naming: Unique, Kind: Video})
}

var imageExts = map[string]bool{".jpg": true, ".jpeg": true, ".png": true, ".gif": true, ".webp": true}

func videoFilename(filename string) string {
	ext := filepath.Ext(filename)
	if imageExts[strings.ToLower(ext)] {
		return strings.TrimSuffix(filename, ext) + ".mp4"
	}
	return filename
}

// UploadImage stores an image under a fresh unique key.
func (s *Service) UploadImage(ctx context.Context, r io.Reader, size int64, filename, owner string) (*StoredObject, error) {
	return s.Upload(ctx, r, size, filename, owner, UploadPolicy{Naming: Unique, Kind: Image})
}

// UploadImageExact stores an image under key, replacing any previous object.
func (s *Service) UploadImageExact(ctx context.Context, r io.Reader, size int64, key string) (*StoredObject, error) {
	return s.UploadExact(ctx, r, size, key, UploadPolicy{Naming: Exact, Kind: Image})
}

// Upload stores r under a key derived from owner and the extension of filename.
func (s *Service) Upload(ctx context.Context, r io.Reader, size int64, filename, owner string, policy UploadPolicy) (*StoredObject, error) {
	key, err := s.namer.Next(owner, filename)
	if err != nil {
		metrics.RecordUpload(string(policy.Kind), string(Unique), size, false)
		return nil, err
	}
	return s.put(ctx, r, size, key, Unique, policy)
}

// UploadExact stores r under key verbatim. A later exact upload to the same
// key supersedes the earlier one.
func (s *Service) UploadExact(ctx context.Context, r io.Reader, size int64, key string, policy UploadPolicy) (*StoredObject, error) {
	if err := ValidateKey(key); err != nil {
		metrics.RecordUpload(string(policy.Kind), string(Exact), size, false)
		return nil, err
	}
	return s.put(ctx, r, size, key, Exact, policy)
}

func (s *Service) put(ctx context.Context, r io.Reader, size int64, key string, mode NamingMode, policy UploadPolicy) (*StoredObject, error) {
	contentType := policy.ContentType
	if contentType == "" {
		contentType = ContentTypeFor(policy.Kind)
	}

	obj, err := s.backend.Put(ctx, key, r, size, contentType)
	metrics.RecordUpload(string(policy.Kind), string(mode), size, err == nil)
	if err != nil {
		logging.WithContext(ctx).Error("upload failed",
			zap.String("key", key),
			zap.String("kind", string(policy.Kind)),
			zap.String("mode", string(mode)),
			zap.Error(err),
		)
		return nil, err
	}

	logging.WithContext(ctx).Info("object stored",
		zap.String("backend", string(obj.Backend)),
		zap.String("key", obj.ObjectKey),
		zap.String("content_type", obj.ContentType),
	)
	return obj, nil
}

// Delete removes the object named by ref (canonical URL or bare key). It
// never fails outward: unusable references and backend errors are logged and
// reported as false.
func (s *Service) Delete(ctx context.Context, ref string) bool {
	deleted, err := s.backend.Delete(ctx, ref)
	switch {
	case err != nil:
		metrics.RecordDelete("error")
		level := zap.WarnLevel
		if errors.Is(err, ErrInvalidReference) || errors.Is(err, ErrInvalidKey) {
			level = zap.InfoLevel
		}
		logging.WithContext(ctx).Log(level, "delete failed", zap.String("ref", ref), zap.Error(err))
		return false
	case !deleted:
		metrics.RecordDelete("absent")
		logging.WithContext(ctx).Debug("delete: object already absent", zap.String("ref", ref))
		return false
	}
	metrics.RecordDelete("deleted")
	return true
}

// Exists reports whether key is stored.
func (s *Service) Exists(ctx context.Context, key string) (bool, error) {
	return s.backend.Exists(ctx, key)
}

// URLFor returns the canonical URL for key.
func (s *Service) URLFor(key string) string { return s.backend.URLFor(key) }

// KeyFromURL resolves a canonical URL or bare key to an object key.
func (s *Service) KeyFromURL(ref string) (string, error) { return resolveRef(s.backend, ref) }
