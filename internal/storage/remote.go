package storage

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"go.uber.org/zap"

	"github.com/swinglab/mediacore/internal/logging"
	"github.com/swinglab/mediacore/internal/metrics"
	"github.com/swinglab/mediacore/internal/workpool"
)

// RemoteConfig holds S3-compatible blob store settings.
type RemoteConfig struct {
	Endpoint   string // host:port, or a full URL whose scheme decides TLS
	AccessKey  string
	SecretKey  string
	Bucket     string
	Region     string
	UseSSL     bool
	PublicBase string // canonical URL base; defaults to "{scheme}://{endpoint}/{bucket}"
	Workers    int    // size of the pool running blocking SDK calls
}

// RemoteBackend implements Backend on an S3-compatible blob store via minio-go.
// The bucket is private: reads go through presigned URLs. Every SDK call is
// dispatched to a bounded worker pool owned by the backend.
type RemoteBackend struct {
	client     *minio.Client
	bucket     string
	region     string
	publicBase string
	pool       *workpool.Pool
}

// NewRemote creates a minio client, ensures the bucket exists and returns a
// ready-to-use RemoteBackend. Missing credentials or an unreachable store
// yield ErrBackendUnavailable so the process fails at startup.
func NewRemote(ctx context.Context, cfg RemoteConfig) (*RemoteBackend, error) {
	b, err := newRemote(cfg)
	if err != nil {
		return nil, err
	}
	if err := b.ensureBucket(ctx); err != nil {
		b.Close()
		return nil, err
	}
	return b, nil
}

func newRemote(cfg RemoteConfig) (*RemoteBackend, error) {
	var missing []string
	if cfg.Endpoint == "" {
		missing = append(missing, "endpoint")
	}
	if cfg.AccessKey == "" || cfg.SecretKey == "" {
		missing = append(missing, "credentials")
	}
	if cfg.Bucket == "" {
		missing = append(missing, "bucket")
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("%w: missing %s", ErrBackendUnavailable, strings.Join(missing, ", "))
	}

	endpoint, secure := cfg.Endpoint, cfg.UseSSL
	if strings.Contains(endpoint, "://") {
		u, err := url.Parse(endpoint)
		if err != nil || u.Host == "" {
			return nil, fmt.Errorf("%w: invalid endpoint %q", ErrBackendUnavailable, cfg.Endpoint)
		}
		endpoint, secure = u.Host, u.Scheme == "https"
	}

	client, err := minio.New(endpoint, &minio.Options{
		Creds:        credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure:       secure,
		Region:       cfg.Region,
		BucketLookup: minio.BucketLookupPath,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: create minio client: %v", ErrBackendUnavailable, err)
	}

	publicBase := strings.TrimRight(cfg.PublicBase, "/")
	if publicBase == "" {
		scheme := "http"
		if secure {
			scheme = "https"
		}
		publicBase = scheme + "://" + endpoint + "/" + cfg.Bucket
	}
	if u, err := url.Parse(publicBase); err != nil || u.Host == "" {
		return nil, fmt.Errorf("%w: invalid public base %q", ErrBackendUnavailable, publicBase)
	}

	workers := cfg.Workers
	if workers <= 0 {
		workers = 4
	}

	return &RemoteBackend{
		client:     client,
		bucket:     cfg.Bucket,
		region:     cfg.Region,
		publicBase: publicBase,
		pool:       workpool.New("storage", workers, workers*16),
	}, nil
}

// call runs fn on the backend pool and records the operation.
func (b *RemoteBackend) call(ctx context.Context, op string, fn func(context.Context) error) error {
	start := time.Now()
	err := b.pool.Do(ctx, fn)
	metrics.RecordBackendOperation(string(KindRemote), op, time.Since(start), err == nil)
	return err
}

func (b *RemoteBackend) ensureBucket(ctx context.Context) error {
	var created bool
	err := b.call(ctx, "ensure_bucket", func(ctx context.Context) error {
		exists, err := b.client.BucketExists(ctx, b.bucket)
		if err != nil {
			return fmt.Errorf("check bucket existence: %w", err)
		}
		if exists {
			return nil
		}
		if err := b.client.MakeBucket(ctx, b.bucket, minio.MakeBucketOptions{Region: b.region}); err != nil {
			return fmt.Errorf("create bucket %q: %w", b.bucket, err)
		}
		created = true
		return nil
	})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
	}
	if created {
		logging.Info("storage: created bucket", zap.String("bucket", b.bucket))
	}
	return nil
}

// Kind returns KindRemote.
func (b *RemoteBackend) Kind() Kind { return KindRemote }

// Container returns the bucket name.
func (b *RemoteBackend) Container() string { return b.bucket }

// Put uploads body under key, overwriting any existing object.
func (b *RemoteBackend) Put(ctx context.Context, key string, body io.Reader, size int64, contentType string) (*StoredObject, error) {
	if err := ValidateKey(key); err != nil {
		return nil, err
	}
	err := b.call(ctx, "put", func(ctx context.Context) error {
		_, err := b.client.PutObject(ctx, b.bucket, key, body, size, minio.PutObjectOptions{
			ContentType: contentType,
		})
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("put object %q: %w", key, err)
	}

	logging.Debug("remote put object", zap.String("key", key), zap.Int64("size", size))
	return &StoredObject{
		Backend:     KindRemote,
		Container:   b.bucket,
		ObjectKey:   key,
		ContentType: contentType,
		URL:         b.URLFor(key),
	}, nil
}

// Delete removes the object named by ref. A missing object reports false.
func (b *RemoteBackend) Delete(ctx context.Context, ref string) (bool, error) {
	key, err := resolveRef(b, ref)
	if err != nil {
		return false, err
	}
	var found bool
	err = b.call(ctx, "delete", func(ctx context.Context) error {
		if _, err := b.client.StatObject(ctx, b.bucket, key, minio.StatObjectOptions{}); err != nil {
			if isNoSuchKey(err) {
				return nil
			}
			return err
		}
		found = true
		return b.client.RemoveObject(ctx, b.bucket, key, minio.RemoveObjectOptions{})
	})
	if err != nil {
		return false, fmt.Errorf("delete object %q: %w", key, err)
	}
	return found, nil
}

// Exists checks if an object exists at key.
func (b *RemoteBackend) Exists(ctx context.Context, key string) (bool, error) {
	if err := ValidateKey(key); err != nil {
		return false, err
	}
	var found bool
	err := b.call(ctx, "stat", func(ctx context.Context) error {
		_, err := b.client.StatObject(ctx, b.bucket, key, minio.StatObjectOptions{})
		if err != nil {
			if isNoSuchKey(err) {
				return nil
			}
			return err
		}
		found = true
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("stat object %q: %w", key, err)
	}
	return found, nil
}

// URLFor returns the canonical, token-free URL for key.
// For local MinIO: "http://localhost:9000/media/20250401120000_U1.mp4"
func (b *RemoteBackend) URLFor(key string) string {
	return b.publicBase + "/" + url.PathEscape(key)
}

// KeyFromURL extracts the key from a canonical URL under the public base.
func (b *RemoteBackend) KeyFromURL(ref string) (string, error) {
	u, err := url.Parse(strings.TrimSpace(ref))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidReference, err)
	}
	base, _ := url.Parse(b.publicBase)
	if !u.IsAbs() || !strings.EqualFold(u.Host, base.Host) {
		return "", fmt.Errorf("%w: %q is not hosted by this store", ErrInvalidReference, ref)
	}
	return keyUnder(path.Clean(u.Path), base.Path)
}

// PresignGet returns a SigV4 presigned GET URL for key.
func (b *RemoteBackend) PresignGet(ctx context.Context, key string, ttl time.Duration) (string, error) {
	if err := ValidateKey(key); err != nil {
		return "", err
	}
	var signed string
	err := b.call(ctx, "presign", func(ctx context.Context) error {
		u, err := b.client.PresignedGetObject(ctx, b.bucket, key, ttl, nil)
		if err != nil {
			return err
		}
		signed = u.String()
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("presign %q: %w", key, err)
	}
	return signed, nil
}

// Close drains and stops the SDK worker pool.
func (b *RemoteBackend) Close() error {
	return b.pool.Close()
}

func isNoSuchKey(err error) bool {
	resp := minio.ToErrorResponse(err)
	return resp.Code == "NoSuchKey" || resp.StatusCode == http.StatusNotFound
}
