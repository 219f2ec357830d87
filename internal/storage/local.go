package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/swinglab/mediacore/internal/logging"
	"github.com/swinglab/mediacore/internal/metrics"
	"github.com/swinglab/mediacore/internal/signedurl"
)

// LocalConfig holds local filesystem backend settings.
type LocalConfig struct {
	RootPath      string
	Mount         string // URL prefix objects are served under, e.g. "/uploads"
	PublicBaseURL string // absolute origin for signed URLs, e.g. "http://localhost:8080"
	SigningSecret string
}

// LocalBackend implements Backend on the local filesystem. Canonical URLs are
// root-relative ("/uploads/{key}") and served by FileHandler.
type LocalBackend struct {
	rootPath   string
	mount      string
	publicBase string
	signer     *signedurl.TokenSigner
}

// NewLocal creates the root directory if needed and returns a LocalBackend.
func NewLocal(cfg LocalConfig) (*LocalBackend, error) {
	if cfg.RootPath == "" {
		return nil, errors.New("local storage: root path is required")
	}
	if err := os.MkdirAll(cfg.RootPath, 0o755); err != nil {
		return nil, fmt.Errorf("create root path %s: %w", cfg.RootPath, err)
	}
	info, err := os.Stat(cfg.RootPath)
	if err != nil {
		return nil, fmt.Errorf("stat root path %s: %w", cfg.RootPath, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("root path %s is not a directory", cfg.RootPath)
	}

	mount := "/" + strings.Trim(cfg.Mount, "/")
	if mount == "/" {
		mount = "/uploads"
	}
	signer, err := signedurl.NewTokenSigner(cfg.SigningSecret, strings.TrimPrefix(mount, "/"))
	if err != nil {
		return nil, fmt.Errorf("local storage: %w", err)
	}

	return &LocalBackend{
		rootPath:   cfg.RootPath,
		mount:      mount,
		publicBase: strings.TrimRight(cfg.PublicBaseURL, "/"),
		signer:     signer,
	}, nil
}

func (b *LocalBackend) fullPath(key string) string {
	return filepath.Join(b.rootPath, key)
}

// Kind returns KindLocal.
func (b *LocalBackend) Kind() Kind { return KindLocal }

// Container returns the root directory.
func (b *LocalBackend) Container() string { return b.rootPath }

// Mount returns the URL prefix objects are served under.
func (b *LocalBackend) Mount() string { return b.mount }

// Put writes content to the local filesystem atomically, replacing any
// existing file at key.
func (b *LocalBackend) Put(_ context.Context, key string, body io.Reader, _ int64, contentType string) (*StoredObject, error) {
	if err := ValidateKey(key); err != nil {
		return nil, err
	}
	start := time.Now()
	err := b.writeAtomic(key, body)
	metrics.RecordBackendOperation(string(KindLocal), "put", time.Since(start), err == nil)
	if err != nil {
		return nil, err
	}

	logging.Debug("local put object", zap.String("key", key))
	return &StoredObject{
		Backend:     KindLocal,
		Container:   b.rootPath,
		ObjectKey:   key,
		ContentType: contentType,
		URL:         b.URLFor(key),
	}, nil
}

func (b *LocalBackend) writeAtomic(key string, body io.Reader) error {
	tmp, err := os.CreateTemp(b.rootPath, ".upload-*.tmp")
	if err != nil {
		return fmt.Errorf("create temp for %s: %w", key, err)
	}
	tmpName := tmp.Name()

	if _, err := io.Copy(tmp, body); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write %s: %w", key, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close temp for %s: %w", key, err)
	}
	if err := os.Rename(tmpName, b.fullPath(key)); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("rename temp to %s: %w", key, err)
	}
	return nil
}

// Delete removes the file named by the trailing segment of ref.
func (b *LocalBackend) Delete(_ context.Context, ref string) (bool, error) {
	key, err := resolveRef(b, ref)
	if err != nil {
		return false, err
	}
	start := time.Now()
	err = os.Remove(b.fullPath(key))
	if errors.Is(err, os.ErrNotExist) {
		metrics.RecordBackendOperation(string(KindLocal), "delete", time.Since(start), true)
		return false, nil
	}
	metrics.RecordBackendOperation(string(KindLocal), "delete", time.Since(start), err == nil)
	if err != nil {
		return false, fmt.Errorf("delete %s: %w", key, err)
	}
	return true, nil
}

// Exists checks if a file exists at key.
func (b *LocalBackend) Exists(_ context.Context, key string) (bool, error) {
	if err := ValidateKey(key); err != nil {
		return false, err
	}
	_, err := os.Stat(b.fullPath(key))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return false, nil
		}
		return false, fmt.Errorf("stat %s: %w", key, err)
	}
	return true, nil
}

// Open opens the file stored at key. A missing file yields ErrObjectNotFound.
func (b *LocalBackend) Open(key string) (*os.File, error) {
	if err := ValidateKey(key); err != nil {
		return nil, err
	}
	f, err := os.Open(b.fullPath(key))
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrObjectNotFound, key)
	}
	return f, err
}

// URLFor returns the root-relative URL "/{mount}/{key}".
func (b *LocalBackend) URLFor(key string) string {
	return b.mount + "/" + url.PathEscape(key)
}

// KeyFromURL accepts "/{mount}/{key}" or the same path under PublicBaseURL.
func (b *LocalBackend) KeyFromURL(ref string) (string, error) {
	u, err := url.Parse(strings.TrimSpace(ref))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidReference, err)
	}
	if u.IsAbs() || u.Host != "" {
		base, err := url.Parse(b.publicBase)
		if err != nil || base.Host == "" || !strings.EqualFold(u.Host, base.Host) {
			return "", fmt.Errorf("%w: foreign host %q", ErrInvalidReference, u.Host)
		}
	}
	return keyUnder(path.Clean(u.Path), b.mount)
}

// PresignGet returns "{PublicBaseURL}/{mount}/{key}?token=..." where the token
// is verified by FileHandler.
func (b *LocalBackend) PresignGet(_ context.Context, key string, ttl time.Duration) (string, error) {
	if err := ValidateKey(key); err != nil {
		return "", err
	}
	token, _, err := b.signer.Sign(key, ttl)
	if err != nil {
		return "", err
	}
	return b.publicBase + b.URLFor(key) + "?token=" + url.QueryEscape(token), nil
}

// Close is a no-op for local backends.
func (b *LocalBackend) Close() error { return nil }
