// Package storage defines the Backend interface for blob storage and the
// Service façade that maps upload intents onto it.
// Two backends exist: the local filesystem and an S3-compatible blob store
// (MinIO locally, any S3-compatible provider in production). One is selected
// at startup from configuration.
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"strings"
	"time"
)

var (
	// ErrInvalidMediaType is returned when a declared content type does not match the media kind.
	ErrInvalidMediaType = errors.New("declared content type does not match media kind")
	// ErrObjectNotFound is returned when a lookup misses.
	ErrObjectNotFound = errors.New("object not found")
	// ErrBackendUnavailable is returned when a backend cannot be constructed or reached.
	ErrBackendUnavailable = errors.New("storage backend unavailable")
	// ErrInvalidReference is returned for URLs that do not name an object of this backend.
	ErrInvalidReference = errors.New("invalid object reference")
	// ErrInvalidKey is returned for object keys that are not a single safe path segment.
	ErrInvalidKey = errors.New("invalid object key")
	// ErrInvalidIdentifier is returned when unique naming gets an unusable identifier.
	ErrInvalidIdentifier = errors.New("invalid naming identifier")
)

// Kind identifies a backend variant.
type Kind string

const (
	KindLocal  Kind = "local"
	KindRemote Kind = "remote"
)

// MediaKind is the declared kind of an upload.
type MediaKind string

const (
	Video MediaKind = "video"
	Image MediaKind = "image"
)

// ParseMediaKind parses "video" or "image".
func ParseMediaKind(s string) (MediaKind, error) {
	switch MediaKind(strings.ToLower(strings.TrimSpace(s))) {
	case Video:
		return Video, nil
	case Image:
		return Image, nil
	}
	return "", fmt.Errorf("%w: unknown kind %q", ErrInvalidMediaType, s)
}

// ContentTypeFor returns the content type stored for a media kind.
func ContentTypeFor(kind MediaKind) string {
	if kind == Image {
		return "image/jpeg"
	}
	return "video/mp4"
}

// ValidateDeclaredType checks a client-declared content type (e.g. a multipart
// part header) against kind. Bytes are never sniffed; an empty declaration
// passes because the stored type is always derived from kind.
func ValidateDeclaredType(kind MediaKind, declared string) error {
	if declared == "" {
		return nil
	}
	mt, _, err := mime.ParseMediaType(declared)
	if err != nil {
		return fmt.Errorf("%w: %q", ErrInvalidMediaType, declared)
	}
	if !strings.HasPrefix(mt, string(kind)+"/") {
		return fmt.Errorf("%w: %q is not %s", ErrInvalidMediaType, declared, kind)
	}
	return nil
}

// NamingMode selects how an object key is chosen.
type NamingMode string

const (
	// Unique derives the key from a timestamp, an identifier and the original extension.
	Unique NamingMode = "unique"
	// Exact uses the caller's key verbatim and overwrites any existing object.
	Exact NamingMode = "exact"
)

// UploadPolicy describes one upload.
type UploadPolicy struct {
	Naming      NamingMode
	Kind        MediaKind
	ContentType string
}

// StoredObject is the result of a successful upload. It is never modified
// after being returned.
type StoredObject struct {
	Backend     Kind   `json:"backend"`
	Container   string `json:"container"`
	ObjectKey   string `json:"object_key"`
	ContentType string `json:"content_type"`
	URL         string `json:"url"`
}

// Backend is the interface for blob storage backends.
type Backend interface {
	// Kind returns the backend variant.
	Kind() Kind

	// Container returns the bucket name or root directory.
	Container() string

	// Put stores body under key, overwriting any existing object.
	// size may be -1 when unknown. contentType is supplied by the caller.
	Put(ctx context.Context, key string, body io.Reader, size int64, contentType string) (*StoredObject, error)

	// Delete removes the object named by ref (canonical URL or bare key).
	// It reports false with a nil error when the object is absent.
	Delete(ctx context.Context, ref string) (bool, error)

	// Exists checks if an object exists at key.
	Exists(ctx context.Context, key string) (bool, error)

	// URLFor returns the canonical URL for key. It never embeds credentials.
	URLFor(key string) string

	// KeyFromURL extracts the object key from a canonical URL of this backend.
	// Any query string (including stale signatures) is ignored.
	KeyFromURL(ref string) (string, error)

	// PresignGet returns a read-only URL for key that expires after ttl.
	PresignGet(ctx context.Context, key string, ttl time.Duration) (string, error)

	// Close releases any resources held by the backend.
	Close() error
}

// ValidateKey checks that key is a single, non-empty path segment.
func ValidateKey(key string) error {
	switch {
	case key == "", key == ".", key == "..":
		return fmt.Errorf("%w: %q", ErrInvalidKey, key)
	case len(key) > 255:
		return fmt.Errorf("%w: longer than 255 bytes", ErrInvalidKey)
	case strings.ContainsAny(key, "/\\?#"):
		return fmt.Errorf("%w: %q contains a separator", ErrInvalidKey, key)
	}
	for _, r := range key {
		if r < 0x20 || r == 0x7f {
			return fmt.Errorf("%w: control character", ErrInvalidKey)
		}
	}
	return nil
}

// resolveRef accepts either a bare key or a canonical URL of b.
func resolveRef(b Backend, ref string) (string, error) {
	if ValidateKey(ref) == nil {
		return ref, nil
	}
	return b.KeyFromURL(ref)
}

// keyUnder returns the remainder of path after prefix+"/" if it is a valid key.
func keyUnder(path, prefix string) (string, error) {
	rest, ok := strings.CutPrefix(path, strings.TrimRight(prefix, "/")+"/")
	if !ok {
		return "", fmt.Errorf("%w: %q is outside %q", ErrInvalidReference, path, prefix)
	}
	if err := ValidateKey(rest); err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidReference, err)
	}
	return rest, nil
}
