// Package proxy relays stored objects to clients through the application's
// own origin. Each fetch resolves the reference to a key of the configured
// backend, mints a fresh signed URL and streams the object back.
package proxy

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/swinglab/mediacore/internal/logging"
	"github.com/swinglab/mediacore/internal/metrics"
	"github.com/swinglab/mediacore/internal/signedurl"
	"github.com/swinglab/mediacore/internal/storage"
)

var (
	// ErrUpstreamFetchFailed is returned when the store could not be read.
	ErrUpstreamFetchFailed = errors.New("upstream fetch failed")
	// ErrResponseTooLarge is returned when an object exceeds the relay limit.
	ErrResponseTooLarge = errors.New("upstream response exceeds limit")
)

const (
	// DefaultMaxBytes caps a single relayed object.
	DefaultMaxBytes int64 = 512 << 20
	// DefaultTimeout bounds the outbound request.
	DefaultTimeout = 30 * time.Second

	noCache = "no-cache, no-store, must-revalidate"
)

// Locator resolves a reference (canonical URL or bare key) to an object key.
type Locator interface {
	KeyFromURL(ref string) (string, error)
}

// Granter issues read grants for object keys.
type Granter interface {
	Issue(ctx context.Context, key string) (*signedurl.Grant, error)
}

// CachePolicy decides the Cache-Control header for relayed responses.
// Media (image/*, video/*) is cacheable for MaxAge; everything else, or a
// zero MaxAge, is marked uncacheable.
type CachePolicy struct {
	MaxAge time.Duration
}

// HeaderFor returns the Cache-Control value for contentType.
func (p CachePolicy) HeaderFor(contentType string) string {
	if p.MaxAge <= 0 {
		return noCache
	}
	mt, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return noCache
	}
	if strings.HasPrefix(mt, "image/") || strings.HasPrefix(mt, "video/") {
		return "public, max-age=" + strconv.FormatInt(int64(p.MaxAge/time.Second), 10)
	}
	return noCache
}

// Config configures a Proxy.
type Config struct {
	Locator  Locator
	Grants   Granter
	Client   *http.Client // defaults to a client with DefaultTimeout
	Cache    CachePolicy
	MaxBytes int64 // defaults to DefaultMaxBytes
}

// Proxy fetches objects on behalf of clients.
type Proxy struct {
	locator  Locator
	grants   Granter
	client   *http.Client
	cache    CachePolicy
	maxBytes int64
}

// Result is a relayed object.
type Result struct {
	Body         []byte
	ContentType  string
	CacheControl string
}

// New creates a Proxy.
func New(cfg Config) *Proxy {
	client := cfg.Client
	if client == nil {
		client = &http.Client{Timeout: DefaultTimeout}
	}
	maxBytes := cfg.MaxBytes
	if maxBytes <= 0 {
		maxBytes = DefaultMaxBytes
	}
	return &Proxy{
		locator:  cfg.Locator,
		grants:   cfg.Grants,
		client:   client,
		cache:    cfg.Cache,
		maxBytes: maxBytes,
	}
}

// Fetch relays the object named by ref. Any signature or token already on
// ref is discarded; a new grant is issued for every call.
func (p *Proxy) Fetch(ctx context.Context, ref string) (*Result, error) {
	res, err := p.fetch(ctx, ref)
	switch {
	case err == nil:
		metrics.RecordProxyFetch("ok", len(res.Body))
	case errors.Is(err, storage.ErrInvalidReference):
		metrics.RecordProxyFetch("invalid", 0)
	case errors.Is(err, storage.ErrObjectNotFound):
		metrics.RecordProxyFetch("not_found", 0)
	default:
		metrics.RecordProxyFetch("error", 0)
		logging.WithContext(ctx).Error("proxy fetch failed", zap.String("ref", ref), zap.Error(err))
	}
	return res, err
}

func (p *Proxy) fetch(ctx context.Context, ref string) (*Result, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return nil, fmt.Errorf("%w: empty reference", storage.ErrInvalidReference)
	}
	key, err := p.locator.KeyFromURL(ref)
	if err != nil {
		if !errors.Is(err, storage.ErrInvalidReference) {
			err = fmt.Errorf("%w: %v", storage.ErrInvalidReference, err)
		}
		return nil, err
	}

	grant, err := p.grants.Issue(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("%w: issue grant for %q: %v", ErrUpstreamFetchFailed, key, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, grant.URL, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: build request: %v", ErrUpstreamFetchFailed, err)
	}
	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUpstreamFetchFailed, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, fmt.Errorf("%w: %s", storage.ErrObjectNotFound, key)
	case resp.StatusCode == http.StatusForbidden && isNoSuchKey(resp.Body):
		// S3 reports missing keys as 403 when the signer may not list the bucket.
		return nil, fmt.Errorf("%w: %s", storage.ErrObjectNotFound, key)
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		return nil, fmt.Errorf("%w: upstream status %d", ErrUpstreamFetchFailed, resp.StatusCode)
	}
	if resp.ContentLength > p.maxBytes {
		return nil, fmt.Errorf("%w: %w (%d bytes)", ErrUpstreamFetchFailed, ErrResponseTooLarge, resp.ContentLength)
	}

	body, err := readAllWithLimit(resp.Body, p.maxBytes)
	if err != nil {
		return nil, fmt.Errorf("%w: read body: %w", ErrUpstreamFetchFailed, err)
	}

	contentType := resp.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	return &Result{
		Body:         body,
		ContentType:  contentType,
		CacheControl: p.cache.HeaderFor(contentType),
	}, nil
}

func isNoSuchKey(body io.Reader) bool {
	head, _ := io.ReadAll(io.LimitReader(body, 4<<10))
	return bytes.Contains(head, []byte("<Code>NoSuchKey</Code>"))
}

func readAllWithLimit(r io.Reader, limit int64) ([]byte, error) {
	lr := &io.LimitedReader{R: r, N: limit + 1}
	data, err := io.ReadAll(lr)
	if err != nil {
		return nil, err
	}
	if int64(len(data)) > limit {
		return nil, ErrResponseTooLarge
	}
	return data, nil
}
