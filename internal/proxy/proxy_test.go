package proxy

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/swinglab/mediacore/internal/signedurl"
	"github.com/swinglab/mediacore/internal/storage"
)

type countingGranter struct {
	inner  Granter
	issued atomic.Int32
}

func (g *countingGranter) Issue(ctx context.Context, key string) (*signedurl.Grant, error) {
	g.issued.Add(1)
	return g.inner.Issue(ctx, key)
}

type staticGranter string

func (s staticGranter) Issue(_ context.Context, key string) (*signedurl.Grant, error) {
	return &signedurl.Grant{ObjectKey: key, URL: string(s), ExpiresAt: time.Now().Add(time.Hour)}, nil
}

type fixture struct {
	svc     *storage.Service
	grants  *countingGranter
	proxy   *Proxy
	baseURL string
}

// newFixture serves a local backend in signed-only mode so every relayed
// read must carry a valid grant.
func newFixture(t *testing.T) *fixture {
	t.Helper()
	mux := http.NewServeMux()
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	local, err := storage.NewLocal(storage.LocalConfig{
		RootPath:      t.TempDir(),
		Mount:         "/uploads",
		PublicBaseURL: srv.URL,
		SigningSecret: "proxy-test",
	})
	require.NoError(t, err)
	mux.Handle("/uploads/", local.FileHandler(true))

	svc := storage.NewService(local)
	grants := &countingGranter{inner: signedurl.NewIssuer(local).Profile("proxy", 2*time.Hour)}
	return &fixture{
		svc:    svc,
		grants: grants,
		proxy: New(Config{
			Locator: svc,
			Grants:  grants,
			Client:  srv.Client(),
			Cache:   CachePolicy{MaxAge: time.Hour},
		}),
		baseURL: srv.URL,
	}
}

func TestFetchRelaysObject(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	obj, err := f.svc.UploadImageExact(ctx, strings.NewReader("jpeg-bytes"), -1, "thumb.jpg")
	require.NoError(t, err)

	res, err := f.proxy.Fetch(ctx, obj.URL)
	require.NoError(t, err)
	assert.Equal(t, "jpeg-bytes", string(res.Body))
	assert.Equal(t, "image/jpeg", res.ContentType)
	assert.Equal(t, "public, max-age=3600", res.CacheControl)
}

func TestFetchIssuesFreshGrantEachTime(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	obj, err := f.svc.UploadImageExact(ctx, strings.NewReader("x"), -1, "a.jpg")
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		_, err := f.proxy.Fetch(ctx, obj.URL)
		require.NoError(t, err)
	}
	assert.Equal(t, int32(3), f.grants.issued.Load())
}

func TestFetchIgnoresCallerToken(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, err := f.svc.UploadImageExact(ctx, strings.NewReader("x"), -1, "a.jpg")
	require.NoError(t, err)

	res, err := f.proxy.Fetch(ctx, f.baseURL+"/uploads/a.jpg?token=stale.garbage.token")
	require.NoError(t, err)
	assert.Equal(t, "x", string(res.Body))
}

func TestFetchNotFound(t *testing.T) {
	f := newFixture(t)

	_, err := f.proxy.Fetch(context.Background(), "/uploads/missing.mp4")
	assert.True(t, errors.Is(err, storage.ErrObjectNotFound), "got %v", err)
}

func TestFetchInvalidReference(t *testing.T) {
	f := newFixture(t)

	for _, ref := range []string{"", "   ", "https://evil.example.com/uploads/a.jpg", "/other/a.jpg", "/uploads/../../etc/passwd"} {
		_, err := f.proxy.Fetch(context.Background(), ref)
		assert.True(t, errors.Is(err, storage.ErrInvalidReference), "ref %q: %v", ref, err)
	}
	assert.Equal(t, int32(0), f.grants.issued.Load())
}

func TestFetchUpstreamFailure(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer upstream.Close()

	local, err := storage.NewLocal(storage.LocalConfig{RootPath: t.TempDir(), SigningSecret: "s"})
	require.NoError(t, err)
	p := New(Config{Locator: local, Grants: staticGranter(upstream.URL + "/x")})

	_, err = p.Fetch(context.Background(), "/uploads/a.mp4")
	assert.True(t, errors.Is(err, ErrUpstreamFetchFailed), "got %v", err)
}

func TestFetchForbiddenNoSuchKey(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/xml")
		w.WriteHeader(http.StatusForbidden)
		_, _ = w.Write([]byte(`<?xml version="1.0" encoding="UTF-8"?><Error><Code>NoSuchKey</Code></Error>`))
	}))
	defer upstream.Close()

	local, err := storage.NewLocal(storage.LocalConfig{RootPath: t.TempDir(), SigningSecret: "s"})
	require.NoError(t, err)
	p := New(Config{Locator: local, Grants: staticGranter(upstream.URL + "/x")})

	_, err = p.Fetch(context.Background(), "/uploads/a.mp4")
	assert.True(t, errors.Is(err, storage.ErrObjectNotFound), "got %v", err)
}

func TestFetchUnreachableUpstream(t *testing.T) {
	local, err := storage.NewLocal(storage.LocalConfig{RootPath: t.TempDir(), SigningSecret: "s"})
	require.NoError(t, err)
	p := New(Config{
		Locator: local,
		Grants:  staticGranter("http://127.0.0.1:1/x"),
		Client:  &http.Client{Timeout: time.Second},
	})

	_, err = p.Fetch(context.Background(), "/uploads/a.mp4")
	assert.True(t, errors.Is(err, ErrUpstreamFetchFailed), "got %v", err)
}

func TestFetchEnforcesSizeLimit(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, err := f.svc.UploadImageExact(ctx, strings.NewReader("0123456789"), -1, "big.jpg")
	require.NoError(t, err)

	p := New(Config{Locator: f.svc, Grants: f.grants, MaxBytes: 4})
	_, err = p.Fetch(ctx, "/uploads/big.jpg")
	assert.True(t, errors.Is(err, ErrUpstreamFetchFailed))
	assert.True(t, errors.Is(err, ErrResponseTooLarge))
}

func TestCachePolicy(t *testing.T) {
	tests := []struct {
		maxAge      time.Duration
		contentType string
		want        string
	}{
		{time.Hour, "video/mp4", "public, max-age=3600"},
		{time.Hour, "image/jpeg", "public, max-age=3600"},
		{2 * time.Minute, "image/png; charset=binary", "public, max-age=120"},
		{time.Hour, "application/json", noCache},
		{time.Hour, "text/plain; charset=utf-8", noCache},
		{time.Hour, "", noCache},
		{0, "video/mp4", noCache},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, CachePolicy{MaxAge: tt.maxAge}.HeaderFor(tt.contentType), "%s %s", tt.maxAge, tt.contentType)
	}
}

func TestHandler(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	obj, err := f.svc.UploadVideo(ctx, strings.NewReader("mp4-bytes"), -1, "clip.mp4", "U1")
	require.NoError(t, err)

	r := chi.NewRouter()
	r.Route("/api/v1/proxy", NewHandler(f.proxy).Routes)

	tests := []struct {
		name       string
		target     string
		wantStatus int
	}{
		{"path reference", "/api/v1/proxy/" + url.PathEscape(obj.URL), http.StatusOK},
		{"absolute path reference", "/api/v1/proxy/" + url.PathEscape(f.baseURL+obj.URL), http.StatusOK},
		{"query reference", "/api/v1/proxy?url=" + url.QueryEscape(obj.URL), http.StatusOK},
		{"missing object", "/api/v1/proxy/" + url.PathEscape("/uploads/none.mp4"), http.StatusNotFound},
		{"foreign reference", "/api/v1/proxy?url=" + url.QueryEscape("https://evil.example.com/x.mp4"), http.StatusBadRequest},
		{"empty reference", "/api/v1/proxy/", http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, tt.target, nil))
			assert.Equal(t, tt.wantStatus, rec.Code, rec.Body.String())
			if tt.wantStatus == http.StatusOK {
				assert.Equal(t, "mp4-bytes", rec.Body.String())
				assert.Equal(t, "video/mp4", rec.Header().Get("Content-Type"))
				assert.Equal(t, "public, max-age=3600", rec.Header().Get("Cache-Control"))
			}
		})
	}
}
