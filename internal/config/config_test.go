package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("STORAGE_TYPE", "")
	t.Setenv("SIGNED_URL_TTL", "")
	t.Setenv("PROXY_SIGNED_URL_TTL", "")

	cfg := Load()

	assert.Equal(t, "local", cfg.StorageType)
	assert.Equal(t, "/uploads", cfg.LocalMount)
	assert.Equal(t, 15*time.Minute, cfg.SignedURLTTL)
	assert.Equal(t, 2*time.Hour, cfg.ProxySignedURLTTL)
	assert.Equal(t, 30*time.Second, cfg.ThumbnailTimeout)
	assert.Equal(t, 4, cfg.StorageWorkers)
	assert.False(t, cfg.IsRemote())
	require.NoError(t, cfg.Validate())
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("STORAGE_TYPE", "Remote-Blob")
	t.Setenv("SIGNED_URL_TTL", "300")
	t.Setenv("PROXY_SIGNED_URL_TTL", "90m")
	t.Setenv("STORAGE_WORKERS", "8")
	t.Setenv("STORAGE_USE_SSL", "true")
	t.Setenv("PROXY_CACHE_MAX_AGE", "0s")

	cfg := Load()

	assert.True(t, cfg.IsRemote())
	assert.Equal(t, 5*time.Minute, cfg.SignedURLTTL)
	assert.Equal(t, 90*time.Minute, cfg.ProxySignedURLTTL)
	assert.Equal(t, 8, cfg.StorageWorkers)
	assert.True(t, cfg.StorageUseSSL)
	assert.Zero(t, cfg.ProxyCacheMaxAge)
}

func TestLoadIgnoresMalformedValues(t *testing.T) {
	t.Setenv("STORAGE_WORKERS", "many")
	t.Setenv("THUMBNAIL_TIMEOUT", "soon")

	cfg := Load()

	assert.Equal(t, 4, cfg.StorageWorkers)
	assert.Equal(t, 30*time.Second, cfg.ThumbnailTimeout)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{name: "ok", mutate: func(*Config) {}},
		{name: "unknown backend", mutate: func(c *Config) { c.StorageType = "ftp" }, wantErr: true},
		{name: "zero ttl", mutate: func(c *Config) { c.SignedURLTTL = 0 }, wantErr: true},
		{name: "no workers", mutate: func(c *Config) { c.ThumbnailWorkers = 0 }, wantErr: true},
		{
			name: "default secret in production",
			mutate: func(c *Config) {
				c.AppEnv = "production"
				c.LocalSigningSecret = devSigningSecret
			},
			wantErr: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &Config{
				AppEnv:             "development",
				StorageType:        "local",
				LocalSigningSecret: "s3cret",
				SignedURLTTL:       time.Minute,
				ProxySignedURLTTL:  time.Hour,
				ThumbnailTimeout:   time.Second,
				StorageWorkers:     1,
				ThumbnailWorkers:   1,
			}
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
