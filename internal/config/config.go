// Package config loads application configuration from environment variables.
package config

import (
	"errors"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const devSigningSecret = "change_me_in_production"

// Config holds all runtime configuration for the service.
type Config struct {
	Port      string
	AppEnv    string
	LogLevel  string
	LogFormat string

	// Backend selection: "local" or "remote" (S3-compatible blob store).
	StorageType string

	LocalStoragePath   string
	LocalMount         string
	LocalPublicBaseURL string // absolute base used when issuing local signed URLs
	LocalSigningSecret string
	LocalSignedOnly    bool

	// Remote blob storage (MinIO locally, any S3-compatible provider in production)
	StorageEndpoint   string
	StorageAccessKey  string
	StorageSecretKey  string
	StorageBucket     string
	StorageRegion     string
	StorageUseSSL     bool
	StoragePublicBase string // canonical base, e.g. "http://localhost:9000/media"
	StorageWorkers    int

	// Signed URL profiles
	SignedURLTTL      time.Duration // handed to clients
	ProxySignedURLTTL time.Duration // used by the proxy for its own fetch

	ProxyCacheMaxAge time.Duration
	ProxyTimeout     time.Duration
	ProxyMaxBytes    int64

	FFmpegPath       string
	ThumbnailTimeout time.Duration
	ThumbnailWorkers int
	ThumbnailTempDir string

	UploadMaxBytes int64
}

// Load reads configuration from a .env file (if present) and environment variables.
func Load() *Config {
	if err := godotenv.Load(); err != nil {
		log.Println("no .env file found, reading from environment")
	}

	appEnv := getEnv("APP_ENV", "development")
	logFormat := "console"
	if appEnv == "production" {
		logFormat = "json"
	}

	return &Config{
		Port:      getEnv("PORT", "8080"),
		AppEnv:    appEnv,
		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", logFormat),

		StorageType: strings.ToLower(getEnv("STORAGE_TYPE", "local")),

		LocalStoragePath:   getEnv("LOCAL_STORAGE_PATH", "./uploads"),
		LocalMount:         getEnv("LOCAL_MOUNT", "/uploads"),
		LocalPublicBaseURL: getEnv("LOCAL_PUBLIC_BASE_URL", "http://localhost:8080"),
		LocalSigningSecret: getEnv("LOCAL_SIGNING_SECRET", devSigningSecret),
		LocalSignedOnly:    getBool("LOCAL_SIGNED_ONLY", false),

		StorageEndpoint:   getEnv("STORAGE_ENDPOINT", "localhost:9000"),
		StorageAccessKey:  os.Getenv("STORAGE_ACCESS_KEY"),
		StorageSecretKey:  os.Getenv("STORAGE_SECRET_KEY"),
		StorageBucket:     getEnv("STORAGE_BUCKET", "media"),
		StorageRegion:     getEnv("STORAGE_REGION", "us-east-1"),
		StorageUseSSL:     getBool("STORAGE_USE_SSL", false),
		StoragePublicBase: os.Getenv("STORAGE_PUBLIC_BASE"),
		StorageWorkers:    getInt("STORAGE_WORKERS", 4),

		SignedURLTTL:      getDuration("SIGNED_URL_TTL", 15*time.Minute),
		ProxySignedURLTTL: getDuration("PROXY_SIGNED_URL_TTL", 2*time.Hour),

		ProxyCacheMaxAge: getDuration("PROXY_CACHE_MAX_AGE", time.Hour),
		ProxyTimeout:     getDuration("PROXY_TIMEOUT", 30*time.Second),
		ProxyMaxBytes:    getInt64("PROXY_MAX_BYTES", 512<<20),

		FFmpegPath:       getEnv("FFMPEG_PATH", "ffmpeg"),
		ThumbnailTimeout: getDuration("THUMBNAIL_TIMEOUT", 30*time.Second),
		ThumbnailWorkers: getInt("THUMBNAIL_WORKERS", 2),
		ThumbnailTempDir: os.Getenv("THUMBNAIL_TEMP_DIR"),

		UploadMaxBytes: getInt64("UPLOAD_MAX_BYTES", 512<<20),
	}
}

// IsProduction returns true when the app is running in production mode.
func (c *Config) IsProduction() bool {
	return c.AppEnv == "production"
}

// IsRemote reports whether the remote blob backend is selected.
func (c *Config) IsRemote() bool {
	switch c.StorageType {
	case "remote", "remote-blob", "minio", "s3":
		return true
	}
	return false
}

// Validate checks settings that would otherwise fail on the first request.
func (c *Config) Validate() error {
	var errs []error
	switch {
	case c.IsRemote():
	case c.StorageType == "local":
	default:
		errs = append(errs, fmt.Errorf("unknown STORAGE_TYPE %q", c.StorageType))
	}
	if c.SignedURLTTL <= 0 || c.ProxySignedURLTTL <= 0 {
		errs = append(errs, errors.New("signed URL TTLs must be positive"))
	}
	if c.ThumbnailTimeout <= 0 {
		errs = append(errs, errors.New("THUMBNAIL_TIMEOUT must be positive"))
	}
	if c.StorageWorkers <= 0 || c.ThumbnailWorkers <= 0 {
		errs = append(errs, errors.New("worker counts must be positive"))
	}
	if c.IsProduction() && c.StorageType == "local" && c.LocalSigningSecret == devSigningSecret {
		errs = append(errs, errors.New("LOCAL_SIGNING_SECRET must be set in production"))
	}
	return errors.Join(errs...)
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getBool(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		log.Printf("config: invalid %s=%q, using %v", key, v, fallback)
		return fallback
	}
	return b
}

func getInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		log.Printf("config: invalid %s=%q, using %d", key, v, fallback)
		return fallback
	}
	return n
}

func getInt64(key string, fallback int64) int64 {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		log.Printf("config: invalid %s=%q, using %d", key, v, fallback)
		return fallback
	}
	return n
}

// getDuration accepts Go duration strings ("90s", "2h") or a bare number of seconds.
func getDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	if d, err := time.ParseDuration(v); err == nil {
		return d
	}
	if n, err := strconv.Atoi(v); err == nil {
		return time.Duration(n) * time.Second
	}
	log.Printf("config: invalid %s=%q, using %s", key, v, fallback)
	return fallback
}
