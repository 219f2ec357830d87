package storage

import (
	"context"
	"fmt"
	"strings"

	"github.com/swinglab/mediacore/internal/config"
)

// NewBackendFromConfig creates the backend selected by cfg.StorageType.
func NewBackendFromConfig(ctx context.Context, cfg *config.Config) (Backend, error) {
	switch strings.ToLower(cfg.StorageType) {
	case "local", "":
		return NewLocal(LocalConfig{
			RootPath:      cfg.LocalStoragePath,
			Mount:         cfg.LocalMount,
			PublicBaseURL: cfg.LocalPublicBaseURL,
			SigningSecret: cfg.LocalSigningSecret,
		})
	case "remote", "remote-blob", "minio", "s3":
		return NewRemote(ctx, RemoteConfig{
			Endpoint:   cfg.StorageEndpoint,
			AccessKey:  cfg.StorageAccessKey,
			SecretKey:  cfg.StorageSecretKey,
			Bucket:     cfg.StorageBucket,
			Region:     cfg.StorageRegion,
			UseSSL:     cfg.StorageUseSSL,
			PublicBase: cfg.StoragePublicBase,
			Workers:    cfg.StorageWorkers,
		})
	default:
		return nil, fmt.Errorf("unknown storage type: %s", cfg.StorageType)
	}
}
