package storage

import (
	"context"
	"fmt"

	"k8s.io/klog/v2"

	"github.com/georgepadayatti/contractpdf/config"
)

// Open creates the backend selected by cfg.Type, wrapped with retries.
func Open(ctx context.Context, cfg config.StorageConfig) (Store, error) {
	var (
		store Store
		err   error
	)
	switch cfg.Type {
	case config.StorageFilesystem:
		store, err = NewFileStore(cfg.Root)
	case config.StorageMemory:
		return NewMemoryStore(), nil
	case config.StorageS3:
		store, err = NewS3Store(ctx, S3Config{
			Bucket:          cfg.Bucket,
			Prefix:          cfg.Prefix,
			Region:          cfg.Region,
			AccessKeyID:     cfg.AccessKeyID,
			SecretAccessKey: cfg.SecretAccessKey,
			Endpoint:        cfg.Endpoint,
			PresignExpiry:   cfg.PresignExpiry,
		})
	case config.StorageGCS:
		store, err = NewGCSStore(ctx, GCSConfig{
			Bucket:          cfg.Bucket,
			Prefix:          cfg.Prefix,
			CredentialsFile: cfg.GCSCredentialsFile,
		})
	case config.StorageAzure:
		store, err = NewAzureStore(AzureConfig{
			Container:        cfg.Bucket,
			Prefix:           cfg.Prefix,
			AccountName:      cfg.AzureAccount,
			ConnectionString: cfg.AzureConnectionString,
		})
	case config.StorageRedis:
		store, err = NewRedisStore(ctx, RedisConfig{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
			Prefix:   cfg.Prefix,
		})
	default:
		return nil, fmt.Errorf("unknown storage type %q", cfg.Type)
	}
	if err != nil {
		return nil, err
	}

	klog.InfoS("Opened blob store", "type", cfg.Type, "bucket", cfg.Bucket, "root", cfg.Root)
	return WithRetry(store, cfg.Retry), nil
}
