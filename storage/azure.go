package storage

import (
	"bytes"
	"context"
	"fmt"

	"github.com/Azure/azure-sdk-for-go/sdk/azidentity"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/blob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/bloberror"
)

// AzureConfig configures the Blob Storage store.
type AzureConfig struct {
	Container        string
	Prefix           string
	AccountName      string
	ConnectionString string // uses DefaultAzureCredential if empty
}

// AzureStore keeps blobs in a Blob Storage container.
type AzureStore struct {
	client    *azblob.Client
	container string
	prefix    string
}

// NewAzureStore creates a Blob Storage store.
func NewAzureStore(cfg AzureConfig) (*AzureStore, error) {
	if cfg.AccountName == "" && cfg.ConnectionString == "" {
		return nil, fmt.Errorf("account name or connection string is required")
	}

	var client *azblob.Client
	if cfg.ConnectionString != "" {
		c, err := azblob.NewClientFromConnectionString(cfg.ConnectionString, nil)
		if err != nil {
			return nil, fmt.Errorf("failed to create client from connection string: %w", err)
		}
		client = c
	} else {
		serviceURL := fmt.Sprintf("https://%s.blob.core.windows.net/", cfg.AccountName)
		cred, err := azidentity.NewDefaultAzureCredential(nil)
		if err != nil {
			return nil, fmt.Errorf("failed to create default credential: %w", err)
		}
		c, err := azblob.NewClient(serviceURL, cred, nil)
		if err != nil {
			return nil, fmt.Errorf("failed to create client with default credential: %w", err)
		}
		client = c
	}

	return &AzureStore{client: client, container: cfg.Container, prefix: cfg.Prefix}, nil
}

func (s *AzureStore) Get(ctx context.Context, key string) ([]byte, error) {
	key, err := cleanKey(s.prefix, key)
	if err != nil {
		return nil, err
	}
	resp, err := s.client.DownloadStream(ctx, s.container, key, nil)
	if err != nil {
		if bloberror.HasCode(err, bloberror.BlobNotFound, bloberror.ContainerNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to download blob: %w", err)
	}
	defer resp.Body.Close()

	var buf bytes.Buffer
	if _, err := buf.ReadFrom(resp.Body); err != nil {
		return nil, fmt.Errorf("failed to read blob: %w", err)
	}
	return buf.Bytes(), nil
}

func (s *AzureStore) Put(ctx context.Context, key string, data []byte, contentType string) (Reference, error) {
	key, err := cleanKey(s.prefix, key)
	if err != nil {
		return Reference{}, err
	}
	opts := &azblob.UploadBufferOptions{}
	if contentType != "" {
		opts.HTTPHeaders = &blob.HTTPHeaders{BlobContentType: &contentType}
	}
	if _, err := s.client.UploadBuffer(ctx, s.container, key, data, opts); err != nil {
		return Reference{}, fmt.Errorf("failed to upload blob: %w", err)
	}

	blobURL := s.client.ServiceClient().NewContainerClient(s.container).NewBlobClient(key).URL()
	return Reference{Key: key, URL: blobURL}, nil
}

func (s *AzureStore) Close() error { return nil }
