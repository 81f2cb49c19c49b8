package storage

import (
	"context"
	"io"
	"time"
)

// Source defines read access to the source object store.
type Source interface {
	// ListObjects lazily lists all objects under prefix. Both channels are
	// closed when the listing is exhausted; a listing is not restartable.
	ListObjects(ctx context.Context, container, prefix string) (<-chan ObjectInfo, <-chan error)
	GetObject(ctx context.Context, container, key string) (io.ReadCloser, error)
	HeadObject(ctx context.Context, container, key string) (ObjectInfo, error)
}

// Destination defines write access to the destination object store.
type Destination interface {
	BucketExists(ctx context.Context, bucket string) (bool, error)
	HeadObject(ctx context.Context, bucket, key string) (ObjectInfo, error)
	PutObject(ctx context.Context, bucket, key string, reader io.Reader, size int64, opts PutOptions) error
	CountObjects(ctx context.Context, bucket string) (int64, error)
}

// ObjectInfo contains object metadata
type ObjectInfo struct {
	Key          string
	Size         int64
	ETag         string
	LastModified time.Time
	ContentType  string
	Metadata     map[string]string
}

// PutOptions contains options for put operations
type PutOptions struct {
	ContentType string
	Metadata    map[string]string
}

// Config contains client configuration
type Config struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Region    string
	Secure    bool
}
