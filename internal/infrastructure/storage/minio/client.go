package minio

import (
	"context"
	"io"
	"sync"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/turtacn/molsearch/internal/config"
	"github.com/turtacn/molsearch/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/molsearch/pkg/errors"
)

var ErrClientClosed = errors.New(errors.CodeUnavailable, "minio client is closed")

// MinIOAPI is the subset of the object-store API used here.  GetObject is
// replaced by Fetch because *minio.Object cannot be built outside a live
// connection.
type MinIOAPI interface {
	BucketExists(ctx context.Context, bucketName string) (bool, error)
	MakeBucket(ctx context.Context, bucketName string, opts minio.MakeBucketOptions) error
	PutObject(ctx context.Context, bucketName, objectName string, reader io.Reader, objectSize int64, opts minio.PutObjectOptions) (minio.UploadInfo, error)
	StatObject(ctx context.Context, bucketName, objectName string, opts minio.StatObjectOptions) (minio.ObjectInfo, error)
	RemoveObject(ctx context.Context, bucketName, objectName string, opts minio.RemoveObjectOptions) error
	Fetch(ctx context.Context, bucketName, objectName string) (io.ReadCloser, error)
}

type sdkAPI struct {
	*minio.Client
}

func (a sdkAPI) Fetch(ctx context.Context, bucketName, objectName string) (io.ReadCloser, error) {
	return a.GetObject(ctx, bucketName, objectName, minio.GetObjectOptions{})
}

// MinIOClient owns the connection and the bucket holding molsearch objects.
type MinIOClient struct {
	client MinIOAPI
	config config.MinIOConfig
	logger logging.Logger
	mu     sync.RWMutex
	closed bool
}

// NewMinIOClient connects to the endpoint and creates the bucket if needed.
func NewMinIOClient(cfg config.MinIOConfig, log logging.Logger) (*MinIOClient, error) {
	applyDefaults(&cfg)

	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeStorage, "failed to create minio client")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	c, err := NewMinIOClientWithAPI(ctx, sdkAPI{client}, cfg, log)
	if err != nil {
		return nil, err
	}
	log.Info("MinIO client connected",
		logging.String("endpoint", cfg.Endpoint),
		logging.String("bucket", cfg.Bucket),
		logging.Bool("ssl", cfg.UseSSL))
	return c, nil
}

// NewMinIOClientWithAPI wraps an existing API implementation.
func NewMinIOClientWithAPI(ctx context.Context, api MinIOAPI, cfg config.MinIOConfig, log logging.Logger) (*MinIOClient, error) {
	if log == nil {
		log = logging.NewNopLogger()
	}
	applyDefaults(&cfg)
	c := &MinIOClient{client: api, config: cfg, logger: log}
	if err := c.EnsureBucket(ctx); err != nil {
		return nil, err
	}
	return c, nil
}

func applyDefaults(cfg *config.MinIOConfig) {
	if cfg.Bucket == "" {
		cfg.Bucket = "molsearch"
	}
	if cfg.ObjectKey == "" {
		cfg.ObjectKey = "codebooks/current.json.zst"
	}
}

// EnsureBucket creates the configured bucket unless it exists.
func (c *MinIOClient) EnsureBucket(ctx context.Context) error {
	exists, err := c.client.BucketExists(ctx, c.config.Bucket)
	if err != nil {
		return errors.Wrap(err, errors.CodeUnavailable, "failed to connect to minio")
	}
	if exists {
		return nil
	}
	if err := c.client.MakeBucket(ctx, c.config.Bucket, minio.MakeBucketOptions{}); err != nil {
		return errors.Wrapf(err, errors.CodeStorage, "failed to create bucket %s", c.config.Bucket)
	}
	c.logger.Info("Created bucket", logging.String("bucket", c.config.Bucket))
	return nil
}

// GetClient returns the underlying API or nil once closed.
func (c *MinIOClient) GetClient() MinIOAPI {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return nil
	}
	return c.client
}

func (c *MinIOClient) Bucket() string { return c.config.Bucket }

func (c *MinIOClient) ObjectKey() string { return c.config.ObjectKey }

func (c *MinIOClient) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}

// HealthCheck reports whether the bucket is reachable.
func (c *MinIOClient) HealthCheck(ctx context.Context) error {
	api := c.GetClient()
	if api == nil {
		return ErrClientClosed
	}
	ok, err := api.BucketExists(ctx, c.config.Bucket)
	if err != nil {
		return errors.Wrap(err, errors.CodeUnavailable, "minio unreachable")
	}
	if !ok {
		return errors.Newf(errors.CodeStorage, "bucket %s missing", c.config.Bucket)
	}
	return nil
}
