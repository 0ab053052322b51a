package minio

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	cfg "github.com/solarops/document-processor/config"
	"github.com/solarops/document-processor/pkg/logger"
)

// Client is the MinIO-backed object store.
type Client struct {
	client     *minio.Client
	bucketName string
	logger     logger.Logger
}

func NewClient(log logger.Logger) (*Client, error) {
	storageCfg := cfg.GetStorageConfig()

	mc, err := minio.New(storageCfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(storageCfg.AccessKey, storageCfg.SecretKey, ""),
		Secure: storageCfg.UseSSL,
		Region: storageCfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create MinIO client: %w", err)
	}

	exists, err := mc.BucketExists(context.Background(), storageCfg.BucketName)
	if err != nil {
		return nil, fmt.Errorf("failed to check bucket existence: %w", err)
	}
	if !exists {
		err = mc.MakeBucket(context.Background(), storageCfg.BucketName, minio.MakeBucketOptions{
			Region: storageCfg.Region,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create bucket: %w", err)
		}
	}

	return &Client{client: mc, bucketName: storageCfg.BucketName, logger: log}, nil
}

func (c *Client) Store(ctx context.Context, reader io.Reader, key string) (string, error) {
	_, err := c.client.PutObject(ctx, c.bucketName, key, reader, -1, minio.PutObjectOptions{})
	if err != nil {
		c.logger.Error("Failed to store object",
			logger.String("bucket", c.bucketName),
			logger.String("key", key),
			logger.Error(err),
		)
		return "", fmt.Errorf("failed to store object: %w", err)
	}
	return key, nil
}

func (c *Client) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	obj, err := c.client.GetObject(ctx, c.bucketName, key, minio.GetObjectOptions{})
	if err != nil {
		c.logger.Error("Failed to get object",
			logger.String("bucket", c.bucketName),
			logger.String("key", key),
			logger.Error(err),
		)
		return nil, fmt.Errorf("failed to get object: %w", err)
	}
	return obj, nil
}

func (c *Client) Delete(ctx context.Context, key string) error {
	if err := c.client.RemoveObject(ctx, c.bucketName, key, minio.RemoveObjectOptions{}); err != nil {
		c.logger.Error("Failed to delete object",
			logger.String("bucket", c.bucketName),
			logger.String("key", key),
			logger.Error(err),
		)
		return fmt.Errorf("failed to delete object: %w", err)
	}
	return nil
}

func (c *Client) CleanupBefore(ctx context.Context, prefix string, threshold time.Time) error {
	objectCh := c.client.ListObjects(ctx, c.bucketName, minio.ListObjectsOptions{Prefix: prefix})

	for obj := range objectCh {
		if obj.Err != nil {
			c.logger.Error("Error listing objects",
				logger.String("bucket", c.bucketName),
				logger.Error(obj.Err),
			)
			continue
		}
		if !strings.HasPrefix(obj.Key, prefix) {
			continue
		}
		if obj.LastModified.Before(threshold) {
			if err := c.Delete(ctx, obj.Key); err != nil {
				continue
			}
			c.logger.Info("Deleted expired object",
				logger.String("key", obj.Key),
				logger.Time("lastModified", obj.LastModified),
			)
		}
	}
	return nil
}
