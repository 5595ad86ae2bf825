// Package objstore 封装 MinIO 对象存储客户端（用户头像）
package objstore

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"path"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"user-admin/internal/config"
)

// Client MinIO 客户端封装
type Client struct {
	mc        *minio.Client
	bucket    string
	publicURL string
}

// NewClient 创建 MinIO 客户端
func NewClient(cfg config.MinIOConfig) (*Client, error) {
	if cfg.Endpoint == "" {
		return nil, fmt.Errorf("minio endpoint is required")
	}
	if cfg.AccessKey == "" || cfg.SecretKey == "" {
		return nil, fmt.Errorf("minio access_key and secret_key are required")
	}

	mc, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create minio client: %w", err)
	}

	bucket := cfg.Bucket
	if bucket == "" {
		bucket = "avatars"
	}

	publicURL := cfg.PublicURL
	if publicURL == "" {
		scheme := "http"
		if cfg.UseSSL {
			scheme = "https"
		}
		publicURL = scheme + "://" + cfg.Endpoint
	}

	return &Client{mc: mc, bucket: bucket, publicURL: strings.TrimRight(publicURL, "/")}, nil
}

// EnsureBucket 确保 bucket 存在
func (c *Client) EnsureBucket(ctx context.Context) error {
	exists, err := c.mc.BucketExists(ctx, c.bucket)
	if err != nil {
		return fmt.Errorf("check bucket: %w", err)
	}
	if !exists {
		if err := c.mc.MakeBucket(ctx, c.bucket, minio.MakeBucketOptions{}); err != nil {
			return fmt.Errorf("create bucket: %w", err)
		}
	}
	return nil
}

// Upload 上传对象，返回可公开访问的 URL
func (c *Client) Upload(ctx context.Context, key string, reader io.Reader, size int64, contentType string) (string, error) {
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	_, err := c.mc.PutObject(ctx, c.bucket, key, reader, size, minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return "", fmt.Errorf("upload %s: %w", key, err)
	}
	return c.ObjectURL(key), nil
}

// Delete 删除对象
func (c *Client) Delete(ctx context.Context, key string) error {
	return c.mc.RemoveObject(ctx, c.bucket, key, minio.RemoveObjectOptions{})
}

// ObjectURL 对象的公开访问地址：{public_url}/{bucket}/{key}
func (c *Client) ObjectURL(key string) string {
	escaped := (&url.URL{Path: path.Join(c.bucket, key)}).EscapedPath()
	return c.publicURL + "/" + escaped
}
