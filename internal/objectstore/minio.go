package objectstore

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

type ObjectInfo struct {
	Bucket       string
	Key          string
	Size         int64
	ETag         string
	LastModified time.Time
}

func (o ObjectInfo) String() string {
	return fmt.Sprintf("s3://%s/%s (%d bytes)", o.Bucket, o.Key, o.Size)
}

func NewMinIOClient(cfg Config) (*minio.Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	opts := &minio.Options{
		Creds:     credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure:    cfg.UseSSL,
		Region:    cfg.Region,
		Transport: newTransport(),
	}
	return minio.New(cfg.Endpoint, opts)
}

// Confirmer checks that uploaded backups exist in the bucket.
type Confirmer struct {
	client *minio.Client
	cfg    Config
}

func NewConfirmer(cfg Config) (*Confirmer, error) {
	client, err := NewMinIOClient(cfg)
	if err != nil {
		return nil, err
	}
	return &Confirmer{client: client, cfg: cfg}, nil
}

// Confirm stats the object a local backup named name was uploaded as.
func (c *Confirmer) Confirm(ctx context.Context, name string) (ObjectInfo, error) {
	if c == nil || c.client == nil {
		return ObjectInfo{}, fmt.Errorf("minio client not initialized")
	}
	key := c.cfg.Key(name)
	info, err := c.client.StatObject(ctx, c.cfg.Bucket, key, minio.StatObjectOptions{})
	if err != nil {
		return ObjectInfo{}, fmt.Errorf("stat s3://%s/%s: %w", c.cfg.Bucket, key, err)
	}
	return ObjectInfo{
		Bucket:       c.cfg.Bucket,
		Key:          info.Key,
		Size:         info.Size,
		ETag:         info.ETag,
		LastModified: info.LastModified,
	}, nil
}

func newTransport() *http.Transport {
	dialer := &net.Dialer{
		Timeout:   5 * time.Second,
		KeepAlive: 30 * time.Second,
	}
	return &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		DialContext:           dialer.DialContext,
		ForceAttemptHTTP2:     true,
		MaxIdleConns:          10,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   5 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
	}
}
