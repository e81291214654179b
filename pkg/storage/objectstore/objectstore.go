package objectstore

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// Config contains the information required to talk to an S3-compatible store.
type Config struct {
	Endpoint  string
	Region    string
	AccessKey string
	SecretKey string
	UseSSL    bool
}

// ObjectInfo describes one listed object. Err is set on the terminal entry when
// the underlying listing fails partway.
type ObjectInfo struct {
	Key      string
	Size     int64
	Modified time.Time
	Err      error
}

// Client talks to one S3-compatible object store. Writes are atomic per object
// at the store layer; there are no cross-object transactions.
type Client struct {
	mc *minio.Client
}

// New creates an object store client based on the given configuration.
func New(cfg Config) (*Client, error) {
	mc, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("init object store client: %w", err)
	}
	return &Client{mc: mc}, nil
}

// Exists reports whether an object is present at bucket/key.
func (c *Client) Exists(ctx context.Context, bucket, key string) (bool, error) {
	_, err := c.mc.StatObject(ctx, bucket, key, minio.StatObjectOptions{})
	if err != nil {
		resp := minio.ToErrorResponse(err)
		if resp.Code == "NoSuchKey" || resp.Code == "NoSuchBucket" {
			return false, nil
		}
		return false, fmt.Errorf("stat %s/%s: %w", bucket, key, err)
	}
	return true, nil
}

// Get opens an object for reading. The caller owns the returned stream.
func (c *Client) Get(ctx context.Context, bucket, key string) (io.ReadCloser, error) {
	obj, err := c.mc.GetObject(ctx, bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("get %s/%s: %w", bucket, key, err)
	}
	return obj, nil
}

// GetFile downloads an object to a local path.
func (c *Client) GetFile(ctx context.Context, bucket, key, localPath string) error {
	if err := c.mc.FGetObject(ctx, bucket, key, localPath, minio.GetObjectOptions{}); err != nil {
		return fmt.Errorf("download %s/%s: %w", bucket, key, err)
	}
	return nil
}

// Put stores size bytes from reader at bucket/key.
func (c *Client) Put(ctx context.Context, bucket, key string, reader io.Reader, size int64, contentType string) error {
	_, err := c.mc.PutObject(ctx, bucket, key, reader, size, minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return fmt.Errorf("put %s/%s: %w", bucket, key, err)
	}
	return nil
}

// PutFile uploads a local file to bucket/key.
func (c *Client) PutFile(ctx context.Context, bucket, key, localPath, contentType string) error {
	_, err := c.mc.FPutObject(ctx, bucket, key, localPath, minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return fmt.Errorf("upload %s/%s: %w", bucket, key, err)
	}
	return nil
}

// List streams objects under prefix. Pagination is handled internally; the
// channel closes when the listing is exhausted or the context is cancelled.
func (c *Client) List(ctx context.Context, bucket, prefix string) <-chan ObjectInfo {
	out := make(chan ObjectInfo)
	go func() {
		defer close(out)
		for obj := range c.mc.ListObjects(ctx, bucket, minio.ListObjectsOptions{
			Prefix:    prefix,
			Recursive: true,
		}) {
			info := ObjectInfo{
				Key:      obj.Key,
				Size:     obj.Size,
				Modified: obj.LastModified,
				Err:      obj.Err,
			}
			select {
			case out <- info:
			case <-ctx.Done():
				return
			}
			if obj.Err != nil {
				return
			}
		}
	}()
	return out
}

// HasPrefix reports whether at least one object exists under prefix.
func (c *Client) HasPrefix(ctx context.Context, bucket, prefix string) (bool, error) {
	listCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	for obj := range c.mc.ListObjects(listCtx, bucket, minio.ListObjectsOptions{
		Prefix:    prefix,
		Recursive: true,
		MaxKeys:   1,
	}) {
		if obj.Err != nil {
			return false, fmt.Errorf("list %s/%s: %w", bucket, prefix, obj.Err)
		}
		return true, nil
	}
	return false, nil
}

// Delete removes an object.
func (c *Client) Delete(ctx context.Context, bucket, key string) error {
	if err := c.mc.RemoveObject(ctx, bucket, key, minio.RemoveObjectOptions{}); err != nil {
		return fmt.Errorf("delete %s/%s: %w", bucket, key, err)
	}
	return nil
}

// EnsureBucket creates the bucket if it does not already exist.
func (c *Client) EnsureBucket(ctx context.Context, bucket string) error {
	exists, err := c.mc.BucketExists(ctx, bucket)
	if err != nil {
		return fmt.Errorf("check bucket %s: %w", bucket, err)
	}
	if exists {
		return nil
	}
	if err := c.mc.MakeBucket(ctx, bucket, minio.MakeBucketOptions{}); err != nil {
		return fmt.Errorf("create bucket %s: %w", bucket, err)
	}
	return nil
}

// PutJSON marshals v and stores it at bucket/key with a JSON content type.
func (c *Client) PutJSON(ctx context.Context, bucket, key string, v any) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal %s/%s: %w", bucket, key, err)
	}
	return c.Put(ctx, bucket, key, bytes.NewReader(payload), int64(len(payload)), "application/json")
}

// GetJSON reads and unmarshals the object at bucket/key into v.
func (c *Client) GetJSON(ctx context.Context, bucket, key string, v any) error {
	reader, err := c.Get(ctx, bucket, key)
	if err != nil {
		return err
	}
	defer reader.Close()

	payload, err := io.ReadAll(reader)
	if err != nil {
		return fmt.Errorf("read %s/%s: %w", bucket, key, err)
	}
	if err := json.Unmarshal(payload, v); err != nil {
		return fmt.Errorf("unmarshal %s/%s: %w", bucket, key, err)
	}
	return nil
}
