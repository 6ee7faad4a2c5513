package storage

import (
	"bytes"
	"context"
	"fmt"
	"path"
	"sort"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/mvoss/imgpress/internal/sandbox"
)

type S3Config struct {
	Endpoint string
	Access   string
	Secret   string
	Bucket   string
	UseSSL   bool
}

// S3 persists artifacts in an S3-compatible bucket using the same
// tenant/folder/filename key layout the disk backend uses on the
// filesystem.
type S3 struct {
	minio  *minio.Client
	bucket string
}

func NewS3(cfg S3Config) (*S3, error) {
	mc, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.Access, cfg.Secret, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("create minio client: %w", err)
	}

	if strings.TrimSpace(cfg.Bucket) == "" {
		return nil, fmt.Errorf("bucket is required")
	}

	return &S3{
		minio:  mc,
		bucket: cfg.Bucket,
	}, nil
}

func (c *S3) EnsureBucket(ctx context.Context) error {
	exists, err := c.minio.BucketExists(ctx, c.bucket)
	if err != nil {
		return fmt.Errorf("check bucket existence: %w", err)
	}
	if exists {
		return nil
	}

	if err := c.minio.MakeBucket(ctx, c.bucket, minio.MakeBucketOptions{}); err != nil {
		exists, checkErr := c.minio.BucketExists(ctx, c.bucket)
		if checkErr == nil && exists {
			return nil
		}
		return fmt.Errorf("create bucket %s: %w", c.bucket, err)
	}

	return nil
}

// Put uploads one artifact and returns its object key. Folder strings go
// through the same normalization rules the disk sandbox enforces so both
// backends accept identical inputs.
func (c *S3) Put(ctx context.Context, tenant, folder, filename string, data []byte, contentType string) (string, error) {
	norm, err := sandbox.NormalizeFolder(folder)
	if err != nil {
		return "", err
	}

	key := path.Join(tenant, norm, filename)
	_, err = c.minio.PutObject(
		ctx,
		c.bucket,
		key,
		bytes.NewReader(data),
		int64(len(data)),
		minio.PutObjectOptions{ContentType: contentType},
	)
	if err != nil {
		return "", fmt.Errorf("put object %s: %w", key, err)
	}
	return key, nil
}

// List enumerates a tenant's published objects, returning keys relative to
// the tenant prefix, sorted.
func (c *S3) List(ctx context.Context, tenant string) ([]string, error) {
	prefix := ""
	if tenant != "" {
		prefix = tenant + "/"
	}

	keys := make([]string, 0)
	for object := range c.minio.ListObjects(ctx, c.bucket, minio.ListObjectsOptions{
		Prefix:    prefix,
		Recursive: true,
	}) {
		if object.Err != nil {
			return nil, fmt.Errorf("list objects under %q: %w", prefix, object.Err)
		}
		keys = append(keys, strings.TrimPrefix(object.Key, prefix))
	}

	sort.Strings(keys)
	return keys, nil
}
