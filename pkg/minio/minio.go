package minio

import (
	"context"
	"io"
	"path"
	"strings"

	"legion-prm/pkg/config"

	"github.com/gosimple/slug"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("minio", fx.Provide(NewArchiver))

// Archiver copies downloaded batches and exported reports to object storage.
type Archiver struct {
	client *minio.Client
	bucket string
}

// NewArchiver returns nil when MINIO.ENDPOINT is empty; archiving is optional.
func NewArchiver(c *config.Config) (*Archiver, error) {
	if c.Minio.Endpoint == "" {
		return nil, nil
	}

	client, err := minio.New(c.Minio.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(c.Minio.AccessKey, c.Minio.SecretKey, ""),
		Secure: c.Minio.Secure,
	})
	if err != nil {
		return nil, err
	}

	zap.L().Debug("MinIO client initialized", zap.String("endpoint", c.Minio.Endpoint), zap.String("bucket", c.Minio.BucketName))
	return &Archiver{client: client, bucket: c.Minio.BucketName}, nil
}

func (a *Archiver) Bucket() string {
	return a.bucket
}

// Ping checks that the endpoint answers and the credentials can see the
// bucket. A bucket that does not exist yet is fine; Put creates it.
func (a *Archiver) Ping(ctx context.Context) error {
	_, err := a.client.BucketExists(ctx, a.bucket)
	return err
}

// Put uploads r under key, creating the bucket on first use. size may be -1
// when unknown.
func (a *Archiver) Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error {
	exists, err := a.client.BucketExists(ctx, a.bucket)
	if err != nil {
		return err
	}
	if !exists {
		if err := a.client.MakeBucket(ctx, a.bucket, minio.MakeBucketOptions{}); err != nil {
			return err
		}
	}

	info, err := a.client.PutObject(ctx, a.bucket, key, r, size, minio.PutObjectOptions{ContentType: contentType})
	if err != nil {
		return err
	}

	zap.L().Info("archived object", zap.String("bucket", a.bucket), zap.String("key", info.Key), zap.Int64("size", info.Size))
	return nil
}

// ObjectKey joins slugged path segments. The extension of the last segment is
// kept as is.
func ObjectKey(segments ...string) string {
	parts := make([]string, 0, len(segments))
	for i, seg := range segments {
		if i == len(segments)-1 {
			ext := path.Ext(seg)
			base := slug.Make(strings.TrimSuffix(seg, ext))
			parts = append(parts, base+strings.ToLower(ext))
			continue
		}
		parts = append(parts, slug.Make(seg))
	}
	return path.Join(parts...)
}
