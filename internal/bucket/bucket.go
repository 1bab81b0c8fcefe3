// Package bucket stores rendered exports in S3 compatible object storage.
package bucket

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/url"
	"path"
	"strings"
	"time"

	"log/slog"

	"github.com/google/uuid"
	"github.com/jekabolt/grbpwr-crm/internal/entity"
	gerr "github.com/jekabolt/grbpwr-crm/internal/errors"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

type Config struct {
	S3AccessKey       string        `mapstructure:"s3AccessKey"`
	S3SecretAccessKey string        `mapstructure:"s3SecretAccessKey"`
	S3Endpoint        string        `mapstructure:"s3Endpoint"`
	S3BucketName      string        `mapstructure:"s3BucketName"`
	S3BucketLocation  string        `mapstructure:"s3BucketLocation"`
	BaseFolder        string        `mapstructure:"baseFolder"`
	Insecure          bool          `mapstructure:"insecure"`
	LinkExpiry        time.Duration `mapstructure:"linkExpiry"`
}

// ObjectStore is the subset of the minio client used for exports.
type ObjectStore interface {
	PutObject(ctx context.Context, bucketName, objectName string, reader io.Reader, objectSize int64, opts minio.PutObjectOptions) (minio.UploadInfo, error)
	PresignedGetObject(ctx context.Context, bucketName, objectName string, expires time.Duration, reqParams url.Values) (*url.URL, error)
}

type Bucket struct {
	cli ObjectStore
	c   *Config
	now func() time.Time
}

// New connects a minio client for c.
func New(c *Config) (*Bucket, error) {
	if c.S3Endpoint == "" || c.S3BucketName == "" {
		return nil, fmt.Errorf("incomplete bucket config: endpoint and bucket name are required")
	}
	cli, err := minio.New(c.S3Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(c.S3AccessKey, c.S3SecretAccessKey, ""),
		Secure: !c.Insecure,
		Region: c.S3BucketLocation,
	})
	if err != nil {
		return nil, fmt.Errorf("can't create minio client: %w", err)
	}
	return NewWithClient(c, cli), nil
}

// NewWithClient builds a Bucket over an existing object store.
func NewWithClient(c *Config, cli ObjectStore) *Bucket {
	if c.LinkExpiry == 0 {
		c.LinkExpiry = 24 * time.Hour
	}
	return &Bucket{
		cli: cli,
		c:   c,
		now: time.Now,
	}
}

// Deliver uploads f and returns a presigned download link.
func (b *Bucket) Deliver(ctx context.Context, f *entity.File) (string, error) {
	name := b.objectName(f.Name)
	_, err := b.cli.PutObject(ctx, b.c.S3BucketName, name, bytes.NewReader(f.Content), int64(len(f.Content)), minio.PutObjectOptions{
		ContentType:        f.MIMEType,
		ContentDisposition: fmt.Sprintf("attachment; filename=%q", f.Name),
	})
	if err != nil {
		return "", fmt.Errorf("can't upload %s: %s: %w", name, err.Error(), gerr.DeliveryFailure)
	}

	u, err := b.cli.PresignedGetObject(ctx, b.c.S3BucketName, name, b.c.LinkExpiry, url.Values{})
	if err != nil {
		return "", fmt.Errorf("can't presign %s: %s: %w", name, err.Error(), gerr.DeliveryFailure)
	}
	slog.Default().InfoContext(ctx, "export uploaded",
		slog.String("object", name),
		slog.Int("size", len(f.Content)),
	)
	return u.String(), nil
}

// objectName keeps uploads unique: <base>/exports/<yyyy>/<mm>/<uuid>-<file>.
func (b *Bucket) objectName(file string) string {
	now := b.now().UTC()
	return path.Join(
		strings.Trim(b.c.BaseFolder, "/"),
		"exports",
		now.Format("2006"),
		now.Format("01"),
		fmt.Sprintf("%s-%s", uuid.NewString(), file),
	)
}
