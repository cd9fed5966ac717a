package export

import (
	"bytes"
	"context"
	"fmt"
	"net/url"
	"path"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

type ArchiveConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
	URLTTL    time.Duration
}

// Archive keeps exported files in an S3-compatible bucket and hands out
// presigned download links.
type Archive struct {
	client *minio.Client
	bucket string
	ttl    time.Duration
	now    func() time.Time
}

// NewArchive connects to the object store and creates the bucket when it
// does not exist yet.
func NewArchive(ctx context.Context, cfg ArchiveConfig) (*Archive, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("create minio client: %w", err)
	}
	exists, err := client.BucketExists(ctx, cfg.Bucket)
	if err != nil {
		return nil, fmt.Errorf("check bucket %s: %w", cfg.Bucket, err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, cfg.Bucket, minio.MakeBucketOptions{}); err != nil {
			return nil, fmt.Errorf("create bucket %s: %w", cfg.Bucket, err)
		}
	}
	ttl := cfg.URLTTL
	if ttl <= 0 {
		ttl = 15 * time.Minute
	}
	return &Archive{client: client, bucket: cfg.Bucket, ttl: ttl, now: time.Now}, nil
}

// ObjectName is where an export of documentID produced at t is stored.
func ObjectName(documentID, filename string, t time.Time) string {
	return path.Join("exports", documentID, t.UTC().Format("20060102T150405Z")+"-"+filename)
}

// Store uploads res and returns a presigned GET URL for it.
func (a *Archive) Store(ctx context.Context, documentID string, res *Result) (string, error) {
	name := ObjectName(documentID, res.Filename, a.now())
	_, err := a.client.PutObject(ctx, a.bucket, name, bytes.NewReader(res.Data), int64(len(res.Data)), minio.PutObjectOptions{
		ContentType: res.MimeType,
	})
	if err != nil {
		return "", fmt.Errorf("upload export: %w", err)
	}

	params := url.Values{}
	params.Set("response-content-disposition", fmt.Sprintf("attachment; filename=%q", res.Filename))
	u, err := a.client.PresignedGetObject(ctx, a.bucket, name, a.ttl, params)
	if err != nil {
		return "", fmt.Errorf("presign export: %w", err)
	}
	return u.String(), nil
}
