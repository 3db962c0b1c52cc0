// Package archive mirrors job directories into an S3-compatible bucket for
// offsite backup. The uploads tree stays the system of record; the mirror is
// a safety copy and is written object-per-file under the job directory name.
package archive

import (
	"bytes"
	"context"
	"fmt"
	"io/fs"
	"mime"
	"os"
	"path/filepath"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/headstone-world/stoneledger/internal/config"
)

// Archiver copies job directories into the configured bucket.
type Archiver struct {
	client *minio.Client
	bucket string
	region string
}

// New creates a minio client from the Config.
func New(cfg *config.Config) (*Archiver, error) {
	client, err := minio.New(cfg.S3Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.S3AccessKey, cfg.S3SecretKey, ""),
		Secure: cfg.S3UseSSL,
		Region: cfg.S3Region,
	})
	if err != nil {
		return nil, fmt.Errorf("init minio: %w", err)
	}
	return &Archiver{client: client, bucket: cfg.ArchiveBucket, region: cfg.S3Region}, nil
}

// EnsureBucket makes sure the archive bucket exists before use.
func (a *Archiver) EnsureBucket(ctx context.Context) error {
	exists, err := a.client.BucketExists(ctx, a.bucket)
	if err != nil {
		return fmt.Errorf("check bucket %s: %w", a.bucket, err)
	}
	if !exists {
		if err := a.client.MakeBucket(ctx, a.bucket, minio.MakeBucketOptions{Region: a.region}); err != nil {
			return fmt.Errorf("make bucket %s: %w", a.bucket, err)
		}
	}
	return nil
}

// MirrorJob walks one job directory and uploads every file as
// "<dirName>/<relative path>". Objects are overwritten in place, which
// matches the store's replace semantics: the mirror always reflects the
// latest submission.
func (a *Archiver) MirrorJob(ctx context.Context, uploadsRoot, dirName string) error {
	jobDir := filepath.Join(uploadsRoot, dirName)
	return filepath.WalkDir(jobDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(jobDir, path)
		if err != nil {
			return err
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("read %s: %w", rel, err)
		}
		key := dirName + "/" + filepath.ToSlash(rel)
		contentType := mime.TypeByExtension(filepath.Ext(path))
		if contentType == "" {
			contentType = "application/octet-stream"
		}
		opts := minio.PutObjectOptions{ContentType: contentType}
		if _, err := a.client.PutObject(ctx, a.bucket, key, bytes.NewReader(data), int64(len(data)), opts); err != nil {
			return fmt.Errorf("upload %s: %w", key, err)
		}
		return nil
	})
}
