package assets

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// RemoteConfig holds connection details for an S3-compatible object store.
type RemoteConfig struct {
	Endpoint        string
	AccessKeyID     string
	SecretAccessKey string
	Bucket          string
	Region          string
	UseSSL          bool
	// PublicURL is the base that references are built on. Defaults to
	// <scheme>://<endpoint>/<bucket>.
	PublicURL string
}

func (c RemoteConfig) validate() error {
	if c.Endpoint == "" || c.AccessKeyID == "" || c.SecretAccessKey == "" || c.Bucket == "" {
		return fmt.Errorf("asset store endpoint, credentials and bucket must be set")
	}
	return nil
}

func (c RemoteConfig) endpointURL() string {
	if c.UseSSL {
		return "https://" + c.Endpoint
	}
	return "http://" + c.Endpoint
}

func (c RemoteConfig) publicBase() string {
	if c.PublicURL != "" {
		return c.PublicURL
	}
	return c.endpointURL() + "/" + c.Bucket
}

// MinioStore implements Store on MinIO or any S3-compatible service.
type MinioStore struct {
	client *minio.Client
	bucket string
	base   string
}

// NewMinioStore connects to the object store and ensures the bucket exists.
func NewMinioStore(ctx context.Context, cfg RemoteConfig) (*MinioStore, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("init minio client: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	exists, err := client.BucketExists(ctx, cfg.Bucket)
	if err != nil {
		return nil, fmt.Errorf("check bucket %s: %w", cfg.Bucket, err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, cfg.Bucket, minio.MakeBucketOptions{Region: cfg.Region}); err != nil {
			return nil, fmt.Errorf("create bucket %s: %w", cfg.Bucket, err)
		}
	}

	return &MinioStore{
		client: client,
		bucket: cfg.Bucket,
		base:   cfg.publicBase(),
	}, nil
}

// Put uploads the local file under the kind's folder.
func (m *MinioStore) Put(ctx context.Context, localPath string, kind Kind, meta Metadata) (string, error) {
	if !kind.Valid() {
		return "", fmt.Errorf("unknown asset kind %q", kind)
	}
	f, err := os.Open(localPath)
	if err != nil {
		return "", fmt.Errorf("open %s: %w", localPath, err)
	}
	defer f.Close()
	info, err := f.Stat()
	if err != nil {
		return "", fmt.Errorf("stat %s: %w", localPath, err)
	}

	key := ObjectName(kind, meta)
	opts := minio.PutObjectOptions{
		ContentType:  meta.ContentType,
		UserMetadata: map[string]string{"original-name": meta.FileName},
	}
	if _, err := m.client.PutObject(ctx, m.bucket, key, f, info.Size(), opts); err != nil {
		return "", fmt.Errorf("put object %s: %w", key, err)
	}
	return joinRef(m.base, key), nil
}

// Remove deletes the object behind ref. Missing objects are not an error.
func (m *MinioStore) Remove(ctx context.Context, ref string, kind Kind) error {
	key, err := ObjectKey(ref, kind)
	if err != nil {
		return err
	}
	err = m.client.RemoveObject(ctx, m.bucket, key, minio.RemoveObjectOptions{})
	if err != nil && minio.ToErrorResponse(err).Code != "NoSuchKey" {
		return fmt.Errorf("delete object %s: %w", key, err)
	}
	return nil
}
