package store

import (
	"bytes"
	"context"
	"fmt"
	"io"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/minio/minio-go/v7/pkg/lifecycle"
)

// AuditPrefix is the key prefix every audit record lives under.
const AuditPrefix = "registrations/"

// ArchiveConfig describes the bucket that keeps registration audit records.
type ArchiveConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool

	// Versioning keeps overwritten or deleted records as prior versions.
	Versioning bool
	// RetentionDays expires records under AuditPrefix after that many days.
	// Zero leaves the bucket lifecycle untouched.
	RetentionDays int
}

// AuditArchive stores registration audit records in a MinIO bucket.
type AuditArchive struct {
	client *minio.Client
	bucket string
}

// NewAuditArchive connects to MinIO and prepares the bucket: it is created
// when missing, then versioning and the retention rule are applied as
// configured.
func NewAuditArchive(ctx context.Context, cfg ArchiveConfig) (*AuditArchive, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("minio client: %w", err)
	}

	exists, err := client.BucketExists(ctx, cfg.Bucket)
	if err != nil {
		return nil, fmt.Errorf("minio bucket check: %w", err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, cfg.Bucket, minio.MakeBucketOptions{}); err != nil {
			return nil, fmt.Errorf("minio make bucket: %w", err)
		}
	}

	if cfg.Versioning {
		if err := client.EnableVersioning(ctx, cfg.Bucket); err != nil {
			return nil, fmt.Errorf("minio enable versioning: %w", err)
		}
	}
	if cfg.RetentionDays > 0 {
		if err := client.SetBucketLifecycle(ctx, cfg.Bucket, retentionRule(cfg.RetentionDays)); err != nil {
			return nil, fmt.Errorf("minio set lifecycle: %w", err)
		}
	}

	return &AuditArchive{client: client, bucket: cfg.Bucket}, nil
}

func retentionRule(days int) *lifecycle.Configuration {
	lc := lifecycle.NewConfiguration()
	lc.Rules = []lifecycle.Rule{{
		ID:         "expire-registration-audit",
		Status:     "Enabled",
		RuleFilter: lifecycle.Filter{Prefix: AuditPrefix},
		Expiration: lifecycle.Expiration{Days: lifecycle.ExpirationDays(days)},
	}}
	return lc
}

// Put stores a JSON record under key.
func (a *AuditArchive) Put(ctx context.Context, key string, record []byte) error {
	_, err := a.client.PutObject(ctx, a.bucket, key, bytes.NewReader(record), int64(len(record)), minio.PutObjectOptions{
		ContentType: "application/json",
	})
	if err != nil {
		return fmt.Errorf("minio put %s: %w", key, err)
	}
	return nil
}

// Get reads back the record stored under key.
func (a *AuditArchive) Get(ctx context.Context, key string) ([]byte, error) {
	obj, err := a.client.GetObject(ctx, a.bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("minio get %s: %w", key, err)
	}
	defer obj.Close()

	data, err := io.ReadAll(obj)
	if err != nil {
		return nil, fmt.Errorf("minio read %s: %w", key, err)
	}
	return data, nil
}

// Keys lists the record keys under prefix, in lexical order.
func (a *AuditArchive) Keys(ctx context.Context, prefix string) ([]string, error) {
	var keys []string
	for obj := range a.client.ListObjects(ctx, a.bucket, minio.ListObjectsOptions{Prefix: prefix, Recursive: true}) {
		if obj.Err != nil {
			return nil, fmt.Errorf("minio list %s: %w", prefix, obj.Err)
		}
		keys = append(keys, obj.Key)
	}
	return keys, nil
}
