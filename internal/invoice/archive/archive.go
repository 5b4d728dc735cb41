package archive

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/railzwaylabs/interviewledger/internal/config"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Store keeps rendered invoices in object storage.
type Store interface {
	Put(ctx context.Context, key string, data []byte, contentType string) error
}

type objectPutter interface {
	PutObject(ctx context.Context, bucket, object string, reader io.Reader, size int64, opts minio.PutObjectOptions) (minio.UploadInfo, error)
}

type MinioStore struct {
	client objectPutter
	bucket string
	log    *zap.Logger
}

// Key places an invoice file under its institution.
func Key(institutionID, fileName string) string {
	return path.Join("invoices", strings.TrimSpace(institutionID), fileName)
}

func (s *MinioStore) Put(ctx context.Context, key string, data []byte, contentType string) error {
	_, err := s.client.PutObject(ctx, s.bucket, key, bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return fmt.Errorf("archive invoice %s: %w", key, err)
	}
	s.log.Info("invoice archived", zap.String("bucket", s.bucket), zap.String("key", key))
	return nil
}

type Params struct {
	fx.In

	Config config.Config
	Log    *zap.Logger
}

// Provide returns nil when archiving is disabled.
func Provide(p Params) (Store, error) {
	cfg := p.Config.Invoice
	if !cfg.ArchiveEnabled {
		return nil, nil
	}
	client, err := minio.New(cfg.ArchiveEndpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.ArchiveAccessKey, cfg.ArchiveSecretKey, ""),
		Secure: cfg.ArchiveUseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create minio client: %w", err)
	}

	ctx := context.Background()
	exists, err := client.BucketExists(ctx, cfg.ArchiveBucket)
	if err != nil {
		return nil, fmt.Errorf("failed to check bucket: %w", err)
	}
	log := p.Log.Named("invoice.archive")
	if !exists {
		if err := client.MakeBucket(ctx, cfg.ArchiveBucket, minio.MakeBucketOptions{}); err != nil {
			return nil, fmt.Errorf("failed to create bucket: %w", err)
		}
		log.Info("archive bucket created", zap.String("bucket", cfg.ArchiveBucket))
	}
	return newMinioStore(client, cfg.ArchiveBucket, log), nil
}

func newMinioStore(client objectPutter, bucket string, log *zap.Logger) *MinioStore {
	return &MinioStore{client: client, bucket: bucket, log: log}
}
