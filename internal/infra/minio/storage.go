package minio

import (
	"context"
	"fmt"
	"io"
	"time"

	miniogo "github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/fastevo/fastevo-upload-service/internal/domain/entity"
)

type Storage struct {
	client          *miniogo.Client
	intakeBucket    string
	mediaBucket     string
	thumbnailBucket string
	presignExpiry   time.Duration
}

type StorageConfig struct {
	Endpoint        string
	AccessKey       string
	SecretKey       string
	UseSSL          bool
	IntakeBucket    string
	MediaBucket     string
	ThumbnailBucket string
	PresignExpiry   time.Duration
}

func NewStorage(cfg StorageConfig) (*Storage, error) {
	client, err := miniogo.New(cfg.Endpoint, &miniogo.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("create minio client: %w", err)
	}

	expiry := cfg.PresignExpiry
	if expiry <= 0 {
		expiry = time.Hour
	}

	return &Storage{
		client:          client,
		intakeBucket:    cfg.IntakeBucket,
		mediaBucket:     cfg.MediaBucket,
		thumbnailBucket: cfg.ThumbnailBucket,
		presignExpiry:   expiry,
	}, nil
}

func (s *Storage) EnsureBuckets(ctx context.Context) error {
	for _, bucket := range []string{s.intakeBucket, s.mediaBucket, s.thumbnailBucket} {
		exists, err := s.client.BucketExists(ctx, bucket)
		if err != nil {
			return fmt.Errorf("check bucket %s: %w", bucket, err)
		}
		if !exists {
			if err := s.client.MakeBucket(ctx, bucket, miniogo.MakeBucketOptions{}); err != nil {
				return fmt.Errorf("create bucket %s: %w", bucket, err)
			}
		}
	}
	return nil
}

func (s *Storage) DownloadMedia(ctx context.Context, objectKey string, destPath string) error {
	return s.client.FGetObject(ctx, s.intakeBucket, objectKey, destPath, miniogo.GetObjectOptions{})
}

// PresignUpload mints a presigned POST target for objectKey in the media
// bucket. sizeLimit of 0 leaves the content length unconstrained.
func (s *Storage) PresignUpload(ctx context.Context, objectKey string, sizeLimit int64) (*entity.PresignedTarget, error) {
	policy := miniogo.NewPostPolicy()
	if err := policy.SetBucket(s.mediaBucket); err != nil {
		return nil, fmt.Errorf("post policy bucket: %w", err)
	}
	if err := policy.SetKey(objectKey); err != nil {
		return nil, fmt.Errorf("post policy key: %w", err)
	}
	if err := policy.SetExpires(time.Now().UTC().Add(s.presignExpiry)); err != nil {
		return nil, fmt.Errorf("post policy expiry: %w", err)
	}
	if sizeLimit > 0 {
		if err := policy.SetContentLengthRange(0, sizeLimit); err != nil {
			return nil, fmt.Errorf("post policy size range: %w", err)
		}
	}

	u, formData, err := s.client.PresignedPostPolicy(ctx, policy)
	if err != nil {
		return nil, fmt.Errorf("presign post policy: %w", err)
	}
	return &entity.PresignedTarget{URL: u.String(), FormFields: formData}, nil
}

func (s *Storage) PutThumbnail(ctx context.Context, objectKey string, r io.Reader, size int64, contentType string) (entity.ThumbnailRef, error) {
	_, err := s.client.PutObject(ctx, s.thumbnailBucket, objectKey, r, size, miniogo.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return entity.ThumbnailRef{}, fmt.Errorf("upload thumbnail: %w", err)
	}

	u, err := s.client.PresignedGetObject(ctx, s.thumbnailBucket, objectKey, s.presignExpiry, nil)
	if err != nil {
		// The object is stored; the key alone is still a usable reference.
		return entity.ThumbnailRef{Key: objectKey, ContentType: contentType}, nil
	}
	return entity.ThumbnailRef{Key: objectKey, URL: u.String(), ContentType: contentType}, nil
}
