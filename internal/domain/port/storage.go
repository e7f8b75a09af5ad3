package port

import (
	"context"
	"io"

	"github.com/fastevo/fastevo-upload-service/internal/domain/entity"
)

// MediaStorage stages inbound media and signs upload targets.
type MediaStorage interface {
	DownloadMedia(ctx context.Context, objectKey string, destPath string) error
	// PresignUpload mints a presigned POST target for objectKey in the
	// destination bucket.
	PresignUpload(ctx context.Context, objectKey string, sizeLimit int64) (*entity.PresignedTarget, error)
}

// ThumbnailStore persists generated thumbnails and returns stable references.
type ThumbnailStore interface {
	PutThumbnail(ctx context.Context, objectKey string, r io.Reader, size int64, contentType string) (entity.ThumbnailRef, error)
}
