package port

import (
	"context"

	"github.com/fastevo/fastevo-upload-service/internal/domain/entity"
	"github.com/google/uuid"
)

type UploadJobRepository interface {
	Create(ctx context.Context, job *entity.UploadJob) error
	Update(ctx context.Context, job *entity.UploadJob) error
	FindByID(ctx context.Context, id uuid.UUID) (*entity.UploadJob, error)
}
