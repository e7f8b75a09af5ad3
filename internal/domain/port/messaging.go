package port

import (
	"context"

	"github.com/fastevo/fastevo-upload-service/internal/domain/entity"
)

type StatusPublisher interface {
	PublishStatus(ctx context.Context, msg entity.UploadStatusMessage) error
}

// DLQPublisher parks a message that cannot be processed. The original body is
// preserved verbatim so the job can be replayed once the cause is fixed.
type DLQPublisher interface {
	PublishToDLQ(ctx context.Context, body []byte, reason string) error
}
