package postgres

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/fastevo/fastevo-upload-service/internal/domain/entity"
)

type UploadJobRepository struct {
	pool *pgxpool.Pool
}

func NewUploadJobRepository(pool *pgxpool.Pool) *UploadJobRepository {
	return &UploadJobRepository{pool: pool}
}

func (r *UploadJobRepository) Create(ctx context.Context, job *entity.UploadJob) error {
	query := `
		INSERT INTO upload_jobs (
			id, user_id, media_key, mime_type, file_size, status,
			thumbnail_keys, thumbnail_count, media_duration,
			attempt, max_attempts, error_message,
			created_at, updated_at, completed_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15)`

	_, err := r.pool.Exec(ctx, query,
		job.ID, job.UserID, job.MediaKey, job.MimeType, job.FileSize, string(job.Status),
		job.ThumbnailKeys, job.ThumbnailCount, job.MediaDuration,
		job.Attempt, job.MaxAttempts, job.ErrorMessage,
		job.CreatedAt, job.UpdatedAt, job.CompletedAt,
	)
	if err != nil {
		return fmt.Errorf("insert upload job: %w", err)
	}
	return nil
}

func (r *UploadJobRepository) Update(ctx context.Context, job *entity.UploadJob) error {
	query := `
		UPDATE upload_jobs SET
			status=$2, thumbnail_keys=$3, thumbnail_count=$4, media_duration=$5,
			attempt=$6, error_message=$7, updated_at=$8, completed_at=$9
		WHERE id=$1`

	_, err := r.pool.Exec(ctx, query,
		job.ID, string(job.Status), job.ThumbnailKeys, job.ThumbnailCount,
		job.MediaDuration, job.Attempt, job.ErrorMessage,
		job.UpdatedAt, job.CompletedAt,
	)
	if err != nil {
		return fmt.Errorf("update upload job: %w", err)
	}
	return nil
}

func (r *UploadJobRepository) FindByID(ctx context.Context, id uuid.UUID) (*entity.UploadJob, error) {
	query := `
		SELECT id, user_id, media_key, mime_type, file_size, status,
			thumbnail_keys, thumbnail_count, media_duration,
			attempt, max_attempts, error_message,
			created_at, updated_at, completed_at
		FROM upload_jobs WHERE id=$1`

	job := &entity.UploadJob{}
	var status string
	err := r.pool.QueryRow(ctx, query, id).Scan(
		&job.ID, &job.UserID, &job.MediaKey, &job.MimeType, &job.FileSize, &status,
		&job.ThumbnailKeys, &job.ThumbnailCount, &job.MediaDuration,
		&job.Attempt, &job.MaxAttempts, &job.ErrorMessage,
		&job.CreatedAt, &job.UpdatedAt, &job.CompletedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("find upload job by id: %w", err)
	}
	job.Status = entity.JobStatus(status)
	return job, nil
}
