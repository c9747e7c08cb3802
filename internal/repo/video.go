package repo

import (
	"context"

	"github.com/squatlab/backend/internal/models"
)

func (r *GormRepo) CreateJob(ctx context.Context, j *models.UploadJob) error {
	return r.DB.WithContext(ctx).Create(j).Error
}

// MarkJobDone flips a job to DONE. Jobs never transition back.
func (r *GormRepo) MarkJobDone(ctx context.Context, jobID uint) error {
	res := r.DB.WithContext(ctx).Model(&models.UploadJob{}).
		Where("id = ?", jobID).
		Update("status", models.StatusDone)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *GormRepo) SaveResult(ctx context.Context, result *models.AnalysisResult) error {
	return r.DB.WithContext(ctx).Create(result).Error
}

func (r *GormRepo) ListJobsByUsername(ctx context.Context, username string) ([]models.UploadJob, error) {
	var jobs []models.UploadJob
	if err := r.DB.WithContext(ctx).
		Where("username = ?", username).
		Order("id DESC").
		Find(&jobs).Error; err != nil {
		return nil, err
	}
	return jobs, nil
}

func (r *GormRepo) ListResultsByJobIDs(ctx context.Context, jobIDs []uint) ([]models.AnalysisResult, error) {
	if len(jobIDs) == 0 {
		return nil, nil
	}
	var results []models.AnalysisResult
	if err := r.DB.WithContext(ctx).
		Where("job_id IN ?", jobIDs).
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}
