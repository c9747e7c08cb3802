package repo

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/squatlab/backend/internal/models"
)

var (
	ErrNotFound      = errors.New("not found")
	ErrAlreadyExists = errors.New("already exists")
)

// UserStore is the slice of user persistence the handlers need.
type UserStore interface {
	CreateUser(ctx context.Context, u *models.User) error
	FindByUsername(ctx context.Context, username string) (*models.User, error)
	ExistsByUsername(ctx context.Context, username string) (bool, error)
}

// RefreshStore owns every write to the refresh-token table.
type RefreshStore interface {
	SaveRefresh(ctx context.Context, t *models.RefreshToken) error
	ExistsByToken(ctx context.Context, tokenStr string) (bool, error)
	DeleteByToken(ctx context.Context, tokenStr string) error
	RotateRefresh(ctx context.Context, oldToken string, newRow *models.RefreshToken) error
}

// JobStore persists upload jobs and their analysis results.
type JobStore interface {
	CreateJob(ctx context.Context, j *models.UploadJob) error
	MarkJobDone(ctx context.Context, jobID uint) error
	SaveResult(ctx context.Context, r *models.AnalysisResult) error
	ListJobsByUsername(ctx context.Context, username string) ([]models.UploadJob, error)
	ListResultsByJobIDs(ctx context.Context, jobIDs []uint) ([]models.AnalysisResult, error)
}

type GormRepo struct {
	DB *gorm.DB
}

func New(db *gorm.DB) *GormRepo {
	return &GormRepo{DB: db}
}
