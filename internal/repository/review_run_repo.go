package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/noah-isme/monquest-api/internal/models"
)

// ReviewRunRepository persists review run audit records.
type ReviewRunRepository interface {
	Create(ctx context.Context, run *models.ReviewRun) error
	ListByBounty(ctx context.Context, bountyID string, limit int) ([]models.ReviewRun, error)
}

type reviewRunRepository struct {
	db *gorm.DB
}

// NewReviewRunRepository constructs the repository.
func NewReviewRunRepository(db *gorm.DB) ReviewRunRepository {
	return &reviewRunRepository{db: db}
}

func (r *reviewRunRepository) Create(ctx context.Context, run *models.ReviewRun) error {
	return r.db.WithContext(ctx).Create(run).Error
}

func (r *reviewRunRepository) ListByBounty(ctx context.Context, bountyID string, limit int) ([]models.ReviewRun, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}

	var runs []models.ReviewRun
	err := r.db.WithContext(ctx).
		Where("bounty_id = ?", bountyID).
		Order("started_at DESC").
		Limit(limit).
		Find(&runs).Error
	if err != nil {
		return nil, err
	}
	return runs, nil
}
