package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/noah-isme/monquest-api/internal/models"
)

// SubmissionRepository defines data operations for submissions, including the
// review annotation writes used by the AI review pipeline.
type SubmissionRepository interface {
	Create(ctx context.Context, submission *models.Submission) error
	ListByBounty(ctx context.Context, bountyID string) ([]models.Submission, error)
	BountyIDsByHunter(ctx context.Context, filter OwnerFilter) ([]string, error)
	ResetSelections(ctx context.Context, bountyID string) (int64, error)
	ApplySelection(ctx context.Context, bountyID, submissionID, feedback string) (int64, error)
}

type submissionRepository struct {
	db *gorm.DB
}

// NewSubmissionRepository instantiates the repository.
func NewSubmissionRepository(db *gorm.DB) SubmissionRepository {
	return &submissionRepository{db: db}
}

func (r *submissionRepository) Create(ctx context.Context, submission *models.Submission) error {
	return r.db.WithContext(ctx).Create(submission).Error
}

// ListByBounty returns the bounty's submissions oldest first.
func (r *submissionRepository) ListByBounty(ctx context.Context, bountyID string) ([]models.Submission, error) {
	var submissions []models.Submission
	err := r.db.WithContext(ctx).
		Where("bounty_id = ?", bountyID).
		Order("created_at ASC").
		Order("id ASC").
		Find(&submissions).Error
	if err != nil {
		return nil, err
	}
	return submissions, nil
}

func (r *submissionRepository) BountyIDsByHunter(ctx context.Context, filter OwnerFilter) ([]string, error) {
	if filter.Empty() {
		return []string{}, nil
	}

	var ids []string
	err := r.db.WithContext(ctx).
		Model(&models.Submission{}).
		Where(ownerCondition(r.db, "hunter_address", filter)).
		Distinct().
		Pluck("bounty_id", &ids).Error
	if err != nil {
		return nil, err
	}
	return ids, nil
}

// ResetSelections clears every review annotation on the bounty's submissions.
func (r *submissionRepository) ResetSelections(ctx context.Context, bountyID string) (int64, error) {
	result := r.db.WithContext(ctx).
		Model(&models.Submission{}).
		Where("bounty_id = ?", bountyID).
		Updates(map[string]interface{}{
			"is_ai_selected": false,
			"ai_feedback":    nil,
		})
	return result.RowsAffected, result.Error
}

// ApplySelection marks one submission of the bounty as selected. Zero rows affected
// means the id does not belong to the bounty.
func (r *submissionRepository) ApplySelection(ctx context.Context, bountyID, submissionID, feedback string) (int64, error) {
	result := r.db.WithContext(ctx).
		Model(&models.Submission{}).
		Where("id = ? AND bounty_id = ?", submissionID, bountyID).
		Updates(map[string]interface{}{
			"is_ai_selected": true,
			"ai_feedback":    feedback,
		})
	return result.RowsAffected, result.Error
}
