package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/noah-isme/monquest-api/internal/models"
)

// OwnerFilter matches records by account id or by any of a set of wallet addresses.
type OwnerFilter struct {
	UserID    string
	Addresses []string
}

// Empty reports whether the filter would match nothing.
func (f OwnerFilter) Empty() bool {
	return f.UserID == "" && len(f.Addresses) == 0
}

// BountyRepository defines data operations for bounties.
type BountyRepository interface {
	Create(ctx context.Context, bounty *models.Bounty) error
	GetByID(ctx context.Context, id string) (models.Bounty, error)
	List(ctx context.Context) ([]models.Bounty, error)
	ListByCreator(ctx context.Context, filter OwnerFilter) ([]models.Bounty, error)
	ListByIDs(ctx context.Context, ids []string) ([]models.Bounty, error)
	MarkPaid(ctx context.Context, id string, winnerSubmissionID *string) error
}

type bountyRepository struct {
	db *gorm.DB
}

// NewBountyRepository instantiates the repository.
func NewBountyRepository(db *gorm.DB) BountyRepository {
	return &bountyRepository{db: db}
}

func (r *bountyRepository) baseQuery(ctx context.Context) *gorm.DB {
	return r.db.WithContext(ctx).Model(&models.Bounty{}).
		Preload("Submissions", func(db *gorm.DB) *gorm.DB {
			return db.Order("created_at ASC").Order("id ASC")
		})
}

func (r *bountyRepository) Create(ctx context.Context, bounty *models.Bounty) error {
	return r.db.WithContext(ctx).Create(bounty).Error
}

func (r *bountyRepository) GetByID(ctx context.Context, id string) (models.Bounty, error) {
	var bounty models.Bounty
	if err := r.baseQuery(ctx).Where("id = ?", id).First(&bounty).Error; err != nil {
		return models.Bounty{}, err
	}
	return bounty, nil
}

func (r *bountyRepository) List(ctx context.Context) ([]models.Bounty, error) {
	var bounties []models.Bounty
	if err := r.baseQuery(ctx).Order("created_at DESC").Find(&bounties).Error; err != nil {
		return nil, err
	}
	return bounties, nil
}

func (r *bountyRepository) ListByCreator(ctx context.Context, filter OwnerFilter) ([]models.Bounty, error) {
	if filter.Empty() {
		return []models.Bounty{}, nil
	}

	query := r.baseQuery(ctx).Where(ownerCondition(r.db, "creator_address", filter))

	var bounties []models.Bounty
	if err := query.Order("created_at DESC").Find(&bounties).Error; err != nil {
		return nil, err
	}
	return bounties, nil
}

func (r *bountyRepository) ListByIDs(ctx context.Context, ids []string) ([]models.Bounty, error) {
	if len(ids) == 0 {
		return []models.Bounty{}, nil
	}

	var bounties []models.Bounty
	if err := r.baseQuery(ctx).Where("id IN ?", ids).Order("created_at DESC").Find(&bounties).Error; err != nil {
		return nil, err
	}
	return bounties, nil
}

func (r *bountyRepository) MarkPaid(ctx context.Context, id string, winnerSubmissionID *string) error {
	updates := map[string]interface{}{"status": models.BountyStatusPaid}
	if winnerSubmissionID != nil {
		updates["winner_submission_id"] = *winnerSubmissionID
	}

	result := r.db.WithContext(ctx).Model(&models.Bounty{}).Where("id = ?", id).Updates(updates)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// ownerCondition builds "user_id = ? OR <addressColumn> IN ?" from whichever parts are set.
func ownerCondition(db *gorm.DB, addressColumn string, filter OwnerFilter) *gorm.DB {
	condition := db.Session(&gorm.Session{NewDB: true})
	switch {
	case filter.UserID != "" && len(filter.Addresses) > 0:
		return condition.Where("user_id = ?", filter.UserID).Or(addressColumn+" IN ?", filter.Addresses)
	case filter.UserID != "":
		return condition.Where("user_id = ?", filter.UserID)
	default:
		return condition.Where(addressColumn+" IN ?", filter.Addresses)
	}
}
