package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Bounty lifecycle states.
const (
	BountyStatusOpen = "OPEN"
	BountyStatusPaid = "PAID"
)

// Bounty is a task posted by a creator with an on-chain prize.
type Bounty struct {
	ID                 string       `gorm:"primaryKey;size:36" json:"id"`
	Title              string       `gorm:"size:255;not null" json:"title"`
	Description        string       `gorm:"type:text;not null" json:"description"`
	Prize              string       `gorm:"size:64;not null" json:"prize"`
	CreatorAddress     string       `gorm:"size:64;index;not null" json:"creator_address"`
	UserID             string       `gorm:"size:128;index" json:"user_id"`
	Status             string       `gorm:"size:16;not null;default:OPEN" json:"status"`
	WinnerSubmissionID *string      `gorm:"size:36" json:"winner_submission_id"`
	CreatedAt          time.Time    `json:"created_at"`
	UpdatedAt          time.Time    `json:"updated_at"`
	Submissions        []Submission `gorm:"foreignKey:BountyID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE" json:"submissions"`
}

// BeforeCreate assigns a UUID when the caller did not provide one.
func (b *Bounty) BeforeCreate(tx *gorm.DB) error {
	if b.ID == "" {
		b.ID = uuid.NewString()
	}
	if b.Status == "" {
		b.Status = BountyStatusOpen
	}
	return nil
}

// IsOpen reports whether the bounty still accepts submissions.
func (b Bounty) IsOpen() bool {
	return b.Status == BountyStatusOpen
}
