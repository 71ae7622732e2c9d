package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Submission is a hunter's entry for a bounty. Only the AI review pipeline writes
// IsAISelected and AIFeedback.
type Submission struct {
	ID            string    `gorm:"primaryKey;size:36" json:"id"`
	BountyID      string    `gorm:"size:36;index;not null" json:"bounty_id"`
	HunterAddress string    `gorm:"size:64;index;not null" json:"hunter_address"`
	Content       string    `gorm:"type:text;not null" json:"content"`
	Contact       string    `gorm:"size:255" json:"contact"`
	UserID        string    `gorm:"size:128;index" json:"user_id"`
	IsAISelected  bool      `gorm:"not null;default:false" json:"is_ai_selected"`
	AIFeedback    *string   `gorm:"type:text" json:"ai_feedback"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// BeforeCreate assigns a UUID when the caller did not provide one.
func (s *Submission) BeforeCreate(tx *gorm.DB) error {
	if s.ID == "" {
		s.ID = uuid.NewString()
	}
	return nil
}
