package dto

import (
	"time"

	"github.com/noah-isme/monquest-api/internal/models"
)

// SubmissionCreateRequest is the payload a hunter sends to enter a bounty.
type SubmissionCreateRequest struct {
	BountyID      string `json:"bountyId" validate:"required,max=36"`
	HunterAddress string `json:"hunterAddress" validate:"required,max=64"`
	Content       string `json:"content" validate:"required,min=1"`
	Contact       string `json:"contact" validate:"omitempty,max=255"`
	UserID        string `json:"userId" validate:"omitempty,max=128"`
}

// SubmissionResponse is returned to API clients when viewing submissions.
type SubmissionResponse struct {
	ID            string    `json:"id"`
	BountyID      string    `json:"bountyId"`
	HunterAddress string    `json:"hunterAddress"`
	Content       string    `json:"content"`
	Contact       string    `json:"contact,omitempty"`
	UserID        string    `json:"userId,omitempty"`
	IsAISelected  bool      `json:"isAiSelected"`
	AIFeedback    *string   `json:"aiFeedback"`
	CreatedAt     time.Time `json:"createdAt"`
}

// NewSubmissionResponse converts a Submission model into a DTO.
func NewSubmissionResponse(model models.Submission) SubmissionResponse {
	return SubmissionResponse{
		ID:            model.ID,
		BountyID:      model.BountyID,
		HunterAddress: model.HunterAddress,
		Content:       model.Content,
		Contact:       model.Contact,
		UserID:        model.UserID,
		IsAISelected:  model.IsAISelected,
		AIFeedback:    model.AIFeedback,
		CreatedAt:     model.CreatedAt,
	}
}

// NewSubmissionResponseSlice converts submission models into DTOs.
func NewSubmissionResponseSlice(models []models.Submission) []SubmissionResponse {
	responses := make([]SubmissionResponse, 0, len(models))
	for _, submission := range models {
		responses = append(responses, NewSubmissionResponse(submission))
	}

	return responses
}
