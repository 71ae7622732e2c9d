package dto

import (
	"strings"
	"time"

	"github.com/noah-isme/monquest-api/internal/models"
)

// BountyCreateRequest is the payload for posting a new bounty.
type BountyCreateRequest struct {
	Title          string `json:"title" validate:"required,min=3,max=255"`
	Description    string `json:"description" validate:"required,min=1"`
	Prize          string `json:"prize" validate:"required,numeric"`
	CreatorAddress string `json:"creatorAddress" validate:"required,max=64"`
	UserID         string `json:"userId" validate:"omitempty,max=128"`
}

// PayoutRequest marks a bounty as paid, optionally recording the winning submission.
type PayoutRequest struct {
	BountyID     string  `json:"bountyId" validate:"required,max=36"`
	SubmissionID *string `json:"submissionId" validate:"omitempty,max=36"`
}

// Profile listing modes.
const (
	ProfileTypeCreated      = "created"
	ProfileTypeParticipated = "participated"
)

// ProfileQuery selects the bounties shown on a user's profile.
type ProfileQuery struct {
	Type      string `query:"type" validate:"required,oneof=created participated"`
	UserID    string `query:"userId" validate:"omitempty,max=128"`
	Addresses string `query:"addresses"`
}

// AddressList splits the comma separated addresses parameter.
func (q ProfileQuery) AddressList() []string {
	if strings.TrimSpace(q.Addresses) == "" {
		return nil
	}

	parts := strings.Split(q.Addresses, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.ToLower(strings.TrimSpace(part)); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

// BountyResponse is the API representation of a bounty and its submissions.
type BountyResponse struct {
	ID                 string               `json:"id"`
	Title              string               `json:"title"`
	Description        string               `json:"description"`
	Prize              string               `json:"prize"`
	CreatorAddress     string               `json:"creatorAddress"`
	UserID             string               `json:"userId,omitempty"`
	Status             string               `json:"status"`
	WinnerSubmissionID *string              `json:"winnerSubmissionId"`
	CreatedAt          time.Time            `json:"createdAt"`
	Submissions        []SubmissionResponse `json:"submissions"`
}

// NewBountyResponse converts a Bounty model into a DTO.
func NewBountyResponse(model models.Bounty) BountyResponse {
	return BountyResponse{
		ID:                 model.ID,
		Title:              model.Title,
		Description:        model.Description,
		Prize:              model.Prize,
		CreatorAddress:     model.CreatorAddress,
		UserID:             model.UserID,
		Status:             model.Status,
		WinnerSubmissionID: model.WinnerSubmissionID,
		CreatedAt:          model.CreatedAt,
		Submissions:        NewSubmissionResponseSlice(model.Submissions),
	}
}

// NewBountyResponseSlice converts bounty models into DTOs.
func NewBountyResponseSlice(bounties []models.Bounty) []BountyResponse {
	out := make([]BountyResponse, 0, len(bounties))
	for _, bounty := range bounties {
		out = append(out, NewBountyResponse(bounty))
	}
	return out
}
