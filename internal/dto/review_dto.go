package dto

import (
	"encoding/json"
	"time"

	"github.com/noah-isme/monquest-api/internal/models"
)

// ReviewRequest triggers an AI review of a bounty's submissions.
type ReviewRequest struct {
	BountyID string `json:"bountyId" validate:"required,max=36"`
}

// ReviewSelection is one submission picked in a review run.
type ReviewSelection struct {
	SubmissionID string `json:"submissionId"`
	Feedback     string `json:"feedback"`
}

// ReviewRunResponse is the audit view of a finished review run.
type ReviewRunResponse struct {
	ID            string                 `json:"id"`
	BountyID      string                 `json:"bountyId"`
	Provider      string                 `json:"provider"`
	CorrelationID string                 `json:"correlationId,omitempty"`
	State         string                 `json:"state"`
	Chunks        int                    `json:"chunks"`
	Images        int                    `json:"images"`
	StreamError   string                 `json:"streamError,omitempty"`
	ParseError    string                 `json:"parseError,omitempty"`
	Selections    []ReviewSelection      `json:"selections"`
	Report        map[string]interface{} `json:"report,omitempty"`
	StartedAt     time.Time              `json:"startedAt"`
	FinishedAt    time.Time              `json:"finishedAt"`
}

// NewReviewRunResponse converts a ReviewRun model into a DTO.
func NewReviewRunResponse(run models.ReviewRun) ReviewRunResponse {
	selections := []ReviewSelection{}
	if len(run.Selections) > 0 {
		_ = json.Unmarshal(run.Selections, &selections)
	}

	return ReviewRunResponse{
		ID:            run.ID,
		BountyID:      run.BountyID,
		Provider:      run.Provider,
		CorrelationID: run.CorrelationID,
		State:         run.State,
		Chunks:        run.Chunks,
		Images:        run.Images,
		StreamError:   run.StreamError,
		ParseError:    run.ParseError,
		Selections:    selections,
		Report:        run.Report,
		StartedAt:     run.StartedAt,
		FinishedAt:    run.FinishedAt,
	}
}

// NewReviewRunResponseSlice converts review runs into DTOs.
func NewReviewRunResponseSlice(runs []models.ReviewRun) []ReviewRunResponse {
	out := make([]ReviewRunResponse, 0, len(runs))
	for _, run := range runs {
		out = append(out, NewReviewRunResponse(run))
	}
	return out
}
