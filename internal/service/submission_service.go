package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/microcosm-cc/bluemonday"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/noah-isme/monquest-api/internal/dto"
	"github.com/noah-isme/monquest-api/internal/models"
	"github.com/noah-isme/monquest-api/internal/repository"
)

// SubmissionService accepts hunter entries for open bounties.
type SubmissionService interface {
	Create(ctx context.Context, payload dto.SubmissionCreateRequest) (dto.SubmissionResponse, error)
}

type submissionService struct {
	submissions repository.SubmissionRepository
	bounties    repository.BountyRepository
	cache       *BountyCache
	validator   *validator.Validate
	sanitizer   *bluemonday.Policy
	logger      zerolog.Logger
}

// NewSubmissionService constructs the submission service.
func NewSubmissionService(submissions repository.SubmissionRepository, bounties repository.BountyRepository, cache *BountyCache, validate *validator.Validate, logger zerolog.Logger) SubmissionService {
	return &submissionService{
		submissions: submissions,
		bounties:    bounties,
		cache:       cache,
		validator:   validate,
		sanitizer:   bluemonday.StrictPolicy(),
		logger:      logger.With().Str("component", "submission_service").Logger(),
	}
}

func (s *submissionService) Create(ctx context.Context, payload dto.SubmissionCreateRequest) (dto.SubmissionResponse, error) {
	if err := s.validator.Struct(payload); err != nil {
		return dto.SubmissionResponse{}, err
	}

	bounty, err := s.bounties.GetByID(ctx, strings.TrimSpace(payload.BountyID))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.SubmissionResponse{}, ErrBountyNotFound
		}
		return dto.SubmissionResponse{}, fmt.Errorf("load bounty: %w", err)
	}
	if !bounty.IsOpen() {
		return dto.SubmissionResponse{}, ErrBountyClosed
	}

	// Content is markdown and keeps its image references verbatim.
	submission := models.Submission{
		BountyID:      bounty.ID,
		HunterAddress: normalizeAddress(s.sanitizer.Sanitize(payload.HunterAddress)),
		Content:       payload.Content,
		Contact:       strings.TrimSpace(s.sanitizer.Sanitize(payload.Contact)),
		UserID:        strings.TrimSpace(payload.UserID),
	}

	if err := s.submissions.Create(ctx, &submission); err != nil {
		return dto.SubmissionResponse{}, fmt.Errorf("create submission: %w", err)
	}

	s.cache.Invalidate(ctx)
	s.logger.Info().Str("bounty_id", bounty.ID).Str("submission_id", submission.ID).Msg("submission received")

	return dto.NewSubmissionResponse(submission), nil
}
