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

// BountyService covers posting, listing and paying out bounties.
type BountyService interface {
	Create(ctx context.Context, payload dto.BountyCreateRequest) (dto.BountyResponse, error)
	List(ctx context.Context) ([]dto.BountyResponse, error)
	Get(ctx context.Context, id string) (dto.BountyResponse, error)
	Payout(ctx context.Context, payload dto.PayoutRequest) (dto.BountyResponse, error)
	Profile(ctx context.Context, query dto.ProfileQuery) ([]dto.BountyResponse, error)
}

type bountyService struct {
	bounties    repository.BountyRepository
	submissions repository.SubmissionRepository
	cache       *BountyCache
	validator   *validator.Validate
	sanitizer   *bluemonday.Policy
	logger      zerolog.Logger
}

// NewBountyService constructs the bounty service.
func NewBountyService(bounties repository.BountyRepository, submissions repository.SubmissionRepository, cache *BountyCache, validate *validator.Validate, logger zerolog.Logger) BountyService {
	return &bountyService{
		bounties:    bounties,
		submissions: submissions,
		cache:       cache,
		validator:   validate,
		sanitizer:   bluemonday.StrictPolicy(),
		logger:      logger.With().Str("component", "bounty_service").Logger(),
	}
}

func (s *bountyService) Create(ctx context.Context, payload dto.BountyCreateRequest) (dto.BountyResponse, error) {
	if err := s.validator.Struct(payload); err != nil {
		return dto.BountyResponse{}, err
	}

	title := strings.TrimSpace(s.sanitizer.Sanitize(payload.Title))
	if title == "" {
		return dto.BountyResponse{}, ErrInvalidTitle
	}

	bounty := models.Bounty{
		Title:          title,
		Description:    strings.TrimSpace(payload.Description),
		Prize:          strings.TrimSpace(payload.Prize),
		CreatorAddress: normalizeAddress(s.sanitizer.Sanitize(payload.CreatorAddress)),
		UserID:         strings.TrimSpace(payload.UserID),
		Status:         models.BountyStatusOpen,
	}

	if err := s.bounties.Create(ctx, &bounty); err != nil {
		return dto.BountyResponse{}, fmt.Errorf("create bounty: %w", err)
	}

	s.cache.Invalidate(ctx)
	s.logger.Info().Str("bounty_id", bounty.ID).Str("creator", bounty.CreatorAddress).Msg("bounty created")

	bounty.Submissions = []models.Submission{}
	return dto.NewBountyResponse(bounty), nil
}

func (s *bountyService) List(ctx context.Context) ([]dto.BountyResponse, error) {
	if cached, ok := s.cache.Get(ctx); ok {
		return cached, nil
	}

	bounties, err := s.bounties.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list bounties: %w", err)
	}

	response := dto.NewBountyResponseSlice(bounties)
	s.cache.Set(ctx, response)
	return response, nil
}

func (s *bountyService) Get(ctx context.Context, id string) (dto.BountyResponse, error) {
	bounty, err := s.load(ctx, id)
	if err != nil {
		return dto.BountyResponse{}, err
	}
	return dto.NewBountyResponse(bounty), nil
}

func (s *bountyService) Payout(ctx context.Context, payload dto.PayoutRequest) (dto.BountyResponse, error) {
	if err := s.validator.Struct(payload); err != nil {
		return dto.BountyResponse{}, err
	}

	bounty, err := s.load(ctx, payload.BountyID)
	if err != nil {
		return dto.BountyResponse{}, err
	}
	if !bounty.IsOpen() {
		return dto.BountyResponse{}, ErrBountyClosed
	}

	var winner *string
	if payload.SubmissionID != nil && strings.TrimSpace(*payload.SubmissionID) != "" {
		id := strings.TrimSpace(*payload.SubmissionID)
		if !containsSubmission(bounty.Submissions, id) {
			return dto.BountyResponse{}, ErrSubmissionNotInBounty
		}
		winner = &id
	}

	if err := s.bounties.MarkPaid(ctx, bounty.ID, winner); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.BountyResponse{}, ErrBountyNotFound
		}
		return dto.BountyResponse{}, fmt.Errorf("mark bounty paid: %w", err)
	}

	s.cache.Invalidate(ctx)
	s.logger.Info().Str("bounty_id", bounty.ID).Interface("winner", winner).Msg("bounty paid out")

	bounty.Status = models.BountyStatusPaid
	bounty.WinnerSubmissionID = winner
	return dto.NewBountyResponse(bounty), nil
}

func (s *bountyService) Profile(ctx context.Context, query dto.ProfileQuery) ([]dto.BountyResponse, error) {
	if err := s.validator.Struct(query); err != nil {
		return nil, err
	}

	filter := repository.OwnerFilter{
		UserID:    strings.TrimSpace(query.UserID),
		Addresses: query.AddressList(),
	}
	if filter.Empty() {
		return nil, ErrOwnerRequired
	}

	var (
		bounties []models.Bounty
		err      error
	)
	switch query.Type {
	case dto.ProfileTypeCreated:
		bounties, err = s.bounties.ListByCreator(ctx, filter)
	case dto.ProfileTypeParticipated:
		var ids []string
		ids, err = s.submissions.BountyIDsByHunter(ctx, filter)
		if err == nil {
			bounties, err = s.bounties.ListByIDs(ctx, ids)
		}
	}
	if err != nil {
		return nil, fmt.Errorf("load profile bounties: %w", err)
	}

	return dto.NewBountyResponseSlice(bounties), nil
}

func (s *bountyService) load(ctx context.Context, id string) (models.Bounty, error) {
	bounty, err := s.bounties.GetByID(ctx, strings.TrimSpace(id))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.Bounty{}, ErrBountyNotFound
		}
		return models.Bounty{}, fmt.Errorf("load bounty: %w", err)
	}
	return bounty, nil
}

func containsSubmission(submissions []models.Submission, id string) bool {
	for _, submission := range submissions {
		if submission.ID == id {
			return true
		}
	}
	return false
}

func normalizeAddress(address string) string {
	return strings.ToLower(strings.TrimSpace(address))
}
