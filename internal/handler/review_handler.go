package handler

import (
	"bufio"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/monquest-api/internal/dto"
	"github.com/noah-isme/monquest-api/internal/service"
	"github.com/noah-isme/monquest-api/internal/utils"
)

// ReviewRunHeader carries the id of the review run behind a streamed response.
const ReviewRunHeader = "X-Review-Run-ID"

// ReviewHandler streams AI reviews of bounty submissions.
type ReviewHandler struct {
	service   service.ReviewService
	validator *validator.Validate
	logger    zerolog.Logger
}

// NewReviewHandler constructs a review handler.
func NewReviewHandler(service service.ReviewService, validate *validator.Validate, logger zerolog.Logger) *ReviewHandler {
	return &ReviewHandler{
		service:   service,
		validator: validate,
		logger:    logger.With().Str("component", "review_handler").Logger(),
	}
}

// Register wires review routes. Extra handlers, such as a rate limiter, run first.
func (h *ReviewHandler) Register(router fiber.Router, before ...fiber.Handler) {
	handlers := append(append([]fiber.Handler{}, before...), h.review)
	router.Post("", handlers...)
}

func (h *ReviewHandler) review(c *fiber.Ctx) error {
	var payload dto.ReviewRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
	}
	if err := h.validator.Struct(payload); err != nil {
		return handleError(c, h.logger, err, "invalid review request")
	}

	stream, err := h.service.Start(c.UserContext(), payload.BountyID)
	if err != nil {
		return handleError(c, h.logger, err, "failed to start review")
	}

	logger := requestLogger(h.logger, c).With().Str("bounty_id", payload.BountyID).Str("run_id", stream.RunID).Logger()

	c.Set(fiber.HeaderContentType, "text/plain; charset=utf-8")
	c.Set(fiber.HeaderCacheControl, "no-cache")
	c.Set("X-Accel-Buffering", "no")
	c.Set(ReviewRunHeader, stream.RunID)
	c.Status(fiber.StatusOK)

	c.Context().SetBodyStreamWriter(func(w *bufio.Writer) {
		for chunk := range stream.Chunks() {
			if _, err := w.WriteString(chunk); err != nil {
				logger.Debug().Err(err).Msg("review client went away")
				stream.Detach()
				return
			}
			if err := w.Flush(); err != nil {
				logger.Debug().Err(err).Msg("review client went away")
				stream.Detach()
				return
			}
		}
	})

	return nil
}
