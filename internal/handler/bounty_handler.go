package handler

import (
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/monquest-api/internal/dto"
	"github.com/noah-isme/monquest-api/internal/service"
	"github.com/noah-isme/monquest-api/internal/utils"
)

const defaultReviewHistoryLimit = 20

// BountyHandler exposes the bounty marketplace endpoints.
type BountyHandler struct {
	service service.BountyService
	reviews service.ReviewService
	logger  zerolog.Logger
}

// NewBountyHandler constructs a bounty handler. reviews backs the review history route.
func NewBountyHandler(service service.BountyService, reviews service.ReviewService, logger zerolog.Logger) *BountyHandler {
	return &BountyHandler{
		service: service,
		reviews: reviews,
		logger:  logger.With().Str("component", "bounty_handler").Logger(),
	}
}

// Register wires bounty routes.
func (h *BountyHandler) Register(router fiber.Router) {
	router.Get("", h.list)
	router.Post("", h.create)
	router.Post("/payout", h.payout)
	router.Get("/:id", h.get)
	router.Get("/:id/reviews", h.history)
}

func (h *BountyHandler) list(c *fiber.Ctx) error {
	bounties, err := h.service.List(c.UserContext())
	if err != nil {
		return handleError(c, h.logger, err, "failed to load bounties")
	}

	return utils.OK(c, bounties, "bounties retrieved", fiber.Map{"count": len(bounties)})
}

func (h *BountyHandler) create(c *fiber.Ctx) error {
	var payload dto.BountyCreateRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
	}

	bounty, err := h.service.Create(c.UserContext(), payload)
	if err != nil {
		return handleError(c, h.logger, err, "failed to create bounty")
	}

	return utils.SendSuccessWithStatus(c, fiber.StatusCreated, "bounty created", bounty)
}

func (h *BountyHandler) get(c *fiber.Ctx) error {
	bounty, err := h.service.Get(c.UserContext(), c.Params("id"))
	if err != nil {
		return handleError(c, h.logger, err, "failed to load bounty")
	}

	return utils.SendSuccess(c, "bounty retrieved", bounty)
}

func (h *BountyHandler) payout(c *fiber.Ctx) error {
	var payload dto.PayoutRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
	}

	bounty, err := h.service.Payout(c.UserContext(), payload)
	if err != nil {
		return handleError(c, h.logger, err, "failed to record payout")
	}

	return utils.SendSuccess(c, "bounty paid out", bounty)
}

func (h *BountyHandler) history(c *fiber.Ctx) error {
	if h.reviews == nil {
		return utils.SendError(c, fiber.StatusServiceUnavailable, service.ErrReviewNotConfigured.Error())
	}

	limit, err := parseQueryInt(c, "limit")
	if err != nil || limit < 0 {
		return utils.SendError(c, fiber.StatusBadRequest, "limit must be a positive integer")
	}
	if limit == 0 {
		limit = defaultReviewHistoryLimit
	}

	runs, err := h.reviews.History(c.UserContext(), c.Params("id"), limit)
	if err != nil {
		return handleError(c, h.logger, err, "failed to load review history")
	}

	return utils.OK(c, runs, "review runs retrieved", fiber.Map{"count": len(runs), "limit": limit})
}
