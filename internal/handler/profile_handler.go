package handler

import (
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/monquest-api/internal/dto"
	"github.com/noah-isme/monquest-api/internal/service"
	"github.com/noah-isme/monquest-api/internal/utils"
)

// ProfileHandler lists the bounties a user created or took part in.
type ProfileHandler struct {
	service service.BountyService
	logger  zerolog.Logger
}

// NewProfileHandler constructs a profile handler.
func NewProfileHandler(service service.BountyService, logger zerolog.Logger) *ProfileHandler {
	return &ProfileHandler{
		service: service,
		logger:  logger.With().Str("component", "profile_handler").Logger(),
	}
}

// Register wires profile routes.
func (h *ProfileHandler) Register(router fiber.Router) {
	router.Get("", h.list)
}

func (h *ProfileHandler) list(c *fiber.Ctx) error {
	var query dto.ProfileQuery
	if err := c.QueryParser(&query); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid query parameters")
	}

	bounties, err := h.service.Profile(c.UserContext(), query)
	if err != nil {
		return handleError(c, h.logger, err, "failed to load profile")
	}

	return utils.OK(c, bounties, "profile bounties retrieved", fiber.Map{"type": query.Type, "count": len(bounties)})
}
