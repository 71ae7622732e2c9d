package handler

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/monquest-api/internal/service"
	"github.com/noah-isme/monquest-api/internal/utils"
)

// MediaHandler handles file uploads from the markdown editor.
type MediaHandler struct {
	service service.MediaService
	logger  zerolog.Logger
}

// NewMediaHandler constructs a media handler.
func NewMediaHandler(service service.MediaService, logger zerolog.Logger) *MediaHandler {
	return &MediaHandler{
		service: service,
		logger:  logger.With().Str("component", "media_handler").Logger(),
	}
}

// Register wires upload routes.
func (h *MediaHandler) Register(router fiber.Router) {
	router.Post("", h.upload)
}

func (h *MediaHandler) upload(c *fiber.Ctx) error {
	file, err := c.FormFile("file")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "file is required")
	}

	result, err := h.service.Upload(c.UserContext(), file, strings.TrimSpace(c.FormValue("userId")))
	if err != nil {
		return handleError(c, h.logger, err, "upload failed")
	}

	return utils.SendSuccess(c, "upload successful", result)
}
