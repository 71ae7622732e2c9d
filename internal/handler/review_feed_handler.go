package handler

import (
	"context"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/monquest-api/internal/middleware"
	"github.com/noah-isme/monquest-api/internal/service"
)

const reviewFeedPingInterval = 30 * time.Second

// ReviewFeed hands out subscriptions to finished review runs.
type ReviewFeed interface {
	Subscribe(bountyID string) (<-chan service.ReviewCompletedEvent, func())
}

// ReviewFeedHandler pushes review completions to websocket clients so they can
// re-fetch a bounty once its selections are written.
type ReviewFeedHandler struct {
	feed         ReviewFeed
	logger       zerolog.Logger
	pingInterval time.Duration
}

// NewReviewFeedHandler constructs a review feed handler.
func NewReviewFeedHandler(feed ReviewFeed, logger zerolog.Logger) *ReviewFeedHandler {
	return &ReviewFeedHandler{
		feed:         feed,
		logger:       logger.With().Str("component", "review_feed_handler").Logger(),
		pingInterval: reviewFeedPingInterval,
	}
}

// Register binds the websocket upgrade route.
func (h *ReviewFeedHandler) Register(router fiber.Router) {
	router.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			ctx := middleware.ContextWithCorrelation(context.Background(), middleware.GetCorrelationID(c))
			c.Locals("request_ctx", ctx)
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})

	router.Get("/ws", websocket.New(h.handleConnection))
}

func (h *ReviewFeedHandler) handleConnection(conn *websocket.Conn) {
	bountyID := strings.TrimSpace(conn.Query("bountyId"))
	ctx, _ := conn.Locals("request_ctx").(context.Context)
	logger := h.logger.With().
		Str("bounty_id", bountyID).
		Str("correlation_id", middleware.CorrelationIDFromContext(ctx)).
		Logger()

	events, cleanup := h.feed.Subscribe(bountyID)
	defer cleanup()

	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(h.pingInterval)
	defer ticker.Stop()

	logger.Info().Msg("review feed connected")
	defer logger.Info().Msg("review feed disconnected")

	for {
		select {
		case event, ok := <-events:
			if !ok {
				return
			}
			if err := conn.WriteJSON(event); err != nil {
				logger.Debug().Err(err).Msg("failed to write review event")
				return
			}
		case <-ticker.C:
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-closed:
			return
		}
	}
}
