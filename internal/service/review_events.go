package service

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/noah-isme/monquest-api/internal/observability"
)

const reviewFeedBufferSize = 8

// ReviewCompletedEvent announces that a review run finished applying.
type ReviewCompletedEvent struct {
	Source      string    `json:"source"`
	RunID       string    `json:"runId"`
	BountyID    string    `json:"bountyId"`
	Selected    []string  `json:"selected"`
	CompletedAt time.Time `json:"completedAt"`
}

// ReviewEventPublisher fans review events out over redis pub/sub and NATS,
// whichever are configured, and to local feed subscribers.
type ReviewEventPublisher struct {
	redis        *redis.Client
	redisChannel string
	nats         *nats.Conn
	natsSubject  string
	nodeID       string
	logger       zerolog.Logger

	mu          sync.RWMutex
	subscribers map[chan ReviewCompletedEvent]string
}

// NewReviewEventPublisher derives "<base>:reviews" and "<base>.reviews" from channelBase.
func NewReviewEventPublisher(redisClient *redis.Client, natsConn *nats.Conn, channelBase string, logger zerolog.Logger) *ReviewEventPublisher {
	channel := ""
	subject := ""
	if channelBase != "" {
		channel = channelBase + ":reviews"
		subject = strings.ReplaceAll(channelBase, ":", ".") + ".reviews"
	}

	return &ReviewEventPublisher{
		redis:        redisClient,
		redisChannel: channel,
		nats:         natsConn,
		natsSubject:  subject,
		nodeID:       uuid.NewString(),
		logger:       logger.With().Str("component", "review_events").Logger(),
		subscribers:  make(map[chan ReviewCompletedEvent]string),
	}
}

// Start consumes events published by other nodes until ctx ends. Redis wins over
// NATS when both are configured, since every node publishes to both.
func (p *ReviewEventPublisher) Start(ctx context.Context) {
	if p == nil {
		return
	}
	switch {
	case p.redis != nil && p.redisChannel != "":
		go p.consumeRedis(ctx)
	case p.nats != nil && p.natsSubject != "":
		go p.consumeNATS(ctx)
	}
}

// Publish delivers the event to local subscribers, then to every configured transport.
func (p *ReviewEventPublisher) Publish(ctx context.Context, event ReviewCompletedEvent) error {
	if p == nil {
		return nil
	}

	event.Source = p.nodeID
	if event.CompletedAt.IsZero() {
		event.CompletedAt = time.Now().UTC()
	}
	p.broadcast(event, "local")

	payload, err := json.Marshal(event)
	if err != nil {
		return err
	}

	if p.redis != nil && p.redisChannel != "" {
		if err := p.redis.Publish(ctx, p.redisChannel, payload).Err(); err != nil {
			return err
		}
	}

	if p.nats != nil && p.natsSubject != "" {
		if err := p.nats.Publish(p.natsSubject, payload); err != nil {
			return err
		}
	}

	p.logger.Debug().Str("bounty_id", event.BountyID).Str("run_id", event.RunID).Msg("review event published")
	return nil
}

// Subscribe registers a feed for one bounty, or for every bounty when bountyID is
// empty. Slow subscribers miss events rather than block publishers.
func (p *ReviewEventPublisher) Subscribe(bountyID string) (<-chan ReviewCompletedEvent, func()) {
	channel := make(chan ReviewCompletedEvent, reviewFeedBufferSize)

	p.mu.Lock()
	p.subscribers[channel] = strings.TrimSpace(bountyID)
	p.mu.Unlock()
	observability.ReviewFeedClients().Inc()

	var once sync.Once
	cleanup := func() {
		once.Do(func() {
			p.mu.Lock()
			delete(p.subscribers, channel)
			close(channel)
			p.mu.Unlock()
			observability.ReviewFeedClients().Dec()
		})
	}

	return channel, cleanup
}

func (p *ReviewEventPublisher) broadcast(event ReviewCompletedEvent, origin string) {
	observability.ReviewEvents().WithLabelValues(origin).Inc()

	p.mu.RLock()
	defer p.mu.RUnlock()

	for channel, bountyID := range p.subscribers {
		if bountyID != "" && bountyID != event.BountyID {
			continue
		}
		select {
		case channel <- event:
		default:
		}
	}
}

func (p *ReviewEventPublisher) consumeRedis(ctx context.Context) {
	pubsub := p.redis.Subscribe(ctx, p.redisChannel)
	defer func() { _ = pubsub.Close() }()

	for {
		msg, err := pubsub.ReceiveMessage(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, redis.ErrClosed) {
				return
			}
			p.logger.Error().Err(err).Msg("review redis subscription closed")
			return
		}
		p.handleRemote([]byte(msg.Payload))
	}
}

func (p *ReviewEventPublisher) consumeNATS(ctx context.Context) {
	sub, err := p.nats.Subscribe(p.natsSubject, func(msg *nats.Msg) {
		p.handleRemote(msg.Data)
	})
	if err != nil {
		p.logger.Error().Err(err).Msg("failed to subscribe to nats review subject")
		return
	}

	go func() {
		<-ctx.Done()
		if err := sub.Drain(); err != nil {
			p.logger.Warn().Err(err).Msg("failed to drain review nats subscription")
		}
	}()
}

func (p *ReviewEventPublisher) handleRemote(payload []byte) {
	var event ReviewCompletedEvent
	if err := json.Unmarshal(payload, &event); err != nil {
		p.logger.Warn().Err(err).Msg("invalid review event payload")
		return
	}
	if event.Source == p.nodeID {
		return
	}
	p.broadcast(event, "remote")
}
