package ai

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/anthropics/anthropic-sdk-go/packages/ssestream"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// anthropicImageTypes lists the media types the messages API accepts for base64 images.
var anthropicImageTypes = map[string]struct{}{
	"image/jpeg": {},
	"image/png":  {},
	"image/gif":  {},
	"image/webp": {},
}

// AnthropicConfig holds configuration for the Anthropic judge.
type AnthropicConfig struct {
	APIKey    string
	BaseURL   string
	Model     string
	MaxTokens int64
	Logger    zerolog.Logger
}

// AnthropicJudge streams completions from the Anthropic messages API.
type AnthropicJudge struct {
	client *anthropic.Client
	cfg    AnthropicConfig
	tracer trace.Tracer
	logger zerolog.Logger
}

// NewAnthropicJudge constructs a judge backed by the Anthropic SDK.
func NewAnthropicJudge(cfg AnthropicConfig) (*AnthropicJudge, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("anthropic api key is required")
	}
	if cfg.Model == "" {
		cfg.Model = "claude-sonnet-4-5"
	}
	if cfg.MaxTokens == 0 {
		cfg.MaxTokens = 2048
	}

	opts := []option.RequestOption{option.WithAPIKey(cfg.APIKey)}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	client := anthropic.NewClient(opts...)

	logger := cfg.Logger
	if logger.GetLevel() == zerolog.Disabled {
		logger = zerolog.Nop()
	}

	return &AnthropicJudge{
		client: &client,
		cfg:    cfg,
		tracer: otel.Tracer("github.com/noah-isme/monquest-api/pkg/ai/anthropic"),
		logger: logger.With().Str("component", "anthropic_judge").Logger(),
	}, nil
}

// Name identifies the provider.
func (j *AnthropicJudge) Name() string {
	return "anthropic"
}

// Stream opens a messages stream for the prompt.
func (j *AnthropicJudge) Stream(parent context.Context, prompt Prompt) (ChunkStream, error) {
	ctx, span := j.tracer.Start(parent, "anthropic.stream", trace.WithAttributes(
		attribute.String("model", j.cfg.Model),
		attribute.Int("prompt.segments", len(prompt)),
		attribute.Int("prompt.images", prompt.ImageCount()),
	))

	stream := j.client.Messages.NewStreaming(ctx, anthropic.MessageNewParams{
		Model:     anthropic.Model(j.cfg.Model),
		MaxTokens: j.cfg.MaxTokens,
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(j.blocks(prompt)...),
		},
	})
	if err := stream.Err(); err != nil {
		judgeFailures.WithLabelValues(j.Name(), j.cfg.Model, "open").Inc()
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		span.End()
		_ = stream.Close()
		return nil, fmt.Errorf("anthropic stream: %w", err)
	}

	return &anthropicStream{
		stream: stream,
		span:   span,
		model:  j.cfg.Model,
		start:  time.Now(),
	}, nil
}

func (j *AnthropicJudge) blocks(prompt Prompt) []anthropic.ContentBlockParamUnion {
	blocks := make([]anthropic.ContentBlockParamUnion, 0, len(prompt))
	for _, segment := range prompt {
		switch s := segment.(type) {
		case TextSegment:
			blocks = append(blocks, anthropic.NewTextBlock(s.Text))
		case ImageSegment:
			if _, ok := anthropicImageTypes[s.MimeType]; !ok {
				j.logger.Debug().Str("mime_type", s.MimeType).Msg("skipping image type unsupported by anthropic")
				continue
			}
			blocks = append(blocks, anthropic.NewImageBlockBase64(s.MimeType, s.Base64()))
		}
	}
	return blocks
}

type anthropicStream struct {
	stream *ssestream.Stream[anthropic.MessageStreamEventUnion]
	span   trace.Span
	model  string
	start  time.Time
	failed bool
}

func (s *anthropicStream) Recv() (string, error) {
	for s.stream.Next() {
		event := s.stream.Current()
		delta, ok := event.AsAny().(anthropic.ContentBlockDeltaEvent)
		if !ok {
			continue
		}
		if text, ok := delta.Delta.AsAny().(anthropic.TextDelta); ok && text.Text != "" {
			return text.Text, nil
		}
	}
	if err := s.stream.Err(); err != nil {
		if !s.failed {
			s.failed = true
			judgeFailures.WithLabelValues("anthropic", s.model, "stream").Inc()
			s.span.RecordError(err)
			s.span.SetStatus(codes.Error, err.Error())
		}
		return "", err
	}
	return "", io.EOF
}

func (s *anthropicStream) Close() error {
	judgeDuration.WithLabelValues("anthropic", s.model).Observe(time.Since(s.start).Seconds())
	s.span.End()
	return s.stream.Close()
}
