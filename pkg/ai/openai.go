package ai

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	openai "github.com/sashabaranov/go-openai"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var (
	judgeDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "monquest",
		Subsystem: "ai",
		Name:      "judge_stream_duration_seconds",
		Help:      "Duration of streamed judge completions",
		Buckets:   []float64{0.5, 1, 2.5, 5, 10, 20, 40, 80},
	}, []string{"provider", "model"})

	judgeFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "monquest",
		Subsystem: "ai",
		Name:      "judge_failures_total",
		Help:      "Number of judge streams that failed to open or broke mid-stream",
	}, []string{"provider", "model", "stage"})
)

// OpenAIConfig defines configuration options for the OpenAI judge.
type OpenAIConfig struct {
	APIKey      string
	BaseURL     string
	Model       string
	MaxTokens   int
	Temperature float32
	Logger      zerolog.Logger
}

// OpenAIJudge streams chat completions from the OpenAI API.
type OpenAIJudge struct {
	client *openai.Client
	cfg    OpenAIConfig
	tracer trace.Tracer
	logger zerolog.Logger
}

// NewOpenAIJudge builds a new judge using the provided configuration.
func NewOpenAIJudge(cfg OpenAIConfig) (*OpenAIJudge, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("openai api key is required")
	}

	if cfg.Model == "" {
		cfg.Model = "gpt-4o-mini"
	}

	if cfg.MaxTokens == 0 {
		cfg.MaxTokens = 2048
	}

	tracer := otel.Tracer("github.com/noah-isme/monquest-api/pkg/ai/openai")
	logger := cfg.Logger
	if logger.GetLevel() == zerolog.Disabled {
		logger = zerolog.Nop()
	}

	config := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		config.BaseURL = cfg.BaseURL
	}
	client := openai.NewClientWithConfig(config)

	return &OpenAIJudge{
		client: client,
		cfg:    cfg,
		tracer: tracer,
		logger: logger.With().Str("component", "openai_judge").Logger(),
	}, nil
}

// Name identifies the provider.
func (j *OpenAIJudge) Name() string {
	return "openai"
}

// Stream opens a chat completion stream for the prompt.
func (j *OpenAIJudge) Stream(parent context.Context, prompt Prompt) (ChunkStream, error) {
	ctx, span := j.tracer.Start(parent, "openai.stream", trace.WithAttributes(
		attribute.String("model", j.cfg.Model),
		attribute.Int("prompt.segments", len(prompt)),
		attribute.Int("prompt.images", prompt.ImageCount()),
	))

	request := openai.ChatCompletionRequest{
		Model:       j.cfg.Model,
		MaxTokens:   j.cfg.MaxTokens,
		Temperature: j.cfg.Temperature,
		Stream:      true,
		Messages: []openai.ChatCompletionMessage{
			{
				Role:         openai.ChatMessageRoleUser,
				MultiContent: openAIParts(prompt),
			},
		},
	}

	stream, err := j.client.CreateChatCompletionStream(ctx, request)
	if err != nil {
		judgeFailures.WithLabelValues(j.Name(), j.cfg.Model, "open").Inc()
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		span.End()
		return nil, fmt.Errorf("openai stream: %w", err)
	}

	return &openAIStream{
		stream: stream,
		span:   span,
		model:  j.cfg.Model,
		start:  time.Now(),
	}, nil
}

func openAIParts(prompt Prompt) []openai.ChatMessagePart {
	parts := make([]openai.ChatMessagePart, 0, len(prompt))
	for _, segment := range prompt {
		switch s := segment.(type) {
		case TextSegment:
			parts = append(parts, openai.ChatMessagePart{
				Type: openai.ChatMessagePartTypeText,
				Text: s.Text,
			})
		case ImageSegment:
			parts = append(parts, openai.ChatMessagePart{
				Type: openai.ChatMessagePartTypeImageURL,
				ImageURL: &openai.ChatMessageImageURL{
					URL:    s.DataURL(),
					Detail: openai.ImageURLDetailAuto,
				},
			})
		}
	}
	return parts
}

type openAIStream struct {
	stream *openai.ChatCompletionStream
	span   trace.Span
	model  string
	start  time.Time
	failed bool
}

func (s *openAIStream) Recv() (string, error) {
	for {
		resp, err := s.stream.Recv()
		if err != nil {
			if !errors.Is(err, io.EOF) && !s.failed {
				s.failed = true
				judgeFailures.WithLabelValues("openai", s.model, "stream").Inc()
				s.span.RecordError(err)
				s.span.SetStatus(codes.Error, err.Error())
			}
			return "", err
		}
		if len(resp.Choices) == 0 {
			continue
		}
		if text := resp.Choices[0].Delta.Content; text != "" {
			return text, nil
		}
	}
}

func (s *openAIStream) Close() error {
	judgeDuration.WithLabelValues("openai", s.model).Observe(time.Since(s.start).Seconds())
	s.span.End()
	return s.stream.Close()
}
