package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/noah-isme/monquest-api/internal/dto"
	"github.com/noah-isme/monquest-api/internal/middleware"
	"github.com/noah-isme/monquest-api/internal/models"
	"github.com/noah-isme/monquest-api/internal/observability"
	"github.com/noah-isme/monquest-api/internal/repository"
	"github.com/noah-isme/monquest-api/pkg/ai"
)

// Markers appended to a review stream when something fails after output began.
const (
	StreamFailureMarker     = "\n\n[Error: Failed to complete review]"
	ProcessingFailureMarker = "\n\n[Error processing AI results]"
)

// ReviewService runs AI reviews of bounty submissions.
type ReviewService interface {
	// Start checks preconditions, opens the judge stream and returns a
	// ReviewStream the caller drains. Errors are only returned before any
	// output exists.
	Start(ctx context.Context, bountyID string) (*ReviewStream, error)
	History(ctx context.Context, bountyID string, limit int) ([]dto.ReviewRunResponse, error)
}

// ReviewOptions tunes the review pipeline.
type ReviewOptions struct {
	BufferSize        int
	StreamTimeout     time.Duration
	AbortOnDisconnect bool
}

// ReviewServiceConfig wires the review service collaborators. Judge may be nil,
// in which case every review is rejected as not configured.
type ReviewServiceConfig struct {
	Judge       ai.Judge
	Bounties    repository.BountyRepository
	Submissions repository.SubmissionRepository
	Runs        repository.ReviewRunRepository
	Prompts     *PromptBuilder
	Applier     *SelectionApplier
	Locker      ReviewLocker
	Events      *ReviewEventPublisher
	Cache       *BountyCache
	Options     ReviewOptions
	Logger      zerolog.Logger
}

type reviewService struct {
	judge       ai.Judge
	bounties    repository.BountyRepository
	submissions repository.SubmissionRepository
	runs        repository.ReviewRunRepository
	prompts     *PromptBuilder
	applier     *SelectionApplier
	locker      ReviewLocker
	events      *ReviewEventPublisher
	cache       *BountyCache
	opts        ReviewOptions
	logger      zerolog.Logger
	tracer      trace.Tracer
	now         func() time.Time
}

// NewReviewService constructs the review orchestrator.
func NewReviewService(cfg ReviewServiceConfig) ReviewService {
	if cfg.Options.BufferSize <= 0 {
		cfg.Options.BufferSize = 16
	}
	if cfg.Locker == nil {
		cfg.Locker = NewLocalReviewLocker()
	}

	return &reviewService{
		judge:       cfg.Judge,
		bounties:    cfg.Bounties,
		submissions: cfg.Submissions,
		runs:        cfg.Runs,
		prompts:     cfg.Prompts,
		applier:     cfg.Applier,
		locker:      cfg.Locker,
		events:      cfg.Events,
		cache:       cfg.Cache,
		opts:        cfg.Options,
		logger:      cfg.Logger.With().Str("component", "review_service").Logger(),
		tracer:      otel.Tracer("github.com/noah-isme/monquest-api/internal/service/review"),
		now:         time.Now,
	}
}

// ReviewOutcome describes how a review run ended. Read it after Done.
type ReviewOutcome struct {
	RunID       string
	State       string
	Chunks      int
	Images      int
	Marker      string
	StreamError error
	ParseError  error
	Result      ai.ReviewResult
	Report      *ApplyReport
}

// ReviewStream carries the model output of one review run to the caller.
type ReviewStream struct {
	RunID string

	chunks        chan string
	detached      chan struct{}
	detachOnce    sync.Once
	done          chan struct{}
	cancel        context.CancelFunc
	abortOnDetach bool
	outcome       ReviewOutcome
}

// Chunks yields model output in the order it was produced, then any error
// marker, and is closed when the run finishes.
func (s *ReviewStream) Chunks() <-chan string {
	return s.chunks
}

// Detach tells the run that nobody is reading anymore. Forwarding stops; the run
// itself is aborted only when configured to.
func (s *ReviewStream) Detach() {
	s.detachOnce.Do(func() {
		close(s.detached)
		if s.abortOnDetach {
			s.cancel()
		}
	})
}

// Done is closed once the run has finished and its outcome is final.
func (s *ReviewStream) Done() <-chan struct{} {
	return s.done
}

// Outcome returns the run result. It blocks until Done.
func (s *ReviewStream) Outcome() ReviewOutcome {
	<-s.done
	return s.outcome
}

func (s *ReviewStream) isDetached() bool {
	select {
	case <-s.detached:
		return true
	default:
		return false
	}
}

func (s *ReviewStream) emit(chunk string) bool {
	if s.isDetached() {
		return false
	}
	select {
	case s.chunks <- chunk:
		return true
	case <-s.detached:
		return false
	}
}

func (s *reviewService) Start(ctx context.Context, bountyID string) (*ReviewStream, error) {
	if s.judge == nil {
		return nil, ErrReviewNotConfigured
	}

	bountyID = strings.TrimSpace(bountyID)
	runID := uuid.NewString()
	correlationID := middleware.CorrelationIDFromContext(ctx)
	logger := s.logger.With().
		Str("bounty_id", bountyID).
		Str("run_id", runID).
		Str("correlation_id", correlationID).
		Logger()

	release, ok, err := s.locker.TryLock(ctx, bountyID)
	if err != nil {
		return nil, fmt.Errorf("acquire review lock: %w", err)
	}
	if !ok {
		return nil, ErrReviewInProgress
	}

	started := false
	defer func() {
		if !started {
			release()
		}
	}()

	logger.Debug().Str("state", models.ReviewStateLoading).Msg("review state")
	bounty, err := s.bounties.GetByID(ctx, bountyID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrBountyNotFound
		}
		return nil, fmt.Errorf("load bounty: %w", err)
	}

	submissions, err := s.submissions.ListByBounty(ctx, bounty.ID)
	if err != nil {
		return nil, fmt.Errorf("load submissions: %w", err)
	}
	if len(submissions) == 0 {
		return nil, ErrNoSubmissions
	}

	base := context.WithoutCancel(ctx)
	runCtx, cancel := context.WithCancel(base)
	runCtx, span := s.tracer.Start(runCtx, "review.run", trace.WithAttributes(
		attribute.String("review.bounty_id", bounty.ID),
		attribute.String("review.run_id", runID),
		attribute.String("review.provider", s.judge.Name()),
		attribute.Int("review.submissions", len(submissions)),
	))

	run := models.ReviewRun{
		ID:            runID,
		BountyID:      bounty.ID,
		Provider:      s.judge.Name(),
		CorrelationID: correlationID,
		State:         models.ReviewStatePrompting,
		StartedAt:     s.now().UTC(),
	}

	logger.Debug().Str("state", models.ReviewStatePrompting).Msg("review state")
	prompt := s.prompts.Build(runCtx, bounty, submissions)
	run.Images = prompt.ImageCount()

	judgeCtx := runCtx
	stopTimer := func() {}
	if s.opts.StreamTimeout > 0 {
		judgeCtx, stopTimer = context.WithTimeout(runCtx, s.opts.StreamTimeout)
	}

	judgeStream, err := s.judge.Stream(judgeCtx, prompt)
	if err != nil {
		stopTimer()
		cancel()
		span.RecordError(err)
		span.SetStatus(codes.Error, "stream open failed")
		span.End()

		run.State = models.ReviewStateFailed
		run.StreamError = err.Error()
		s.finish(base, logger, &run)
		logger.Error().Err(err).Msg("failed to open judge stream")
		return nil, fmt.Errorf("%w: %v", ErrReviewUnavailable, err)
	}

	stream := &ReviewStream{
		RunID:         runID,
		chunks:        make(chan string, s.opts.BufferSize),
		detached:      make(chan struct{}),
		done:          make(chan struct{}),
		cancel:        cancel,
		abortOnDetach: s.opts.AbortOnDisconnect,
	}

	started = true
	observability.ReviewsInFlight().Inc()
	logger.Info().Str("state", models.ReviewStateStreaming).Int("images", run.Images).Msg("review started")

	go func() {
		defer close(stream.done)
		defer observability.ReviewsInFlight().Dec()
		defer release()
		defer cancel()
		defer stopTimer()
		defer span.End()

		s.run(base, logger, span, stream, judgeStream, &run, submissions)
	}()

	return stream, nil
}

// run is the producer half of a review: it owns the output channel and closes it.
func (s *reviewService) run(base context.Context, logger zerolog.Logger, span trace.Span, stream *ReviewStream, judgeStream ai.ChunkStream, run *models.ReviewRun, submissions []models.Submission) {
	outcome := &stream.outcome
	outcome.RunID = run.ID
	outcome.Images = run.Images
	closed := false
	closeOutput := func() {
		if !closed {
			closed = true
			close(stream.chunks)
		}
	}
	defer closeOutput()

	emitMarker := func(marker, kind string) {
		if outcome.Marker != "" {
			return
		}
		outcome.Marker = marker
		observability.ReviewMarkers().WithLabelValues(kind).Inc()
		stream.emit(marker)
	}

	run.State = models.ReviewStateStreaming
	var text strings.Builder
	completed := false
	for {
		chunk, err := judgeStream.Recv()
		if errors.Is(err, io.EOF) {
			completed = true
			break
		}
		if err != nil {
			outcome.StreamError = err
			break
		}
		if chunk == "" {
			continue
		}
		text.WriteString(chunk)
		outcome.Chunks++
		observability.ReviewChunks().Inc()
		stream.emit(chunk)
	}
	if err := judgeStream.Close(); err != nil {
		logger.Debug().Err(err).Msg("closing judge stream")
	}
	run.Chunks = outcome.Chunks

	// A judge that already finished is applied even if the caller left meanwhile.
	if stream.abortOnDetach && !completed && stream.isDetached() {
		run.State = models.ReviewStateCancelled
		if outcome.StreamError != nil {
			run.StreamError = outcome.StreamError.Error()
		}
		outcome.State = run.State
		span.SetStatus(codes.Error, "caller disconnected")
		logger.Info().Str("state", run.State).Int("chunks", run.Chunks).Msg("review cancelled by caller")
		s.finish(base, logger, run)
		return
	}

	if outcome.StreamError != nil {
		run.StreamError = outcome.StreamError.Error()
		span.RecordError(outcome.StreamError)
		logger.Warn().Err(outcome.StreamError).Int("chunks", run.Chunks).Msg("judge stream failed, parsing partial output")
		emitMarker(StreamFailureMarker, "stream")
	}

	run.State = models.ReviewStateParsing
	logger.Debug().Str("state", run.State).Msg("review state")
	result, parseErr := ai.ExtractReview(text.String())
	outcome.Result = result

	run.State = models.ReviewStateApplying
	logger.Debug().Str("state", run.State).Msg("review state")
	if parseErr != nil {
		outcome.ParseError = parseErr
		run.ParseError = parseErr.Error()
		logger.Warn().Err(parseErr).Msg("no review result extracted, leaving selections untouched")
		if !errors.Is(parseErr, ai.ErrNoReviewPayload) {
			emitMarker(ProcessingFailureMarker, "processing")
		}
	} else {
		// Past this point a disconnect no longer interrupts the writes.
		applyCtx := trace.ContextWithSpan(base, span)
		report := s.applier.Apply(applyCtx, run.BountyID, submissions, result)
		outcome.Report = &report
		run.Report = datatypes.JSONMap(report.ToMap())
		if selections, err := json.Marshal(result.Selections); err == nil {
			run.Selections = datatypes.JSON(selections)
		}
		if report.ResetError != "" {
			emitMarker(ProcessingFailureMarker, "processing")
		}
		s.cache.Invalidate(base)
	}

	run.State = models.ReviewStateDone
	outcome.State = run.State
	s.finish(base, logger, run)
	closeOutput()

	if outcome.Report != nil {
		event := ReviewCompletedEvent{
			RunID:    run.ID,
			BountyID: run.BountyID,
			Selected: outcome.Report.Applied,
		}
		if err := s.events.Publish(base, event); err != nil {
			logger.Warn().Err(err).Msg("failed to publish review event")
		}
	}

	span.SetStatus(codes.Ok, run.State)
	logger.Info().
		Str("state", run.State).
		Int("chunks", run.Chunks).
		Int("selected", len(result.Selections)).
		Bool("marker", outcome.Marker != "").
		Msg("review finished")
}

// finish stamps and stores the run record. Storage failures are only logged.
func (s *reviewService) finish(ctx context.Context, logger zerolog.Logger, run *models.ReviewRun) {
	run.FinishedAt = s.now().UTC()
	observability.ReviewRuns().WithLabelValues(run.State).Inc()
	observability.ReviewDuration().Observe(run.FinishedAt.Sub(run.StartedAt).Seconds())

	if s.runs == nil {
		return
	}
	if err := s.runs.Create(ctx, run); err != nil {
		logger.Warn().Err(err).Msg("failed to record review run")
	}
}

func (s *reviewService) History(ctx context.Context, bountyID string, limit int) ([]dto.ReviewRunResponse, error) {
	bountyID = strings.TrimSpace(bountyID)
	if _, err := s.bounties.GetByID(ctx, bountyID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrBountyNotFound
		}
		return nil, fmt.Errorf("load bounty: %w", err)
	}

	runs, err := s.runs.ListByBounty(ctx, bountyID, limit)
	if err != nil {
		return nil, fmt.Errorf("list review runs: %w", err)
	}
	return dto.NewReviewRunResponseSlice(runs), nil
}
