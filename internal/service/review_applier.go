package service

import (
	"context"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/noah-isme/monquest-api/internal/models"
	"github.com/noah-isme/monquest-api/internal/observability"
	"github.com/noah-isme/monquest-api/pkg/ai"
)

// SelectionStore is the storage the applier writes review annotations to.
type SelectionStore interface {
	ResetSelections(ctx context.Context, bountyID string) (int64, error)
	ApplySelection(ctx context.Context, bountyID, submissionID, feedback string) (int64, error)
}

// ApplyReport summarizes what one apply pass wrote.
type ApplyReport struct {
	Reset      int64             `json:"reset"`
	ResetError string            `json:"resetError,omitempty"`
	Applied    []string          `json:"applied"`
	Unknown    []string          `json:"unknown,omitempty"`
	Collapsed  int               `json:"collapsed,omitempty"`
	Failed     map[string]string `json:"failed,omitempty"`
}

// OK reports whether every intended write succeeded.
func (r ApplyReport) OK() bool {
	return r.ResetError == "" && len(r.Failed) == 0
}

// ToMap flattens the report for JSON storage.
func (r ApplyReport) ToMap() map[string]interface{} {
	out := map[string]interface{}{
		"reset":   r.Reset,
		"applied": r.Applied,
	}
	if r.ResetError != "" {
		out["resetError"] = r.ResetError
	}
	if len(r.Unknown) > 0 {
		out["unknown"] = r.Unknown
	}
	if r.Collapsed > 0 {
		out["collapsed"] = r.Collapsed
	}
	if len(r.Failed) > 0 {
		out["failed"] = r.Failed
	}
	return out
}

// SelectionApplier clears a bounty's previous selection and writes a new one.
type SelectionApplier struct {
	store       SelectionStore
	concurrency int
	logger      zerolog.Logger
}

// NewSelectionApplier constructs an applier issuing up to concurrency writes at once.
func NewSelectionApplier(store SelectionStore, concurrency int, logger zerolog.Logger) *SelectionApplier {
	if concurrency <= 0 {
		concurrency = 4
	}
	return &SelectionApplier{
		store:       store,
		concurrency: concurrency,
		logger:      logger.With().Str("component", "selection_applier").Logger(),
	}
}

// Apply resets every annotation of the bounty, then marks each selected
// submission. Ids outside known are skipped without a write and a repeated id
// keeps its last feedback. Writes are independent: a failed one is reported,
// never retried or rolled back. A failed reset skips the apply half.
func (a *SelectionApplier) Apply(ctx context.Context, bountyID string, known []models.Submission, result ai.ReviewResult) ApplyReport {
	report := ApplyReport{Applied: []string{}}

	reset, err := a.store.ResetSelections(ctx, bountyID)
	if err != nil {
		observability.ReviewWrites().WithLabelValues("reset_failed").Inc()
		a.logger.Error().Err(err).Str("bounty_id", bountyID).Msg("failed to reset selections")
		report.ResetError = err.Error()
		return report
	}
	report.Reset = reset
	observability.ReviewWrites().WithLabelValues("reset").Inc()

	belongs := make(map[string]struct{}, len(known))
	for _, submission := range known {
		belongs[submission.ID] = struct{}{}
	}

	var order []string
	feedback := make(map[string]string, len(result.Selections))
	for _, selection := range result.Selections {
		if _, ok := belongs[selection.SubmissionID]; !ok {
			report.Unknown = append(report.Unknown, selection.SubmissionID)
			observability.ReviewWrites().WithLabelValues("unknown").Inc()
			continue
		}
		if _, seen := feedback[selection.SubmissionID]; seen {
			report.Collapsed++
		} else {
			order = append(order, selection.SubmissionID)
		}
		feedback[selection.SubmissionID] = selection.Feedback
	}

	errs := make([]error, len(order))
	missing := make([]bool, len(order))

	var g errgroup.Group
	g.SetLimit(a.concurrency)
	for i, id := range order {
		g.Go(func() error {
			rows, err := a.store.ApplySelection(ctx, bountyID, id, feedback[id])
			errs[i] = err
			missing[i] = err == nil && rows == 0
			return nil
		})
	}
	_ = g.Wait()

	for i, id := range order {
		switch {
		case errs[i] != nil:
			if report.Failed == nil {
				report.Failed = map[string]string{}
			}
			report.Failed[id] = errs[i].Error()
			observability.ReviewWrites().WithLabelValues("failed").Inc()
			a.logger.Warn().Err(errs[i]).Str("bounty_id", bountyID).Str("submission_id", id).Msg("failed to apply selection")
		case missing[i]:
			report.Unknown = append(report.Unknown, id)
			observability.ReviewWrites().WithLabelValues("unknown").Inc()
		default:
			report.Applied = append(report.Applied, id)
			observability.ReviewWrites().WithLabelValues("applied").Inc()
		}
	}

	return report
}
