package ai

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestExtractReviewFromFencedBlockWithProse(t *testing.T) {
	text := "prefix ```json\n{\"top_submissions\":[{\"id\":\"a\",\"feedback\":\"good\"}]}\n``` suffix"

	result, err := ExtractReview(text)
	require.NoError(t, err)
	require.Equal(t, []Selection{{SubmissionID: "a", Feedback: "good"}}, result.Selections)
}

func TestExtractReviewFallsBackToBraceSpan(t *testing.T) {
	text := `Here you go: {"top_submissions": [{"id": "s1", "feedback": "Sharp visuals."}, {"id": "s2", "feedback": "Clear write-up."}]} thanks`

	result, err := ExtractReview(text)
	require.NoError(t, err)
	require.Len(t, result.Selections, 2)
	require.Equal(t, "s1", result.Selections[0].SubmissionID)
	require.Equal(t, "Clear write-up.", result.Selections[1].Feedback)
}

func TestExtractReviewNoPayload(t *testing.T) {
	_, err := ExtractReview("I could not decide, sorry.")
	require.ErrorIs(t, err, ErrNoReviewPayload)
}

func TestExtractReviewTruncatedStreamHasNoPayload(t *testing.T) {
	_, err := ExtractReview("Thinking...```json\n{")
	require.ErrorIs(t, err, ErrNoReviewPayload)
}

func TestExtractReviewMalformedFencedBlock(t *testing.T) {
	_, err := ExtractReview("```json\n{\"top_submissions\": [\n```")
	require.ErrorIs(t, err, ErrMalformedReview)
}

func TestExtractReviewRequiresSelectionsArray(t *testing.T) {
	_, err := ExtractReview(`{"winners": []}`)
	require.ErrorIs(t, err, ErrMissingSelections)

	_, err = ExtractReview(`{"top_submissions": "s1"}`)
	require.ErrorIs(t, err, ErrMissingSelections)
}

func TestExtractReviewDropsIncompleteEntries(t *testing.T) {
	text := `{"top_submissions": [{"id": "s1"}, {"feedback": "orphan"}, "s3", {"id": 4, "feedback": "numeric"}, {"id": "s5", "feedback": "kept"}]}`

	result, err := ExtractReview(text)
	require.NoError(t, err)
	require.Equal(t, []Selection{{SubmissionID: "s5", Feedback: "kept"}}, result.Selections)
}

func TestExtractReviewKeepsDuplicates(t *testing.T) {
	text := `{"top_submissions": [{"id": "s1", "feedback": "first"}, {"id": "s1", "feedback": "second"}]}`

	result, err := ExtractReview(text)
	require.NoError(t, err)
	require.Len(t, result.Selections, 2)
}

func TestExtractReviewRecoversFromBracesInTrailingProse(t *testing.T) {
	text := `{"top_submissions": [{"id": "s1", "feedback": "solid"}]} and a stray } brace`

	result, err := ExtractReview(text)
	require.NoError(t, err)
	require.Equal(t, []Selection{{SubmissionID: "s1", Feedback: "solid"}}, result.Selections)
}

func TestExtractReviewToleratesBracesInFeedback(t *testing.T) {
	text := `{"top_submissions": [{"id": "s1", "feedback": "uses {curly} templates well"}]}`

	result, err := ExtractReview(text)
	require.NoError(t, err)
	require.Equal(t, "uses {curly} templates well", result.Selections[0].Feedback)
}

func TestExtractReviewRejectsNestedSelections(t *testing.T) {
	text := `Here you go: {"review": {"top_submissions": [{"id": "s1", "feedback": "nested"}]}}`

	result, err := ExtractReview(text)
	require.ErrorIs(t, err, ErrMissingSelections)
	require.Empty(t, result.Selections)
}
