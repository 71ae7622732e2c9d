package ai

import (
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

var (
	// ErrNoReviewPayload indicates the model output contains no JSON candidate at all.
	ErrNoReviewPayload = errors.New("no review payload found")
	// ErrMalformedReview indicates a candidate was found but is not valid JSON.
	ErrMalformedReview = errors.New("malformed review payload")
	// ErrMissingSelections indicates the payload lacks an array-shaped top_submissions key.
	ErrMissingSelections = errors.New("review payload missing top_submissions")
)

var (
	fencedJSONPattern = regexp.MustCompile("(?is)```json[ \t]*\r?\n?(.*?)```")
	braceSpanPattern  = regexp.MustCompile(`(?s)\{.*\}`)
	fenceMarkers      = strings.NewReplacer("```json", "", "```JSON", "", "```", "")
)

const reviewSchema = `{
	"type": "object",
	"required": ["top_submissions"],
	"properties": {
		"top_submissions": {"type": "array"}
	}
}`

var reviewPayloadSchema = jsonschema.MustCompileString("review.json", reviewSchema)

// Selection is one submission chosen by the judge together with its feedback.
type Selection struct {
	SubmissionID string `json:"submissionId"`
	Feedback     string `json:"feedback"`
}

// ReviewResult is the structured outcome parsed out of a judge's output.
type ReviewResult struct {
	Selections []Selection `json:"selections"`
}

// ExtractReview pulls the top_submissions payload out of free-form model output.
// A fenced json block wins over a bare brace span; prose around either is ignored.
func ExtractReview(text string) (ReviewResult, error) {
	if match := fencedJSONPattern.FindStringSubmatch(text); match != nil {
		return parseCandidate(match[1])
	}

	span := braceSpanPattern.FindString(text)
	if span == "" {
		return ReviewResult{}, ErrNoReviewPayload
	}

	result, err := parseCandidate(span)
	if err == nil || !errors.Is(err, ErrMalformedReview) {
		return result, err
	}

	// The greedy span also swallows braces in trailing or leading prose.
	if scanned, ok := scanObjects(text); ok {
		return scanned, nil
	}
	return ReviewResult{}, err
}

func parseCandidate(candidate string) (ReviewResult, error) {
	cleaned := strings.TrimSpace(fenceMarkers.Replace(candidate))
	if cleaned == "" {
		return ReviewResult{}, ErrNoReviewPayload
	}

	var document interface{}
	if err := json.Unmarshal([]byte(cleaned), &document); err != nil {
		return ReviewResult{}, fmt.Errorf("%w: %v", ErrMalformedReview, err)
	}

	return fromDocument(document)
}

func fromDocument(document interface{}) (ReviewResult, error) {
	if err := reviewPayloadSchema.Validate(document); err != nil {
		return ReviewResult{}, fmt.Errorf("%w: %v", ErrMissingSelections, err)
	}

	entries := document.(map[string]interface{})["top_submissions"].([]interface{})
	selections := make([]Selection, 0, len(entries))
	for _, entry := range entries {
		object, ok := entry.(map[string]interface{})
		if !ok {
			continue
		}
		id, idOK := object["id"].(string)
		feedback, feedbackOK := object["feedback"].(string)
		id = strings.TrimSpace(id)
		if !idOK || !feedbackOK || id == "" {
			continue
		}
		selections = append(selections, Selection{SubmissionID: id, Feedback: strings.TrimSpace(feedback)})
	}

	return ReviewResult{Selections: selections}, nil
}

func scanObjects(text string) (ReviewResult, bool) {
	for offset := 0; offset < len(text); offset++ {
		if text[offset] != '{' {
			continue
		}
		decoder := json.NewDecoder(strings.NewReader(text[offset:]))
		var document interface{}
		if err := decoder.Decode(&document); err != nil {
			continue
		}
		if result, err := fromDocument(document); err == nil {
			return result, true
		}
	}
	return ReviewResult{}, false
}
