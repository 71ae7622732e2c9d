package service

import (
	"context"
	"fmt"

	"github.com/noah-isme/monquest-api/internal/models"
	"github.com/noah-isme/monquest-api/pkg/ai"
)

const closingInstructions = "\n\nInstructions:\n" +
	"Output a single JSON block strictly in this exact format. Do NOT provide any conversational text, thinking process, or preamble. Just the JSON:\n\n" +
	"```json\n" +
	"{\n" +
	"  \"top_submissions\": [\n" +
	"    { \"id\": \"submission_id\", \"feedback\": \"Provide 1-2 short sentences of punchy, concise feedback explaining why this was chosen.\" }\n" +
	"  ]\n" +
	"}\n" +
	"```\n"

// PromptBuilder assembles the judge prompt for one bounty. Each submission's
// images follow its text directly.
type PromptBuilder struct {
	attachments *AttachmentExtractor
}

// NewPromptBuilder constructs a builder using the given extractor.
func NewPromptBuilder(attachments *AttachmentExtractor) *PromptBuilder {
	return &PromptBuilder{attachments: attachments}
}

// Build returns the prompt for bounty and submissions, keeping submissions in
// the order given.
func (b *PromptBuilder) Build(ctx context.Context, bounty models.Bounty, submissions []models.Submission) ai.Prompt {
	prompt := make(ai.Prompt, 0, len(submissions)+2)
	prompt = append(prompt, ai.TextSegment{Text: openingInstructions(bounty)})

	for i, submission := range submissions {
		prompt = append(prompt, ai.TextSegment{
			Text: fmt.Sprintf("\n--- Submission %d (ID: %s) ---\nContent: %s\n", i+1, submission.ID, submission.Content),
		})
		if b.attachments == nil {
			continue
		}
		for _, image := range b.attachments.Extract(ctx, submission.Content) {
			prompt = append(prompt, image)
		}
	}

	return append(prompt, ai.TextSegment{Text: closingInstructions})
}

func openingInstructions(bounty models.Bounty) string {
	return fmt.Sprintf("You are an expert judge for a bounty contest.\n"+
		"Bounty Title: %s\n"+
		"Bounty Description: %s\n\n"+
		"Please analyze the following submissions and select the top 3 best ones based on quality, relevance, and creativity.\n"+
		"If a submission has images, consider them in your evaluation.\n",
		bounty.Title, bounty.Description)
}
