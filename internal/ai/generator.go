// Package ai wraps the generative content provider behind a narrow interface;
// callers only see "job details in, letter text out".
package ai

import (
	"context"
	"fmt"
	"strings"

	openai "github.com/sashabaranov/go-openai"

	"github.com/draftwise/coverletter-api/internal/domain"
)

type Generator interface {
	GenerateLetter(ctx context.Context, req *domain.GenerateLetterRequest) (string, error)
}

type OpenAIGenerator struct {
	client *openai.Client
	model  string
}

func NewOpenAIGenerator(apiKey, model string) *OpenAIGenerator {
	return &OpenAIGenerator{
		client: openai.NewClient(apiKey),
		model:  model,
	}
}

func (g *OpenAIGenerator) GenerateLetter(ctx context.Context, req *domain.GenerateLetterRequest) (string, error) {
	resp, err := g.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: g.model,
		Messages: []openai.ChatCompletionMessage{
			{
				Role:    openai.ChatMessageRoleSystem,
				Content: "You are a professional career writer. Write concise, specific cover letters. Never invent experience the candidate does not have.",
			},
			{
				Role:    openai.ChatMessageRoleUser,
				Content: buildPrompt(req),
			},
		},
	})
	if err != nil {
		return "", fmt.Errorf("letter generation: %w", err)
	}

	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("letter generation: empty response")
	}

	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}

func buildPrompt(req *domain.GenerateLetterRequest) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Write a cover letter for the position of %s", req.JobTitle)
	if req.CompanyName != "" {
		fmt.Fprintf(&b, " at %s", req.CompanyName)
	}
	b.WriteString(".\n\nJob description:\n")
	b.WriteString(req.JobDescription)

	if req.ResumeText != "" {
		b.WriteString("\n\nCandidate resume:\n")
		b.WriteString(req.ResumeText)
	}

	if req.Tone != "" {
		fmt.Fprintf(&b, "\n\nTone: %s.", req.Tone)
	}

	return b.String()
}

var _ Generator = (*OpenAIGenerator)(nil)
