package openai

import (
	"context"
	"fmt"
	"strings"

	openai "github.com/sashabaranov/go-openai"

	"github.com/kailas-cloud/newsdex/internal/domain"
)

const summaryPrompt = "Summarize the following news article in two or three sentences. " +
	"Use only facts stated in the text. Reply with the summary alone."

// SummarizerConfig holds the chat completion settings.
type SummarizerConfig struct {
	APIKey    string
	BaseURL   string
	Model     string
	MaxTokens int
}

// Summarizer condenses article leads with a chat completion model.
type Summarizer struct {
	client    *openai.Client
	model     string
	maxTokens int
}

// NewSummarizer creates an OpenAI-compatible summarizer.
func NewSummarizer(cfg SummarizerConfig) *Summarizer {
	return &Summarizer{
		client:    newClient(cfg.APIKey, cfg.BaseURL),
		model:     cfg.Model,
		maxTokens: cfg.MaxTokens,
	}
}

// Summarize returns a short summary of text. Sampling is disabled for stable output.
func (s *Summarizer) Summarize(ctx context.Context, text string) (string, error) {
	resp, err := s.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       s.model,
		MaxTokens:   s.maxTokens,
		Temperature: 0,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: summaryPrompt},
			{Role: openai.ChatMessageRoleUser, Content: text},
		},
	})
	if err != nil {
		return "", parseAPIError(err, "summarization", domain.ErrSummarization)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("empty completion: %w", domain.ErrSummarization)
	}

	summary := strings.TrimSpace(resp.Choices[0].Message.Content)
	if summary == "" {
		return "", fmt.Errorf("blank completion: %w", domain.ErrSummarization)
	}
	return summary, nil
}
