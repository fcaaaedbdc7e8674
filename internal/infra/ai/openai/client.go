package openai

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/sashabaranov/go-openai"

	"github.com/bryanwahyu/webtaxon/internal/domain/classification"
)

const (
	maxTokens    = 1024
	defaultModel = "gpt-4o-mini"
)

type Client struct {
	*openai.Client
	Model string
}

func NewClient(apiKey, model string) *Client {
	return &Client{Client: openai.NewClient(apiKey), Model: model}
}

// NewClientWithBaseURL targets an OpenAI-compatible endpoint.
func NewClientWithBaseURL(apiKey, baseURL, model string) *Client {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	return &Client{Client: openai.NewClientWithConfig(cfg), Model: model}
}

func (c *Client) Generate(ctx context.Context, prompt string) (classification.Reply, error) {
	model := c.Model
	if model == "" {
		model = defaultModel
	}
	req := openai.ChatCompletionRequest{
		Model: model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
	}
	// For reasoning models (o1/o3/o4/gpt-5*) use MaxCompletionTokens instead of MaxTokens
	if strings.HasPrefix(model, "o1") || strings.HasPrefix(model, "o3") || strings.HasPrefix(model, "o4") || strings.HasPrefix(model, "gpt-5") {
		req.MaxCompletionTokens = maxTokens
	} else {
		req.MaxTokens = maxTokens
	}

	resp, err := c.CreateChatCompletion(ctx, req)
	if err != nil {
		return classification.Reply{}, fmt.Errorf("failed to create chat completion: %w", err)
	}
	return interpret(resp)
}

// interpret maps a completion onto a Reply. A content filter stop or an explicit
// refusal is a block, not text.
func interpret(resp openai.ChatCompletionResponse) (classification.Reply, error) {
	if len(resp.Choices) == 0 {
		return classification.Reply{}, errors.New("no completion returned")
	}
	choice := resp.Choices[0]
	if choice.FinishReason == openai.FinishReasonContentFilter {
		return classification.Reply{BlockReason: string(openai.FinishReasonContentFilter)}, nil
	}
	if refusal := strings.TrimSpace(choice.Message.Refusal); refusal != "" {
		return classification.Reply{BlockReason: refusal}, nil
	}
	return classification.Reply{Text: choice.Message.Content}, nil
}
