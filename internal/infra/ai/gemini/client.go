package gemini

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"google.golang.org/genai"

	"github.com/bryanwahyu/webtaxon/internal/domain/classification"
)

const defaultModel = "gemini-2.0-flash"

// Client generates classifications with the Gemini API.
type Client struct {
	client *genai.Client
	model  string
}

func NewClient(ctx context.Context, apiKey, model string) (*Client, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("gemini API key is required")
	}
	if model == "" {
		model = defaultModel
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create gemini client: %w", err)
	}
	return &Client{client: client, model: model}, nil
}

func (c *Client) Generate(ctx context.Context, prompt string) (classification.Reply, error) {
	resp, err := c.client.Models.GenerateContent(ctx, c.model, genai.Text(prompt), nil)
	if err != nil {
		return classification.Reply{}, fmt.Errorf("gemini generate failed: %w", err)
	}
	return interpret(resp)
}

// finish reasons that mean the candidate was withheld for policy reasons
var blockedFinish = map[genai.FinishReason]bool{
	genai.FinishReason("SAFETY"):             true,
	genai.FinishReason("PROHIBITED_CONTENT"): true,
	genai.FinishReason("BLOCKLIST"):          true,
	genai.FinishReason("SPII"):               true,
	genai.FinishReason("RECITATION"):         true,
}

func interpret(resp *genai.GenerateContentResponse) (classification.Reply, error) {
	if resp == nil {
		return classification.Reply{}, errors.New("empty gemini response")
	}
	if fb := resp.PromptFeedback; fb != nil && fb.BlockReason != "" {
		reason := string(fb.BlockReason)
		if fb.BlockReasonMessage != "" {
			reason += ": " + fb.BlockReasonMessage
		}
		return classification.Reply{BlockReason: reason}, nil
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0] == nil {
		return classification.Reply{}, errors.New("no candidates returned")
	}

	cand := resp.Candidates[0]
	if blockedFinish[cand.FinishReason] {
		return classification.Reply{BlockReason: string(cand.FinishReason)}, nil
	}

	var sb strings.Builder
	if cand.Content != nil {
		for _, part := range cand.Content.Parts {
			if part != nil {
				sb.WriteString(part.Text)
			}
		}
	}
	return classification.Reply{Text: sb.String()}, nil
}
