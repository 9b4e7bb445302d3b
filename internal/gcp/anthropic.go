package gcp

import (
	"context"
	"errors"
	"strings"

	sdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/rotisserie/eris"

	"github.com/Lllllllleong/routeingest/internal/resilience"
)

// AnthropicGenerator runs route extraction against the Anthropic Messages API
// as an alternative to Vertex AI.
type AnthropicGenerator struct {
	client    sdk.Client
	model     string
	maxTokens int64
}

// NewAnthropicGenerator creates a generator. SDK-level retries are disabled
// because every call already goes through the retry executor.
func NewAnthropicGenerator(apiKey, model string, maxTokens int64, opts ...option.RequestOption) *AnthropicGenerator {
	opts = append([]option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithMaxRetries(0),
	}, opts...)
	return &AnthropicGenerator{
		client:    sdk.NewClient(opts...),
		model:     model,
		maxTokens: maxTokens,
	}
}

// Generate implements the generative extraction call at temperature 0.
func (g *AnthropicGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	msg, err := g.client.Messages.New(ctx, sdk.MessageNewParams{
		Model:       sdk.Model(g.model),
		MaxTokens:   g.maxTokens,
		Temperature: sdk.Float(0),
		System:      []sdk.TextBlockParam{{Text: RouteExtractionSystemPrompt}},
		Messages:    []sdk.MessageParam{sdk.NewUserMessage(sdk.NewTextBlock(prompt))},
	})
	if err != nil {
		var apiErr *sdk.Error
		if errors.As(err, &apiErr) && resilience.IsTransientHTTPStatus(apiErr.StatusCode) {
			return "", resilience.NewTransientError(eris.Wrap(err, "anthropic: create message"), apiErr.StatusCode)
		}
		return "", eris.Wrap(err, "anthropic: create message")
	}

	var b strings.Builder
	for _, block := range msg.Content {
		if block.Type == "text" {
			b.WriteString(block.Text)
		}
	}
	return strings.TrimSpace(b.String()), nil
}
