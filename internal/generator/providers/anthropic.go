package providers

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/ibeckermayer/trendpersona/internal/config"
	"github.com/ibeckermayer/trendpersona/internal/retry"
)

// AnthropicProvider implements Completer using Anthropic's Claude API
type AnthropicProvider struct {
	client *anthropic.Client
	model  string
}

// NewAnthropicProvider creates a new Anthropic provider. Extra options are
// passed to the SDK client (tests use option.WithBaseURL).
func NewAnthropicProvider(apiKey, model string, opts ...option.RequestOption) *AnthropicProvider {
	opts = append([]option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithMaxRetries(0),
	}, opts...)
	client := anthropic.NewClient(opts...)
	return &AnthropicProvider{
		client: &client,
		model:  model,
	}
}

func (c *AnthropicProvider) Name() string  { return config.ProviderAnthropic }
func (c *AnthropicProvider) Model() string { return c.model }

// Complete sends the prompt as a single user message
func (c *AnthropicProvider) Complete(ctx context.Context, req Request) (string, error) {
	maxTokens := int64(req.MaxTokens)
	if maxTokens <= 0 {
		maxTokens = 512
	}

	message, err := c.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:       anthropic.Model(c.model),
		MaxTokens:   maxTokens,
		Temperature: anthropic.Float(min(req.Temperature, 1)),
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(req.Prompt)),
		},
	})
	if err != nil {
		var apiErr *anthropic.Error
		if errors.As(err, &apiErr) {
			return "", retry.FromStatus(apiErr.StatusCode, fmt.Errorf("failed to call Claude API: %w", err))
		}
		return "", retry.Transient(fmt.Errorf("failed to call Claude API: %w", err))
	}

	var responseText string
	for _, block := range message.Content {
		if block.Type == "text" {
			responseText = block.Text
			break
		}
	}

	responseText = strings.TrimSpace(responseText)
	if responseText == "" {
		return "", retry.Transient(fmt.Errorf("Claude returned empty response"))
	}
	return responseText, nil
}
