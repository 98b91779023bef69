package providers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"google.golang.org/genai"

	"github.com/ibeckermayer/trendpersona/internal/config"
	"github.com/ibeckermayer/trendpersona/internal/retry"
)

// GeminiProvider implements Completer using the Gemini API
type GeminiProvider struct {
	client *genai.Client
	model  string
}

// NewGeminiProvider creates a new Gemini provider
func NewGeminiProvider(ctx context.Context, apiKey, model string) (*GeminiProvider, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("gemini API key is required")
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	return &GeminiProvider{client: client, model: model}, nil
}

func (g *GeminiProvider) Name() string  { return config.ProviderGemini }
func (g *GeminiProvider) Model() string { return g.model }

// Complete sends a single user turn and returns the concatenated text parts
func (g *GeminiProvider) Complete(ctx context.Context, req Request) (string, error) {
	resp, err := g.client.Models.GenerateContent(ctx, g.model,
		[]*genai.Content{genai.NewContentFromText(req.Prompt, genai.RoleUser)},
		generateConfig(req),
	)
	if err != nil {
		return "", classifyGeminiError(err)
	}

	var sb strings.Builder
	if len(resp.Candidates) > 0 && resp.Candidates[0].Content != nil {
		for _, part := range resp.Candidates[0].Content.Parts {
			if part != nil {
				sb.WriteString(part.Text)
			}
		}
	}

	text := strings.TrimSpace(sb.String())
	if text == "" {
		return "", retry.Transient(fmt.Errorf("gemini returned empty response"))
	}
	return text, nil
}

// generateConfig maps the sampling options of req. Zero values leave the
// model defaults in place, except temperature.
func generateConfig(req Request) *genai.GenerateContentConfig {
	cfg := &genai.GenerateContentConfig{
		Temperature: genai.Ptr(float32(req.Temperature)),
	}
	if req.TopP > 0 {
		cfg.TopP = genai.Ptr(float32(req.TopP))
	}
	if req.TopK > 0 {
		cfg.TopK = genai.Ptr(float32(req.TopK))
	}
	if req.MaxTokens > 0 {
		cfg.MaxOutputTokens = int32(req.MaxTokens)
	}
	return cfg
}

// classifyGeminiError maps API errors onto retry kinds. RESOURCE_EXHAUSTED is
// a quota problem: retrying inside the same cycle only burns more quota.
func classifyGeminiError(err error) error {
	code := 0
	var apiErr genai.APIError
	var apiErrPtr *genai.APIError
	switch {
	case errors.As(err, &apiErr):
		code = apiErr.Code
	case errors.As(err, &apiErrPtr):
		code = apiErrPtr.Code
	default:
		return retry.Transient(fmt.Errorf("failed to call Gemini API: %w", err))
	}

	wrapped := fmt.Errorf("gemini API error: %w", err)
	if code == http.StatusTooManyRequests {
		return retry.Quota(wrapped)
	}
	return retry.FromStatus(code, wrapped)
}
