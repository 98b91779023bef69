package providers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/genai"
)

func TestGenerateConfig(t *testing.T) {
	cfg := generateConfig(Request{Temperature: 0.8, TopP: 0.9, TopK: 40, MaxTokens: 16})
	require.NotNil(t, cfg.Temperature)
	assert.InDelta(t, 0.8, *cfg.Temperature, 1e-6)
	require.NotNil(t, cfg.TopP)
	assert.InDelta(t, 0.9, *cfg.TopP, 1e-6)
	require.NotNil(t, cfg.TopK)
	assert.Equal(t, float32(40), *cfg.TopK)
	assert.Equal(t, int32(16), cfg.MaxOutputTokens)

	cfg = generateConfig(Request{})
	assert.Nil(t, cfg.TopP)
	assert.Nil(t, cfg.TopK)
	assert.Zero(t, cfg.MaxOutputTokens)
}

func TestGeminiCompleteSendsMaxOutputTokens(t *testing.T) {
	var body map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.True(t, strings.HasSuffix(r.URL.Path, ":generateContent"), r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"candidates":[{"content":{"role":"model","parts":[{"text":" tech "}]}}]}`))
	}))
	defer srv.Close()

	client, err := genai.NewClient(context.Background(), &genai.ClientConfig{
		APIKey:      "test-key",
		Backend:     genai.BackendGeminiAPI,
		HTTPClient:  srv.Client(),
		HTTPOptions: genai.HTTPOptions{BaseURL: srv.URL + "/"},
	})
	require.NoError(t, err)
	g := &GeminiProvider{client: client, model: "gemini-2.5-flash"}

	text, err := g.Complete(context.Background(), Request{Kind: "classify", Prompt: "Galatasaray", MaxTokens: 16})
	require.NoError(t, err)
	assert.Equal(t, "tech", text)

	gen, ok := body["generationConfig"].(map[string]any)
	require.True(t, ok, "request has a generationConfig")
	assert.EqualValues(t, 16, gen["maxOutputTokens"])
}
