package store

import (
	"time"
)

// LLMExchange represents a prompt/response pair kept for debugging
type LLMExchange struct {
	Timestamp time.Time `json:"timestamp"`
	Kind      string    `json:"kind"`     // classify, generate, shorten, enhance
	Provider  string    `json:"provider"` // e.g. "gemini"
	Model     string    `json:"model"`
	Prompt    string    `json:"prompt"`
	Response  string    `json:"response"`
	Error     string    `json:"error,omitempty"`
	Duration  string    `json:"duration"`
}

// SaveLLMExchange writes an exchange to the llm artifact directory.
// Returns the path to the saved file.
func SaveLLMExchange(exchange LLMExchange) (string, error) {
	return SaveArtifact(StepLLM, exchange)
}
