package providers

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/ibeckermayer/trendpersona/internal/store"
)

// Request is one text completion
type Request struct {
	Kind        string // classify, generate, shorten, enhance
	Prompt      string
	Temperature float64
	TopP        float64
	TopK        int
	MaxTokens   int
}

// Completer is implemented by every LLM backend
type Completer interface {
	Complete(ctx context.Context, req Request) (string, error)
	Name() string
	Model() string
}

// Recorder saves every exchange as a debug artifact before returning it
type Recorder struct {
	Completer
	log *logrus.Entry
}

// NewRecorder wraps c
func NewRecorder(c Completer, logger *logrus.Logger) *Recorder {
	return &Recorder{Completer: c, log: logger.WithField("component", "llm")}
}

// Complete forwards to the wrapped provider and caches the prompt/response
func (r *Recorder) Complete(ctx context.Context, req Request) (string, error) {
	start := time.Now()
	text, err := r.Completer.Complete(ctx, req)

	exchange := store.LLMExchange{
		Timestamp: start,
		Kind:      req.Kind,
		Provider:  r.Name(),
		Model:     r.Model(),
		Prompt:    req.Prompt,
		Response:  text,
		Duration:  time.Since(start).String(),
	}
	if err != nil {
		exchange.Error = err.Error()
	}
	if cachePath, saveErr := store.SaveLLMExchange(exchange); saveErr != nil {
		r.log.WithError(saveErr).Warn("Failed to cache LLM exchange")
	} else {
		r.log.WithField("path", cachePath).Debug("Cached LLM exchange")
	}

	return text, err
}
