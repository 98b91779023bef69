// Package generator classifies topics and writes persona posts with an LLM.
package generator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/failsafe-go/failsafe-go/retrypolicy"
	"github.com/sirupsen/logrus"

	"github.com/ibeckermayer/trendpersona/internal/config"
	"github.com/ibeckermayer/trendpersona/internal/generator/providers"
	"github.com/ibeckermayer/trendpersona/internal/metrics"
	"github.com/ibeckermayer/trendpersona/internal/retry"
	"github.com/ibeckermayer/trendpersona/internal/tweet"
	"github.com/ibeckermayer/trendpersona/internal/types"
)

var (
	ErrNoPrompt      = errors.New("no active prompt for persona")
	ErrTooLong       = errors.New("generated text does not fit the character limit")
	ErrQuotaPaused   = errors.New("generation paused after quota exhaustion")
	ErrEmptyResponse = errors.New("model returned no usable text")
)

// PromptSource supplies templates and placeholder values
type PromptSource interface {
	ActivePrompts(ctx context.Context) (map[string]string, error)
	PersonaSettings(ctx context.Context) (map[string]string, error)
}

// Options tunes generation calls
type Options struct {
	Temperature float64
	TopP        float64
	TopK        int
	MaxTokens   int
	MaxLength   int
	Retry       retry.Config
}

// OptionsFromConfig derives Options from the LLM and X sections
func OptionsFromConfig(llm config.LLMConfig, x config.XConfig) Options {
	return Options{
		Temperature: llm.Temperature,
		TopP:        llm.TopP,
		TopK:        llm.TopK,
		MaxTokens:   llm.MaxOutputTokens,
		MaxLength:   x.MaxLength,
		Retry: retry.Config{
			MaxAttempts: llm.MaxRetries + 1,
			BaseDelay:   2 * time.Second,
			MaxDelay:    30 * time.Second,
		},
	}
}

// Result is a generated post ready to send
type Result struct {
	Topic     string         `json:"topic"`
	Persona   types.Category `json:"persona"`
	Text      string         `json:"text"`
	Cached    bool           `json:"cached"`
	Fallback  bool           `json:"fallback"`
	Shortened bool           `json:"shortened"`
	Truncated bool           `json:"truncated"`
}

// Generator renders persona prompts and enforces the platform length
type Generator struct {
	provider   Provider
	classifier *Classifier
	prompts    PromptSource
	opts       Options
	quota      *QuotaGuard
	policy     retrypolicy.RetryPolicy[string]
	log        *logrus.Entry
}

// New creates a generator
func New(provider Provider, classifier *Classifier, prompts PromptSource, opts Options, logger *logrus.Logger) *Generator {
	if opts.MaxLength <= 0 || opts.MaxLength > tweet.MaxLength {
		opts.MaxLength = tweet.MaxLength
	}
	return &Generator{
		provider:   provider,
		classifier: classifier,
		prompts:    prompts,
		opts:       opts,
		quota:      NewQuotaGuard(5*time.Minute, time.Hour),
		policy:     retry.NewPolicy[string](opts.Retry),
		log:        logger.WithField("component", "generator"),
	}
}

// Classifier returns the topic classifier
func (g *Generator) Classifier() *Classifier { return g.classifier }

// Quota returns the generation cooldown
func (g *Generator) Quota() *QuotaGuard { return g.quota }

// QuotaPaused reports whether generation is cooling down after quota errors
func (g *Generator) QuotaPaused() (bool, time.Time) {
	return g.quota.Paused()
}

// Generate classifies topic, renders the persona prompt and returns a post
// that fits the length limit.
func (g *Generator) Generate(ctx context.Context, topic string) (*Result, error) {
	if paused, until := g.quota.Paused(); paused {
		return nil, fmt.Errorf("%w until %s", ErrQuotaPaused, until.Format(time.RFC3339))
	}

	class := g.classifier.Classify(ctx, topic)
	log := g.log.WithFields(logrus.Fields{"topic": topic, "persona": class.Category})

	tmpl, values, err := g.persona(ctx, class.Category)
	if err != nil {
		return nil, err
	}

	raw, err := g.complete(ctx, "generate", generationPrompt(tmpl, values, topic))
	if err != nil {
		return nil, err
	}

	res := &Result{
		Topic:    topic,
		Persona:  class.Category,
		Cached:   class.Cached,
		Fallback: class.Fallback,
	}
	if err := g.fit(ctx, raw, res); err != nil {
		return nil, err
	}

	log.WithFields(logrus.Fields{
		"length":    tweet.Length(res.Text),
		"shortened": res.Shortened,
		"truncated": res.Truncated,
	}).Info("Generated post")
	return res, nil
}

// Enhance rewrites operator text in the voice of persona. An empty persona
// means the default one.
func (g *Generator) Enhance(ctx context.Context, text string, persona types.Category) (*Result, error) {
	text = tweet.Sanitize(text)
	if text == "" {
		return nil, tweet.ErrEmpty
	}
	if paused, until := g.quota.Paused(); paused {
		return nil, fmt.Errorf("%w until %s", ErrQuotaPaused, until.Format(time.RFC3339))
	}
	if persona == "" {
		persona = types.DefaultCategory
	}

	tmpl, values, err := g.persona(ctx, persona)
	if err != nil {
		return nil, err
	}

	raw, err := g.complete(ctx, "enhance", enhancePrompt(RenderTemplate(tmpl, values), text, g.opts.MaxLength))
	if err != nil {
		return nil, err
	}

	res := &Result{Persona: persona}
	if err := g.fit(ctx, raw, res); err != nil {
		return nil, err
	}
	return res, nil
}

func (g *Generator) persona(ctx context.Context, category types.Category) (string, map[string]string, error) {
	prompts, err := g.prompts.ActivePrompts(ctx)
	if err != nil {
		return "", nil, fmt.Errorf("failed to load prompts: %w", err)
	}
	tmpl, ok := prompts[string(category)]
	if !ok || tmpl == "" {
		return "", nil, fmt.Errorf("%w: %s", ErrNoPrompt, category)
	}

	settings, err := g.prompts.PersonaSettings(ctx)
	if err != nil {
		return "", nil, fmt.Errorf("failed to load persona settings: %w", err)
	}
	return tmpl, personaValues(settings, g.opts.MaxLength), nil
}

// fit sanitizes raw output and makes it fit MaxLength: one shorten request,
// then a word-boundary cut.
func (g *Generator) fit(ctx context.Context, raw string, res *Result) error {
	text := tweet.Sanitize(raw)
	if text == "" {
		return ErrEmptyResponse
	}

	max := g.opts.MaxLength
	if tweet.Length(text) > max {
		g.log.WithField("length", tweet.Length(text)).Debug("Output too long, asking for a shorter version")
		short, err := g.complete(ctx, "shorten", shortenPrompt(text, max))
		switch {
		case err == nil:
			if s := tweet.Sanitize(short); s != "" {
				text = s
				res.Shortened = true
			}
		case ctx.Err() != nil:
			return ctx.Err()
		default:
			g.log.WithError(err).Warn("Shorten request failed, truncating")
		}
	}

	if tweet.Length(text) > max {
		text = tweet.Truncate(text, max)
		res.Truncated = true
		if text == "" {
			return ErrTooLong
		}
	}

	if err := tweet.Validate(text, max); err != nil {
		return err
	}
	res.Text = text
	return nil
}

// complete calls the provider under the retry policy and feeds quota
// failures into the guard.
func (g *Generator) complete(ctx context.Context, kind, prompt string) (string, error) {
	req := providers.Request{
		Kind:        kind,
		Prompt:      prompt,
		Temperature: g.opts.Temperature,
		TopP:        g.opts.TopP,
		TopK:        g.opts.TopK,
		MaxTokens:   g.opts.MaxTokens,
	}

	text, err := retry.Do(ctx, g.policy, func(ctx context.Context) (string, error) {
		return g.provider.Complete(ctx, req)
	})
	metrics.LLMCalls.WithLabelValues(kind, metrics.Outcome(err)).Inc()
	if err != nil {
		if retry.IsQuota(err) {
			pause := g.quota.Fail()
			_, until := g.quota.Paused()
			metrics.SetQuotaPause(until)
			g.log.WithFields(logrus.Fields{
				"kind":  kind,
				"pause": pause.String(),
			}).Warn("LLM quota exhausted, pausing generation")
		}
		return "", fmt.Errorf("failed to %s text: %w", kind, err)
	}

	g.quota.Succeed()
	metrics.SetQuotaPause(time.Time{})
	return text, nil
}
