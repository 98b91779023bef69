package generator

import (
	"context"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/ibeckermayer/trendpersona/internal/generator/providers"
	"github.com/ibeckermayer/trendpersona/internal/metrics"
	"github.com/ibeckermayer/trendpersona/internal/retry"
	"github.com/ibeckermayer/trendpersona/internal/types"
)

// Cache stores topic classifications with a TTL. Implemented by the sqlite
// topic cache and the redis cache.
type Cache interface {
	Get(ctx context.Context, topic string) (types.Category, bool, error)
	Set(ctx context.Context, topic string, category types.Category, ttl time.Duration) error
}

// NormalizeTopic trims, collapses whitespace and lower-cases a topic so
// "  Deprem " and "deprem" share a cache entry.
func NormalizeTopic(topic string) string {
	return strings.ToLower(strings.Join(strings.Fields(topic), " "))
}

// Classification is the outcome of Classify
type Classification struct {
	Category types.Category `json:"category"`
	Cached   bool           `json:"cached"`
	Fallback bool           `json:"fallback"`
}

// Classifier maps topics onto persona categories with one LLM call per
// uncached topic.
type Classifier struct {
	provider providers.Completer
	cache    Cache
	ttl      time.Duration
	quota    *QuotaGuard
	log      *logrus.Entry
}

// NewClassifier creates a classifier. cache may be nil.
func NewClassifier(provider providers.Completer, cache Cache, ttl time.Duration, logger *logrus.Logger) *Classifier {
	return &Classifier{
		provider: provider,
		cache:    cache,
		ttl:      ttl,
		quota:    NewQuotaGuard(time.Minute, 30*time.Minute),
		log:      logger.WithField("component", "classifier"),
	}
}

// Quota exposes the classification cooldown
func (c *Classifier) Quota() *QuotaGuard { return c.quota }

// Classify never fails: any problem yields DefaultCategory with Fallback set.
func (c *Classifier) Classify(ctx context.Context, topic string) Classification {
	key := NormalizeTopic(topic)
	fallback := Classification{Category: types.DefaultCategory, Fallback: true}
	if key == "" {
		return fallback
	}
	log := c.log.WithField("topic", key)

	if c.cache != nil {
		category, ok, err := c.cache.Get(ctx, key)
		if err != nil {
			log.WithError(err).Warn("Topic cache lookup failed")
		} else if ok {
			metrics.ClassificationCache.WithLabelValues("hit").Inc()
			return Classification{Category: category, Cached: true}
		}
		metrics.ClassificationCache.WithLabelValues("miss").Inc()
	}

	if paused, until := c.quota.Paused(); paused {
		log.WithField("until", until).Info("Classification paused after quota exhaustion")
		return fallback
	}

	answer, err := c.provider.Complete(ctx, providers.Request{
		Kind:        "classify",
		Prompt:      classificationPrompt(topic),
		Temperature: 0.1,
		MaxTokens:   16,
	})
	metrics.LLMCalls.WithLabelValues("classify", metrics.Outcome(err)).Inc()
	if err != nil {
		if retry.IsQuota(err) {
			pause := c.quota.Fail()
			log.WithField("pause", pause.String()).Warn("LLM quota exhausted, classification falls back")
		} else {
			log.WithError(err).Warn("Classification failed")
		}
		return fallback
	}
	c.quota.Succeed()

	category, ok := types.ParseCategory(answer)
	if !ok {
		log.WithField("answer", answer).Warn("Unrecognized classification answer")
		return fallback
	}

	if c.cache != nil {
		if err := c.cache.Set(ctx, key, category, c.ttl); err != nil {
			log.WithError(err).Warn("Failed to cache classification")
		}
	}
	log.WithField("category", category).Debug("Classified topic")
	return Classification{Category: category}
}
