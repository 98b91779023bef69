package agent

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/ibeckermayer/trendpersona/internal/cache"
	"github.com/ibeckermayer/trendpersona/internal/config"
	"github.com/ibeckermayer/trendpersona/internal/generator"
	"github.com/ibeckermayer/trendpersona/internal/poster"
	"github.com/ibeckermayer/trendpersona/internal/store"
	"github.com/ibeckermayer/trendpersona/internal/trends"
	"github.com/ibeckermayer/trendpersona/internal/types"
)

// ErrNotConfigured is returned by components whose credentials are missing
var ErrNotConfigured = errors.New("not configured")

// TrendSource lists current trends
type TrendSource interface {
	Top(ctx context.Context) ([]types.Trend, error)
}

// Writer produces post text
type Writer interface {
	Generate(ctx context.Context, topic string) (*generator.Result, error)
	Enhance(ctx context.Context, text string, persona types.Category) (*generator.Result, error)
	QuotaPaused() (bool, time.Time)
}

// Publisher sends posts and verifies credentials
type Publisher interface {
	Post(ctx context.Context, text string) (string, error)
	Verify(ctx context.Context) (*poster.User, error)
}

// Components are the config-dependent collaborators, rebuilt on every
// settings change.
type Components struct {
	Trends    TrendSource
	Writer    Writer
	Publisher Publisher
	LLM       generator.Provider
	Closers   []io.Closer
}

func (c Components) close(log *logrus.Entry) {
	for _, closer := range c.Closers {
		if err := closer.Close(); err != nil {
			log.WithError(err).Warn("Failed to close component")
		}
	}
}

// BuildFunc creates Components for a config
type BuildFunc func(ctx context.Context, cfg *config.Config) (Components, error)

// NewBuilder returns the production BuildFunc backed by st
func NewBuilder(st *store.Store, logger *logrus.Logger) BuildFunc {
	return func(ctx context.Context, cfg *config.Config) (Components, error) {
		var comps Components

		source, err := trends.NewSource(cfg.Trends)
		if err != nil {
			return comps, err
		}
		comps.Trends = trends.New(source, cfg.Trends.ScanRows, cfg.Trends.Limit, logger)

		if cfg.XReady() {
			comps.Publisher = poster.New(cfg.X, logger)
		} else {
			comps.Publisher = unconfiguredPublisher{}
		}

		if cfg.LLM.APIKey == "" {
			logger.WithField("provider", cfg.LLM.Provider).Warn("No LLM API key configured, generation disabled")
			comps.Writer = unconfiguredWriter{provider: cfg.LLM.Provider}
			return comps, nil
		}

		llm, err := generator.NewProvider(ctx, cfg.LLM, cfg.Debug.SaveArtifacts, logger)
		if err != nil {
			return comps, fmt.Errorf("failed to create LLM provider: %w", err)
		}
		comps.LLM = llm

		var topicCache generator.Cache = st.TopicCache()
		if cfg.LLM.CacheBackend == config.CacheRedis {
			rc, err := cache.Dial(ctx, cfg.LLM.RedisURL, logger)
			if err != nil {
				return comps, err
			}
			topicCache = rc
			comps.Closers = append(comps.Closers, rc)
		}

		ttl := time.Duration(cfg.LLM.CacheTTLHours) * time.Hour
		classifier := generator.NewClassifier(llm, topicCache, ttl, logger)
		comps.Writer = generator.New(llm, classifier, st, generator.OptionsFromConfig(cfg.LLM, cfg.X), logger)

		return comps, nil
	}
}

// unconfiguredWriter stands in for the generator until an API key is set
type unconfiguredWriter struct {
	provider string
}

func (w unconfiguredWriter) Generate(context.Context, string) (*generator.Result, error) {
	return nil, fmt.Errorf("%w: %s API key", ErrNotConfigured, w.provider)
}

func (w unconfiguredWriter) Enhance(context.Context, string, types.Category) (*generator.Result, error) {
	return nil, fmt.Errorf("%w: %s API key", ErrNotConfigured, w.provider)
}

func (unconfiguredWriter) QuotaPaused() (bool, time.Time) { return false, time.Time{} }

// unconfiguredPublisher stands in for the X client until credentials are set
type unconfiguredPublisher struct{}

func (unconfiguredPublisher) Post(context.Context, string) (string, error) {
	return "", fmt.Errorf("%w: X credentials", ErrNotConfigured)
}

func (unconfiguredPublisher) Verify(context.Context) (*poster.User, error) {
	return nil, fmt.Errorf("%w: X credentials", ErrNotConfigured)
}
