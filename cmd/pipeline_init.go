package main

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/fintora/counsel/infrastructure/llm"
	"github.com/fintora/counsel/infrastructure/middleware"
	"github.com/fintora/counsel/internal/engine"
	"github.com/fintora/counsel/internal/store"
)

// pipelineEnv holds the initialized store and pipeline shared by the
// serve/ask commands.
type pipelineEnv struct {
	Store    store.Store
	Pipeline *engine.Pipeline
}

// Close releases resources held by the pipeline environment.
func (pe *pipelineEnv) Close() {
	if pe.Store != nil {
		_ = pe.Store.Close()
	}
}

// initStore opens the configured database backend.
func initStore(ctx context.Context) (store.Store, error) {
	switch cfg.Store.Driver {
	case "sqlite":
		return store.NewSQLite(cfg.Store.DatabaseURL)
	case "postgres":
		return store.NewPostgres(ctx, cfg.Store.DatabaseURL, nil)
	default:
		return nil, eris.Errorf("unknown store driver %q", cfg.Store.Driver)
	}
}

// initRegistry builds the provider registry with the configured middleware
// chain applied to every client.
func initRegistry(metrics *middleware.PrometheusMetrics) *llm.Registry {
	defaults := []llm.Middleware{
		llm.TimeoutMiddleware(cfg.Engine.AnswerTimeout()),
	}
	if cfg.Engine.RateLimit.Enabled {
		defaults = append(defaults, llm.RateLimitMiddleware(
			rate.Limit(cfg.Engine.RateLimit.RequestsPerSecond),
			cfg.Engine.RateLimit.Burst,
		))
	}
	if cfg.Engine.Retry.Enabled {
		defaults = append(defaults, llm.RetryMiddleware(
			cfg.Engine.Retry.MaxRetries,
			time.Duration(cfg.Engine.Retry.BaseDelayMs)*time.Millisecond,
			time.Duration(cfg.Engine.Retry.MaxDelaySecs)*time.Second,
		))
	}

	providers := map[string]llm.ProviderConfig{
		"anthropic": {
			Type:         "anthropic",
			APIKey:       cfg.Providers.AnthropicKey,
			EnvVar:       "ANTHROPIC_API_KEY",
			DefaultModel: llm.AnthropicDefaultModel,
		},
		"openai": {
			Type:         "openai",
			APIKey:       cfg.Providers.OpenAIKey,
			EnvVar:       "OPENAI_API_KEY",
			DefaultModel: llm.OpenAIDefaultModel,
		},
		"google": {
			Type:         "google",
			APIKey:       cfg.Providers.GoogleKey,
			EnvVar:       "GOOGLE_API_KEY",
			DefaultModel: llm.GoogleDefaultModel,
		},
	}
	for name, pc := range providers {
		pc.Middleware = []llm.Middleware{
			llm.TracingMiddleware(name),
			llm.MetricsMiddleware(name, metrics),
		}
		providers[name] = pc
	}

	return llm.NewRegistry(llm.RegistryConfig{
		Providers:         providers,
		DefaultMiddleware: defaults,
	})
}

// initPipeline sets up the store, provider registry, and all pipeline
// stages. Callers should defer env.Close().
func initPipeline(ctx context.Context) (*pipelineEnv, error) {
	st, err := initStore(ctx)
	if err != nil {
		return nil, err
	}

	if err := st.Migrate(ctx); err != nil {
		_ = st.Close()
		return nil, eris.Wrap(err, "migrate store")
	}

	metrics := middleware.NewPrometheusMetrics()
	registry := initRegistry(metrics)

	keywords, err := cfg.GuardKeywords()
	if err != nil {
		_ = st.Close()
		return nil, err
	}
	guard := engine.NewScopeGuard(keywords)

	answerer, err := engine.NewAnswerer(registry, engine.AnswererConfig{
		Targets:        cfg.Engine.Targets,
		SystemPrompt:   cfg.Engine.SystemPrompt,
		Temperature:    cfg.Engine.Temperature,
		MaxTokens:      cfg.Engine.MaxTokens,
		Timeout:        cfg.Engine.AnswerTimeout(),
		TokenBudget:    cfg.Engine.TokenBudget,
		MaxConcurrency: cfg.Engine.MaxConcurrency,
	})
	if err != nil {
		_ = st.Close()
		return nil, err
	}

	consolidator, err := engine.NewConsolidator(registry, engine.ConsolidatorConfig{
		Judge:       cfg.Engine.Judge,
		Temperature: cfg.Engine.Temperature,
		MaxTokens:   cfg.Engine.MaxTokens,
		Timeout:     cfg.Engine.AnswerTimeout(),
	})
	if err != nil {
		_ = st.Close()
		return nil, err
	}

	rater, err := engine.NewRater(registry, engine.RaterConfig{
		Judge:          cfg.Engine.Judge,
		Temperature:    cfg.Engine.Temperature,
		MaxTokens:      cfg.Engine.MaxTokens,
		Timeout:        cfg.Engine.RatingTimeout(),
		MaxConcurrency: cfg.Engine.MaxConcurrency,
	})
	if err != nil {
		_ = st.Close()
		return nil, err
	}

	pipeline, err := engine.NewPipeline(guard, answerer, consolidator, rater, st, metrics)
	if err != nil {
		_ = st.Close()
		return nil, err
	}

	zap.L().Info("pipeline initialized",
		zap.Int("targets", len(cfg.Engine.Targets)),
		zap.String("judge", cfg.Engine.Judge.Ref()),
		zap.String("store", cfg.Store.Driver),
	)

	return &pipelineEnv{Store: st, Pipeline: pipeline}, nil
}
