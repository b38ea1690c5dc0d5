package main

import (
	"context"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/devlongs/trade-guardian/internal/advisor"
	"github.com/devlongs/trade-guardian/internal/analysis"
	"github.com/devlongs/trade-guardian/internal/assess"
	rediscache "github.com/devlongs/trade-guardian/internal/cache/redis"
	"github.com/devlongs/trade-guardian/internal/config"
	"github.com/devlongs/trade-guardian/internal/output"
	"github.com/devlongs/trade-guardian/internal/pool"
)

// app holds the wired components for one command invocation
type app struct {
	cfg      *config.Config
	logger   *output.Logger
	assessor *assess.Assessor
	cache    *rediscache.Client
}

func newApp(ctx context.Context, cmd *cobra.Command) (*app, error) {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(cfgFile, cmd.Flags())
	if err != nil {
		return nil, err
	}

	lgr := output.NewLogger(cfg.Logging)

	registry, err := cfg.Tokens.Registry()
	if err != nil {
		return nil, err
	}
	provider, err := pool.NewProvider(cfg.Pool.Build(), registry, pool.SystemClock{})
	if err != nil {
		return nil, err
	}
	engine, err := analysis.NewEngine(cfg.Risk.Build())
	if err != nil {
		return nil, err
	}

	a := &app{cfg: cfg, logger: lgr}

	var cache advisor.Cache
	if cfg.Cache.Enabled && cfg.Advisor.Enabled {
		client, err := rediscache.New(ctx, rediscache.ClientConfig{
			Addr:     cfg.Cache.Addr,
			Password: cfg.Cache.Password,
			DB:       cfg.Cache.DB,
		})
		if err != nil {
			log.Warn().Err(err).Str("addr", cfg.Cache.Addr).Msg("Advisory cache unavailable, continuing without it")
		} else {
			a.cache = client
			cache = rediscache.NewAdvisoryCache(client, cfg.Cache.TTL)
		}
	}

	var annotator advisor.Annotator
	if cfg.Advisor.Enabled {
		gemini, err := advisor.NewGeminiClient(advisor.GeminiConfig{
			BaseURL: cfg.Advisor.BaseURL,
			APIKey:  cfg.Advisor.APIKey,
			Model:   cfg.Advisor.Model,
			Timeout: cfg.Advisor.Timeout,
		})
		if err != nil {
			log.Warn().Err(err).Msg("Advisory text disabled")
		} else {
			annotator = gemini
		}
	}

	adv := advisor.New(advisor.Config{
		Enabled:      cfg.Advisor.Enabled,
		MaxRetries:   cfg.Advisor.MaxRetries,
		RetryBackoff: cfg.Advisor.RetryBackoff,
		Timeout:      cfg.Advisor.Timeout,
	}, annotator, cache)

	a.assessor = assess.New(provider, engine, adv,
		assess.WithRecorder(lgr),
		assess.WithExact(assess.ExactConfig{
			Enabled:        cfg.Exact.Enabled,
			FeeDenominator: cfg.Exact.FeeDenominator,
			SafeBps:        cfg.Exact.SafeBps,
		}),
	)
	return a, nil
}

// Close releases external connections
func (a *app) Close() {
	if a.cache != nil {
		if err := a.cache.Close(); err != nil {
			a.logger.LogError(err, "closing redis")
		}
	}
}
