package main

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/enrich-cli/internal/config"
	"github.com/sells-group/enrich-cli/internal/cost"
	"github.com/sells-group/enrich-cli/internal/features"
	"github.com/sells-group/enrich-cli/internal/homepage"
	"github.com/sells-group/enrich-cli/internal/pipeline"
	"github.com/sells-group/enrich-cli/internal/profile"
	"github.com/sells-group/enrich-cli/internal/resilience"
	"github.com/sells-group/enrich-cli/internal/store"
	anthropicpkg "github.com/sells-group/enrich-cli/pkg/anthropic"
	"github.com/sells-group/enrich-cli/pkg/bigpicture"
	"github.com/sells-group/enrich-cli/pkg/jina"
	"github.com/sells-group/enrich-cli/pkg/serper"
)

// stageEnv holds what every stage command shares: the optional store and
// the usage meter.
type stageEnv struct {
	Store store.Store // nil when store.driver is none
	Meter *cost.Meter
}

// Close releases resources held by the environment.
func (e *stageEnv) Close() {
	if e.Store != nil {
		_ = e.Store.Close()
	}
}

// Runner builds a pipeline runner over the environment.
func (e *stageEnv) Runner(limit int) *pipeline.Runner {
	return pipeline.NewRunner(
		pipeline.WithStore(e.Store),
		pipeline.WithMeter(e.Meter),
		pipeline.WithLimit(limit),
	)
}

// initEnv opens and migrates the store. Callers should defer env.Close().
func initEnv(ctx context.Context, c *config.Config) (*stageEnv, error) {
	st, err := initStore(ctx, c.Store)
	if err != nil {
		return nil, err
	}
	if st != nil {
		if err := st.Migrate(ctx); err != nil {
			_ = st.Close()
			return nil, eris.Wrap(err, "migrate store")
		}
		if n, err := st.DeleteExpired(ctx); err != nil {
			zap.L().Warn("store: prune expired cache entries failed", zap.Error(err))
		} else if n > 0 {
			zap.L().Debug("store: pruned expired cache entries", zap.Int("count", n))
		}
	}
	return &stageEnv{
		Store: st,
		Meter: cost.NewMeter(cost.NewCalculator(ratesFromConfig(c.Pricing))),
	}, nil
}

// initStore opens the configured store. Driver none yields a nil store.
func initStore(ctx context.Context, sc config.StoreConfig) (store.Store, error) {
	switch sc.Driver {
	case "sqlite":
		st, err := store.NewSQLite(sc.DatabaseURL)
		if err != nil {
			return nil, err
		}
		return st, nil
	case "postgres":
		st, err := store.NewPostgres(ctx, sc.DatabaseURL, nil)
		if err != nil {
			return nil, err
		}
		return st, nil
	case "none", "":
		return nil, nil
	default:
		return nil, eris.Errorf("unsupported store driver: %s", sc.Driver)
	}
}

// warnMissingCredentials logs unset credentials for a stage. The stage
// still runs; its upstream calls fail per row.
func warnMissingCredentials(c *config.Config, stage string) {
	for _, name := range c.MissingCredentials(stage) {
		zap.L().Warn("credential not set, upstream calls will fail", zap.String("stage", stage), zap.String("env", name))
	}
}

func ratesFromConfig(p config.PricingConfig) cost.Rates {
	rates := cost.DefaultRates()
	for name, m := range p.Anthropic {
		rates.Anthropic[name] = cost.ModelRate{
			Input:         m.Input,
			Output:        m.Output,
			CacheWriteMul: m.CacheWriteMul,
			CacheReadMul:  m.CacheReadMul,
		}
	}
	if p.Jina.PerMTok > 0 {
		rates.Jina.PerMTok = p.Jina.PerMTok
	}
	if p.DefaultPerMTok > 0 {
		rates.DefaultPerMTok = p.DefaultPerMTok
	}
	return rates
}

func cacheTTL(c *config.Config) time.Duration {
	return time.Duration(c.Store.CacheTTLHours) * time.Hour
}

func millis(ms int) time.Duration {
	return time.Duration(ms) * time.Millisecond
}

func newJinaClient(c *config.Config) jina.Client {
	return jina.NewClient(c.Jina.Key,
		jina.WithBaseURL(c.Jina.BaseURL),
		jina.WithSearchBaseURL(c.Jina.SearchBaseURL),
		jina.WithRateLimit(c.Jina.RateLimitRPS),
	)
}

// buildHomepageStage wires the search backend, cache and override table.
func buildHomepageStage(c *config.Config, env *stageEnv) (*homepage.Stage, error) {
	var searcher homepage.Searcher
	switch c.Search.Provider {
	case "jina":
		searcher = homepage.NewJinaSearcher(newJinaClient(c))
	default:
		searcher = homepage.NewSerperSearcher(serper.NewClient(c.Serper.Key,
			serper.WithBaseURL(c.Serper.BaseURL),
			serper.WithRateLimit(c.Serper.RateLimitRPS),
		))
	}
	searcher = homepage.NewCachedSearcher(searcher, env.Store, cacheTTL(c))

	overrides, err := homepage.LoadOverrides(c.Homepage.OverridesPath)
	if err != nil {
		return nil, err
	}

	var excluded []string
	if len(c.Homepage.ExcludeHosts) > 0 {
		excluded = c.Homepage.ExcludeHosts
	}
	resolver := homepage.NewResolver(searcher,
		homepage.WithOverrides(overrides),
		homepage.WithHeuristic(homepage.NewHeuristic(excluded)),
		homepage.WithQueryTemplate(c.Homepage.QueryTemplate),
		homepage.WithNumResults(c.Homepage.NumResults),
	)
	return homepage.NewStage(resolver, millis(c.Homepage.PacingMs)), nil
}

// buildProfileStage wires the company-data client and fallback table.
func buildProfileStage(c *config.Config, env *stageEnv) (*profile.Stage, error) {
	client := bigpicture.NewClient(c.BigPicture.Key,
		bigpicture.WithBaseURL(c.BigPicture.BaseURL),
		bigpicture.WithRateLimit(c.BigPicture.RateLimitRPS),
	)

	fallback, err := profile.LoadTable(c.Profile.FallbackPath)
	if err != nil {
		return nil, err
	}

	enricher := profile.NewEnricher(client,
		profile.WithFallback(fallback),
		profile.WithCache(env.Store, cacheTTL(c)),
		profile.WithRetry(c.Profile.MaxRetries, time.Duration(c.Profile.RetryDelaySecs)*time.Second),
	)
	return profile.NewStage(enricher, millis(c.Profile.PacingMs)), nil
}

// buildFeatureStage wires the reader proxy, the model client and the
// call window.
func buildFeatureStage(c *config.Config, env *stageEnv) *features.Stage {
	window := resilience.NewWindow(c.Anthropic.WindowSize, time.Duration(c.Anthropic.WindowSecs)*time.Second)
	extractor := features.NewExtractor(newJinaClient(c), anthropicpkg.NewClient(c.Anthropic.Key),
		features.WithModel(c.Anthropic.Model, int64(c.Anthropic.MaxTokens)),
		features.WithWindow(window),
		features.WithMeter(env.Meter),
		features.WithCache(env.Store, cacheTTL(c)),
		features.WithFetch(c.Features.FetchAttempts,
			millis(c.Features.FetchPauseMs),
			time.Duration(c.Features.FetchTimeoutSecs)*time.Second,
		),
		features.WithMaxContentChars(c.Features.MaxContentChars),
	)
	return features.NewStage(extractor, millis(c.Features.PacingMs))
}
