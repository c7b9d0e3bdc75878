package app

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"stockadvisor/internal/advisor"
	"stockadvisor/internal/audit"
	"stockadvisor/internal/cache"
	brcfg "stockadvisor/internal/config"
	"stockadvisor/internal/gateway/fundamentals"
	"stockadvisor/internal/gateway/provider"
	"stockadvisor/internal/gateway/search"
	"stockadvisor/internal/guardrail"
	"stockadvisor/internal/logger"
	"stockadvisor/internal/prompt"
	"stockadvisor/internal/reasoning"
	"stockadvisor/internal/scheduler"
	"stockadvisor/internal/transport/http/api"
	"stockadvisor/internal/workflow"
)

type AppBuilder struct {
	cfg *brcfg.Config

	modelFn        func(brcfg.LLMConfig, brcfg.Credentials) provider.ModelProvider
	searchFn       func(brcfg.SearchConfig, brcfg.Credentials) workflow.SearchProvider
	fundamentalsFn func(brcfg.FundamentalsConfig, brcfg.Credentials) workflow.FundamentalsProvider
	skipCredCheck  bool
}

type AppBuilderOption func(*AppBuilder)

// WithModelProvider replaces the LLM client, e.g. with a stub in tests.
func WithModelProvider(m provider.ModelProvider) AppBuilderOption {
	return func(b *AppBuilder) {
		b.modelFn = func(brcfg.LLMConfig, brcfg.Credentials) provider.ModelProvider { return m }
		b.skipCredCheck = true
	}
}

// WithDataProviders replaces the news search and fundamentals adapters.
func WithDataProviders(s workflow.SearchProvider, f workflow.FundamentalsProvider) AppBuilderOption {
	return func(b *AppBuilder) {
		b.searchFn = func(brcfg.SearchConfig, brcfg.Credentials) workflow.SearchProvider { return s }
		b.fundamentalsFn = func(brcfg.FundamentalsConfig, brcfg.Credentials) workflow.FundamentalsProvider { return f }
	}
}

func NewAppBuilder(cfg *brcfg.Config, opts ...AppBuilderOption) *AppBuilder {
	b := &AppBuilder{
		cfg:            cfg,
		modelFn:        buildModelProvider,
		searchFn:       buildSearchProvider,
		fundamentalsFn: buildFundamentalsProvider,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(b)
		}
	}
	return b
}

func buildModelProvider(cfg brcfg.LLMConfig, creds brcfg.Credentials) provider.ModelProvider {
	return provider.NewOpenAIChatClient(provider.OpenAIOptions{
		ID:           cfg.ID,
		BaseURL:      cfg.APIURL,
		APIKey:       creds.OpenAIKey,
		Model:        cfg.Model,
		Temperature:  cfg.Temperature,
		Timeout:      seconds(cfg.TimeoutSeconds),
		MaxRetries:   cfg.MaxRetries,
		ExtraHeaders: cfg.Headers,
	})
}

func buildSearchProvider(cfg brcfg.SearchConfig, creds brcfg.Credentials) workflow.SearchProvider {
	return search.NewTavilyClient(search.Options{
		BaseURL:           cfg.BaseURL,
		APIKey:            creds.TavilyKey,
		SearchDepth:       cfg.SearchDepth,
		Topic:             cfg.Topic,
		IncludeRawContent: cfg.IncludeRawContent,
		Timeout:           seconds(cfg.TimeoutSeconds),
		MaxRetries:        cfg.MaxRetries,
	})
}

func buildFundamentalsProvider(cfg brcfg.FundamentalsConfig, creds brcfg.Credentials) workflow.FundamentalsProvider {
	return fundamentals.NewAlphaVantageClient(fundamentals.Options{
		BaseURL:         cfg.BaseURL,
		APIKey:          creds.AlphaVantageKey,
		Timeout:         seconds(cfg.TimeoutSeconds),
		MaxRetries:      cfg.MaxRetries,
		BreakerFailures: cfg.BreakerThreshold,
		BreakerCooldown: seconds(cfg.BreakerCooldownSeconds),
	})
}

func seconds(n int) time.Duration {
	if n <= 0 {
		return 0
	}
	return time.Duration(n) * time.Second
}

// Build 按依赖顺序初始化：凭证校验 → 缓存/审计存储 → 外部适配器 → 任务图 → HTTP。
func (b *AppBuilder) Build(ctx context.Context) (*App, error) {
	if b.cfg == nil {
		return nil, fmt.Errorf("nil config")
	}
	cfg := b.cfg
	logger.SetLevel(cfg.App.LogLevel)

	if !b.skipCredCheck {
		if err := cfg.Credentials.Require(); err != nil {
			return nil, err
		}
	}

	app := &App{cfg: cfg}
	ok := false
	defer func() {
		if !ok {
			app.Close()
		}
	}()

	store, err := cache.Open(cfg.Cache.Path, cache.WithTTL(time.Duration(cfg.Cache.TTLDays)*24*time.Hour))
	if err != nil {
		return nil, fmt.Errorf("open cache: %w", err)
	}
	app.cache = store
	logger.Infof("✓ 基本面缓存就绪: %s (ttl=%s)", store.Path(), store.TTL())

	sinks := []guardrail.AuditSink{guardrail.LogSink{}}
	if cfg.Audit.Enabled {
		auditStore, err := audit.NewStore(cfg.Audit.Path)
		if err != nil {
			return nil, fmt.Errorf("open audit store: %w", err)
		}
		app.audit = auditStore
		sinks = append(sinks, auditStore)
	}

	prompts, err := prompt.NewRegistry(cfg.Prompt.Path)
	if err != nil {
		return nil, fmt.Errorf("load prompts: %w", err)
	}
	prompts.Watch()

	reasoner, err := reasoning.NewReasoner(b.modelFn(cfg.LLM, cfg.Credentials), prompts)
	if err != nil {
		return nil, err
	}

	graph, err := workflow.NewAdvisorGraph(workflow.Deps{
		Search:         b.searchFn(cfg.Search, cfg.Credentials),
		Fundamentals:   b.fundamentalsFn(cfg.Fundamentals, cfg.Credentials),
		Cache:          store,
		Reasoner:       reasoner,
		Guardrail:      guardrail.NewPolicy(sinks...),
		MaxNewsResults: cfg.Search.MaxResults,
		NodeTimeout:    seconds(cfg.Workflow.NodeTimeoutSeconds),
	})
	if err != nil {
		return nil, err
	}
	app.advisor = advisor.NewCoordinator(workflow.NewExecutor(graph),
		advisor.WithRunTimeout(seconds(cfg.Workflow.RunTimeoutSeconds)))

	serverCfg := api.ServerConfig{Addr: cfg.HTTP.Addr, Advisor: app.advisor, CORSOrigins: cfg.HTTP.CORSOrigins}
	if app.audit != nil {
		serverCfg.Audit = app.audit
	}
	app.http, err = api.NewServer(serverCfg)
	if err != nil {
		return nil, err
	}

	if iv := strings.TrimSpace(cfg.Cache.SweepInterval); iv != "" {
		d, valid := scheduler.ParseIntervalDuration(iv)
		if !valid {
			return nil, fmt.Errorf("invalid cache.sweep_interval %q", iv)
		}
		app.sweeper = scheduler.NewAlignedScheduler("cache-sweep", d, 0)
		app.sweeper.RunImmediately = true
	}

	app.Summary = b.summary()
	ok = true
	return app, nil
}

func (b *AppBuilder) summary() *StartupSummary {
	cfg := b.cfg
	src := "built-in"
	if p := strings.TrimSpace(cfg.Prompt.Path); p != "" {
		if _, err := os.Stat(p); err == nil {
			src = p + " (watched)"
		}
	}
	auditPath := "disabled"
	if cfg.Audit.Enabled {
		auditPath = cfg.Audit.Path
	}
	return &StartupSummary{
		Env:          cfg.App.Env,
		HTTPAddr:     cfg.HTTP.Addr,
		Model:        cfg.LLM.Model,
		SearchDepth:  cfg.Search.SearchDepth,
		MaxNews:      cfg.Search.MaxResults,
		CachePath:    cfg.Cache.Path,
		CacheTTL:     fmt.Sprintf("%dd", cfg.Cache.TTLDays),
		Sweep:        cfg.Cache.SweepInterval,
		AuditPath:    auditPath,
		PromptSource: src,
		NodeTimeout:  seconds(cfg.Workflow.NodeTimeoutSeconds).String(),
		RunTimeout:   seconds(cfg.Workflow.RunTimeoutSeconds).String(),
	}
}
