package config

import (
	"strings"
)

// 默认值常量
const (
	defaultAppEnv             = "dev"
	defaultAppLogLevel        = "info"
	defaultAppLLMLogPath      = "data/logs/advisor-llm.log"
	defaultHTTPAddr           = ":8000"
	defaultCachePath          = "data/cache/overview_cache.db"
	defaultCacheTTLDays       = 7
	defaultCacheSweep         = "1d"
	defaultAuditPath          = "data/audit/guardrail.db"
	defaultSearchBaseURL      = "https://api.tavily.com"
	defaultSearchMaxResults   = 10
	defaultSearchDepth        = "basic"
	defaultSearchTimeout      = 30
	defaultSearchRetries      = 1
	defaultFundamentalsURL    = "https://www.alphavantage.co"
	defaultFundamentalsTO     = 30
	defaultFundamentalsRetry  = 2
	defaultBreakerThreshold   = 5
	defaultBreakerCooldown    = 60
	defaultLLMID              = "openai"
	defaultLLMAPIURL          = "https://api.openai.com/v1"
	defaultLLMModel           = "gpt-4o-mini"
	defaultLLMTemperature     = 0.2
	defaultLLMTimeout         = 60
	defaultLLMRetries         = 2
	defaultWorkflowRunTimeout = 180
)

// applyDefaults 为所有子配置应用默认值。
func (c *Config) applyDefaults(keys keySet) {
	c.App.applyDefaults(keys)
	c.HTTP.applyDefaults(keys)
	c.Cache.applyDefaults(keys)
	c.Audit.applyDefaults(keys)
	c.Search.applyDefaults(keys)
	c.Fundamentals.applyDefaults(keys)
	c.LLM.applyDefaults(keys)
	c.Workflow.applyDefaults(keys)
}

func (a *AppConfig) applyDefaults(keys keySet) {
	if a == nil {
		return
	}
	applyFieldDefaults(keys,
		stringFieldDefault("app.env", &a.Env, defaultAppEnv),
		stringFieldDefault("app.log_level", &a.LogLevel, defaultAppLogLevel),
		stringFieldDefault("app.llm_log_path", &a.LLMLog, defaultAppLLMLogPath),
	)
}

func (h *HTTPConfig) applyDefaults(keys keySet) {
	if h == nil {
		return
	}
	applyFieldDefaults(keys,
		stringFieldDefault("http.addr", &h.Addr, defaultHTTPAddr),
		fieldDefault{
			key:   "http.cors_origins",
			need:  func() bool { return len(h.CORSOrigins) == 0 },
			apply: func() { h.CORSOrigins = []string{"*"} },
		},
	)
}

func (c *CacheConfig) applyDefaults(keys keySet) {
	if c == nil {
		return
	}
	applyFieldDefaults(keys,
		stringFieldDefault("cache.path", &c.Path, defaultCachePath),
		intFieldDefault("cache.ttl_days", &c.TTLDays, defaultCacheTTLDays),
		stringFieldDefault("cache.sweep_interval", &c.SweepInterval, defaultCacheSweep),
	)
}

func (a *AuditConfig) applyDefaults(keys keySet) {
	if a == nil {
		return
	}
	applyFieldDefaults(keys,
		boolFieldDefault("audit.enabled", &a.Enabled, true),
		stringFieldDefault("audit.path", &a.Path, defaultAuditPath),
	)
}

func (s *SearchConfig) applyDefaults(keys keySet) {
	if s == nil {
		return
	}
	applyFieldDefaults(keys,
		stringFieldDefault("search.base_url", &s.BaseURL, defaultSearchBaseURL),
		intFieldDefault("search.max_results", &s.MaxResults, defaultSearchMaxResults),
		stringFieldDefault("search.search_depth", &s.SearchDepth, defaultSearchDepth),
		boolFieldDefault("search.include_raw_content", &s.IncludeRawContent, true),
		intFieldDefault("search.timeout_seconds", &s.TimeoutSeconds, defaultSearchTimeout),
		intFieldDefault("search.max_retries", &s.MaxRetries, defaultSearchRetries),
	)
}

func (f *FundamentalsConfig) applyDefaults(keys keySet) {
	if f == nil {
		return
	}
	applyFieldDefaults(keys,
		stringFieldDefault("fundamentals.base_url", &f.BaseURL, defaultFundamentalsURL),
		intFieldDefault("fundamentals.timeout_seconds", &f.TimeoutSeconds, defaultFundamentalsTO),
		intFieldDefault("fundamentals.max_retries", &f.MaxRetries, defaultFundamentalsRetry),
		intFieldDefault("fundamentals.breaker_threshold", &f.BreakerThreshold, defaultBreakerThreshold),
		intFieldDefault("fundamentals.breaker_cooldown_seconds", &f.BreakerCooldownSeconds, defaultBreakerCooldown),
	)
}

func (l *LLMConfig) applyDefaults(keys keySet) {
	if l == nil {
		return
	}
	applyFieldDefaults(keys,
		stringFieldDefault("llm.id", &l.ID, defaultLLMID),
		stringFieldDefault("llm.api_url", &l.APIURL, defaultLLMAPIURL),
		stringFieldDefault("llm.model", &l.Model, defaultLLMModel),
		fieldDefault{
			key:   "llm.temperature",
			need:  func() bool { return l.Temperature <= 0 },
			apply: func() { l.Temperature = defaultLLMTemperature },
		},
		intFieldDefault("llm.timeout_seconds", &l.TimeoutSeconds, defaultLLMTimeout),
		intFieldDefault("llm.max_retries", &l.MaxRetries, defaultLLMRetries),
	)
}

func (w *WorkflowConfig) applyDefaults(keys keySet) {
	if w == nil {
		return
	}
	applyFieldDefaults(keys,
		intFieldDefault("workflow.run_timeout_seconds", &w.RunTimeoutSeconds, defaultWorkflowRunTimeout),
	)
}

// Helper functions

func applyFieldDefaults(keys keySet, defs ...fieldDefault) {
	for _, def := range defs {
		if def.apply == nil {
			continue
		}
		if def.key != "" && keys.isSet(def.key) {
			continue
		}
		if def.need != nil && !def.need() {
			continue
		}
		def.apply()
	}
}

func stringFieldDefault(key string, target *string, def string) fieldDefault {
	return fieldDefault{
		key: key,
		need: func() bool {
			return target != nil && strings.TrimSpace(*target) == ""
		},
		apply: func() {
			if target != nil {
				*target = def
			}
		},
	}
}

func intFieldDefault(key string, target *int, def int) fieldDefault {
	return fieldDefault{
		key:  key,
		need: func() bool { return target != nil && *target <= 0 },
		apply: func() {
			if target != nil {
				*target = def
			}
		},
	}
}

func boolFieldDefault(key string, target *bool, def bool) fieldDefault {
	return fieldDefault{
		key:  key,
		need: func() bool { return target != nil },
		apply: func() {
			if target != nil {
				*target = def
			}
		},
	}
}
