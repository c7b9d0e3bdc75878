package config

import "strings"

// Config 是 advisor 服务的主配置载体。
type Config struct {
	App          AppConfig          `toml:"app"`
	HTTP         HTTPConfig         `toml:"http"`
	Cache        CacheConfig        `toml:"cache"`
	Audit        AuditConfig        `toml:"audit"`
	Search       SearchConfig       `toml:"search"`
	Fundamentals FundamentalsConfig `toml:"fundamentals"`
	LLM          LLMConfig          `toml:"llm"`
	Workflow     WorkflowConfig     `toml:"workflow"`
	Prompt       PromptConfig       `toml:"prompt"`

	// Credentials are never read from the YAML files, only from the environment.
	Credentials Credentials `toml:"-"`
}

type AppConfig struct {
	Env      string `toml:"env"`
	LogLevel string `toml:"log_level"`
	LogPath  string `toml:"log_path"`
	LLMLog   string `toml:"llm_log_path"`
	LLMDump  bool   `toml:"llm_dump_payload"`
}

type HTTPConfig struct {
	Addr        string   `toml:"addr"`
	CORSOrigins []string `toml:"cors_origins"`
}

// CacheConfig 控制基本面缓存（SQLite）。
type CacheConfig struct {
	Path          string `toml:"path"`
	TTLDays       int    `toml:"ttl_days"`
	SweepInterval string `toml:"sweep_interval"` // "1d", "12h"; empty disables the periodic purge
}

type AuditConfig struct {
	Enabled bool   `toml:"enabled"`
	Path    string `toml:"path"`
}

// SearchConfig describes the Tavily news search adapter.
type SearchConfig struct {
	BaseURL           string `toml:"base_url"`
	MaxResults        int    `toml:"max_results"`
	SearchDepth       string `toml:"search_depth"`
	Topic             string `toml:"topic"`
	IncludeRawContent bool   `toml:"include_raw_content"`
	TimeoutSeconds    int    `toml:"timeout_seconds"`
	MaxRetries        int    `toml:"max_retries"`
}

// FundamentalsConfig describes the Alpha Vantage OVERVIEW adapter.
type FundamentalsConfig struct {
	BaseURL                string `toml:"base_url"`
	TimeoutSeconds         int    `toml:"timeout_seconds"`
	MaxRetries             int    `toml:"max_retries"`
	BreakerThreshold       int    `toml:"breaker_threshold"`
	BreakerCooldownSeconds int    `toml:"breaker_cooldown_seconds"`
}

// LLMConfig 描述 OpenAI 兼容的聊天补全接口。
type LLMConfig struct {
	ID             string            `toml:"id"`
	APIURL         string            `toml:"api_url"`
	Model          string            `toml:"model"`
	Temperature    float64           `toml:"temperature"`
	TimeoutSeconds int               `toml:"timeout_seconds"`
	MaxRetries     int               `toml:"max_retries"`
	Headers        map[string]string `toml:"headers"`
}

type WorkflowConfig struct {
	NodeTimeoutSeconds int `toml:"node_timeout_seconds"`
	RunTimeoutSeconds  int `toml:"run_timeout_seconds"`
}

// PromptConfig points at an optional YAML file overriding the built-in prompts.
type PromptConfig struct {
	Path string `toml:"path"`
}

type keySet map[string]struct{}

func (k keySet) mark(path string) {
	path = strings.ToLower(strings.TrimSpace(path))
	if path == "" {
		return
	}
	k[path] = struct{}{}
}

func (k keySet) isSet(path string) bool {
	if len(k) == 0 {
		return false
	}
	path = strings.ToLower(strings.TrimSpace(path))
	if path == "" {
		return false
	}
	_, ok := k[path]
	return ok
}

// fieldDefault 描述单个字段的默认值设置规则。
type fieldDefault struct {
	key   string
	need  func() bool
	apply func()
}
