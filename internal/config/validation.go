package config

import (
	"fmt"
	"strings"
)

// validate 对配置进行基础校验。凭证在构建应用时单独检查，维护 CLI 不需要它们。
func validate(c *Config) error {
	if err := c.Cache.validate(); err != nil {
		return err
	}
	if err := c.Audit.validate(); err != nil {
		return err
	}
	if err := c.Search.validate(); err != nil {
		return err
	}
	if err := c.LLM.validate(); err != nil {
		return err
	}
	if c.Workflow.NodeTimeoutSeconds < 0 || c.Workflow.RunTimeoutSeconds < 0 {
		return fmt.Errorf("workflow timeouts must be >= 0")
	}
	return nil
}

func (c *CacheConfig) validate() error {
	if strings.TrimSpace(c.Path) == "" {
		return fmt.Errorf("cache.path cannot be empty")
	}
	if c.TTLDays <= 0 {
		return fmt.Errorf("cache.ttl_days must be > 0")
	}
	return nil
}

func (a *AuditConfig) validate() error {
	if a.Enabled && strings.TrimSpace(a.Path) == "" {
		return fmt.Errorf("audit.path cannot be empty when audit is enabled")
	}
	return nil
}

func (s *SearchConfig) validate() error {
	if s.MaxResults <= 0 || s.MaxResults > 20 {
		return fmt.Errorf("search.max_results must be within 1..20")
	}
	switch strings.ToLower(strings.TrimSpace(s.SearchDepth)) {
	case "basic", "advanced":
	default:
		return fmt.Errorf("search.search_depth must be basic or advanced")
	}
	return nil
}

func (l *LLMConfig) validate() error {
	if strings.TrimSpace(l.Model) == "" {
		return fmt.Errorf("llm.model cannot be empty")
	}
	if strings.TrimSpace(l.APIURL) == "" {
		return fmt.Errorf("llm.api_url cannot be empty")
	}
	return nil
}
