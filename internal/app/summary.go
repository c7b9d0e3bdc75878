package app

import (
	"fmt"
	"io"
	"strings"
)

// StartupSummary 在启动时打印关键配置，便于确认生效的参数。
type StartupSummary struct {
	Env          string
	HTTPAddr     string
	Model        string
	SearchDepth  string
	MaxNews      int
	CachePath    string
	CacheTTL     string
	Sweep        string
	AuditPath    string
	PromptSource string
	NodeTimeout  string
	RunTimeout   string
}

func (s *StartupSummary) Print(w io.Writer) {
	line := strings.Repeat("=", 80)
	fmt.Fprintln(w, line)
	fmt.Fprintf(w, "%*s\n", 40+len("启动配置摘要 (STARTUP SUMMARY)")/2, "启动配置摘要 (STARTUP SUMMARY)")
	fmt.Fprintln(w, line)

	fmt.Fprintln(w, "[服务 (SERVICE)]")
	fmt.Fprintf(w, "  环境: %s\n", orDash(s.Env))
	fmt.Fprintf(w, "  监听: %s\n", orDash(s.HTTPAddr))
	fmt.Fprintln(w)

	fmt.Fprintln(w, "[推理 (REASONING)]")
	fmt.Fprintf(w, "  模型: %s\n", orDash(s.Model))
	fmt.Fprintf(w, "  提示词: %s\n", orDash(s.PromptSource))
	fmt.Fprintf(w, "  新闻检索: depth=%s max=%d\n", orDash(s.SearchDepth), s.MaxNews)
	fmt.Fprintln(w)

	fmt.Fprintln(w, "[存储 (STORAGE)]")
	fmt.Fprintf(w, "  基本面缓存: %s (ttl=%s, sweep=%s)\n", orDash(s.CachePath), orDash(s.CacheTTL), orDash(s.Sweep))
	fmt.Fprintf(w, "  护栏审计: %s\n", orDash(s.AuditPath))
	fmt.Fprintln(w)

	fmt.Fprintln(w, "[超时 (TIMEOUTS)]")
	fmt.Fprintf(w, "  节点: %s  整体: %s\n", orDash(s.NodeTimeout), orDash(s.RunTimeout))
	fmt.Fprintln(w, line)
}

func orDash(s string) string {
	if strings.TrimSpace(s) == "" {
		return "-"
	}
	return s
}
