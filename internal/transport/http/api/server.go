// Package api 提供对外 HTTP 接口（gin）：策略生成、健康检查与护栏审计查询。
package api

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"stockadvisor/internal/advisor"
	"stockadvisor/internal/audit"
	"stockadvisor/internal/guardrail"
	"stockadvisor/internal/logger"
	"stockadvisor/internal/types"
)

// Evaluator runs one evaluation.
type Evaluator interface {
	Evaluate(ctx context.Context, req types.Request) (advisor.Result, error)
}

// AuditReader lists recent guardrail evaluations.
type AuditReader interface {
	Recent(ctx context.Context, q audit.Query) ([]guardrail.Record, error)
}

// Server 提供 /generate-strategy 等 HTTP 服务。
type Server struct {
	addr   string
	router *gin.Engine
}

// ServerConfig 描述 HTTP 服务依赖。Audit 可为空。
type ServerConfig struct {
	Addr        string
	Advisor     Evaluator
	Audit       AuditReader
	CORSOrigins []string
}

func NewServer(cfg ServerConfig) (*Server, error) {
	if cfg.Advisor == nil {
		return nil, errors.New("http server requires an advisor")
	}
	if cfg.Addr == "" {
		cfg.Addr = ":8000"
	}
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery(), requestLogger(), cors(cfg.CORSOrigins))

	h := &handler{advisor: cfg.Advisor, audit: cfg.Audit}
	router.GET("/", h.health)
	router.GET("/healthz", h.health)
	router.POST("/generate-strategy", h.generateStrategy)
	if cfg.Audit != nil {
		router.GET("/api/guardrail/audit", h.listAudit)
	}
	return &Server{addr: cfg.Addr, router: router}, nil
}

// Handler exposes the router, mainly for httptest.
func (s *Server) Handler() http.Handler {
	return s.router
}

// requestLogger 记录接口调用耗时与状态码。
func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.Debugf("HTTP %s %s status=%d ip=%s dur=%s",
			c.Request.Method, c.Request.URL.Path, c.Writer.Status(), c.ClientIP(), time.Since(start))
	}
}

func cors(origins []string) gin.HandlerFunc {
	allowAll := len(origins) == 0
	allowed := make(map[string]struct{}, len(origins))
	for _, o := range origins {
		o = strings.TrimSpace(o)
		if o == "*" {
			allowAll = true
		}
		allowed[o] = struct{}{}
	}
	return func(c *gin.Context) {
		origin := c.GetHeader("Origin")
		switch {
		case allowAll:
			c.Header("Access-Control-Allow-Origin", "*")
		case origin != "":
			if _, ok := allowed[origin]; ok {
				c.Header("Access-Control-Allow-Origin", origin)
				c.Header("Vary", "Origin")
			}
		}
		c.Header("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "*")
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}

// Addr 返回监听地址。
func (s *Server) Addr() string {
	if s == nil {
		return ""
	}
	return s.addr
}

// Start 启动 HTTP 服务，直到 ctx 取消或出现错误。
func (s *Server) Start(ctx context.Context) error {
	if s == nil {
		return nil
	}
	srv := &http.Server{Addr: s.addr, Handler: s.router, ReadHeaderTimeout: 10 * time.Second}
	errCh := make(chan error, 1)
	go func() {
		logger.Infof("HTTP server listening on %s", s.addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		shCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shCtx)
		return nil
	case err := <-errCh:
		return err
	}
}
