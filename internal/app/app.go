package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"

	"stockadvisor/internal/advisor"
	"stockadvisor/internal/audit"
	"stockadvisor/internal/cache"
	brcfg "stockadvisor/internal/config"
	"stockadvisor/internal/logger"
	"stockadvisor/internal/scheduler"
	"stockadvisor/internal/transport/http/api"

	"golang.org/x/sync/errgroup"
)

// App 负责应用级编排：加载配置→初始化依赖→启动 HTTP 服务与缓存清理。
type App struct {
	cfg     *brcfg.Config
	advisor *advisor.Coordinator
	http    *api.Server
	sweeper *scheduler.AlignedScheduler
	cache   *cache.Store
	audit   *audit.Store
	Summary *StartupSummary
}

// NewApp 根据配置构建应用对象（不启动）
func NewApp(cfg *brcfg.Config) (*App, error) {
	if cfg == nil {
		return nil, fmt.Errorf("nil config")
	}
	logger.SetLevel(cfg.App.LogLevel)
	return buildAppWithWire(context.Background(), cfg)
}

// Run 启动 HTTP 服务；ctx 取消后优雅退出并关闭存储。
func (a *App) Run(ctx context.Context) error {
	if a == nil || a.cfg == nil {
		return fmt.Errorf("app not initialized")
	}
	if a.http == nil {
		return fmt.Errorf("http server not initialized")
	}
	defer a.Close()

	if a.Summary != nil {
		a.Summary.Print(os.Stdout)
	}

	group, ctx := errgroup.WithContext(ctx)
	group.Go(func() error {
		if err := a.http.Start(ctx); err != nil {
			return fmt.Errorf("http server error: %w", err)
		}
		return nil
	})
	if a.sweeper != nil {
		group.Go(func() error {
			return a.sweeper.Run(ctx, a.sweepCache)
		})
	}
	err := group.Wait()
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func (a *App) sweepCache(ctx context.Context) error {
	n, err := a.cache.PurgeExpired(ctx)
	if err != nil {
		return fmt.Errorf("purge expired cache entries: %w", err)
	}
	if n > 0 {
		logger.Infof("缓存清理: 删除 %d 条过期记录", n)
	}
	return nil
}

// Advisor exposes the run coordinator (for tests and embedding).
func (a *App) Advisor() *advisor.Coordinator {
	if a == nil {
		return nil
	}
	return a.advisor
}

// Handler returns the HTTP handler without binding a port.
func (a *App) Handler() http.Handler {
	if a == nil || a.http == nil {
		return nil
	}
	return a.http.Handler()
}

// Close releases the cache and audit stores.
func (a *App) Close() {
	if a == nil {
		return
	}
	if a.audit != nil {
		if err := a.audit.Close(); err != nil {
			logger.Warnf("关闭审计存储失败: %v", err)
		}
	}
	if a.cache != nil {
		if err := a.cache.Close(); err != nil {
			logger.Warnf("关闭缓存失败: %v", err)
		}
	}
}
