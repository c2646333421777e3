// Package app 负责应用级编排：装配依赖、启动循环、优雅停机。
package app

import (
	"context"
	"fmt"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"tradepilot/internal/broker"
	"tradepilot/internal/config"
	"tradepilot/internal/logger"
	"tradepilot/internal/market"
	"tradepilot/internal/portfolio"
	"tradepilot/internal/scheduler"
	"tradepilot/internal/shutdown"
	"tradepilot/internal/store"
	"tradepilot/internal/strategy"
	"tradepilot/internal/trading"
	apihttp "tradepilot/internal/transport/http"
)

// App 持有全部已装配的服务。
type App struct {
	cfg        *config.Config
	store      store.Store
	gateway    broker.Gateway
	provider   market.Provider
	ledger     *portfolio.Service
	trading    *trading.Service
	strategies *strategy.Service
	httpServer *apihttp.Server
	teardown   *shutdown.Coordinator
}

// NewApp 根据配置构建应用对象（不启动）。
func NewApp(cfg *config.Config) (*App, error) {
	if cfg == nil {
		return nil, fmt.Errorf("nil config")
	}
	logger.SetLevel(cfg.App.LogLevel)
	return buildApp(context.Background(), cfg)
}

// Run 启动 HTTP 服务与分析循环，阻塞到收到终止信号，然后执行停机清理。
func (a *App) Run(ctx context.Context) error {
	if a == nil || a.cfg == nil {
		return fmt.Errorf("app not initialized")
	}
	a.printSummary()

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	group, ctx := errgroup.WithContext(ctx)

	group.Go(func() error {
		if err := a.httpServer.Start(ctx); err != nil {
			return fmt.Errorf("http server error: %w", err)
		}
		return nil
	})

	group.Go(func() error {
		interval := time.Duration(a.cfg.Trading.CycleIntervalSeconds) * time.Second
		sched := scheduler.NewCycleScheduler(ctx, interval, 0)
		sched.RunImmediately = true
		sched.Start(func() { a.runCycle(ctx) })
		return nil
	})

	if a.cfg.Strategies.WatchReload {
		group.Go(func() error {
			return config.WatchProfiles(ctx, a.cfg.Strategies.ProfilesPath, func(profiles []config.StrategyProfile) {
				if err := a.strategies.Registry().ApplyProfiles(profiles); err != nil {
					logger.Warnf("profile hot reload partial failure: %v", err)
				}
			})
		})
	}

	err := group.Wait()

	// 清理用独立的根上下文：触发停机的正是被取消的 ctx。
	a.teardown.Run(context.Background())
	if closeErr := a.store.Close(); closeErr != nil {
		logger.Warnf("store close failed: %v", closeErr)
	}
	return err
}

// runCycle 跑一轮行情刷新 + 策略分析。
func (a *App) runCycle(ctx context.Context) {
	symbols := a.cfg.Trading.AllowedSymbols
	if len(symbols) == 0 {
		logger.Debugf("no symbols configured, skipping cycle")
		return
	}
	cycleCtx, cancel := context.WithTimeout(ctx, time.Duration(a.cfg.Trading.CycleIntervalSeconds)*time.Second)
	defer cancel()

	if err := a.ledger.RefreshPrices(cycleCtx, a.cfg.Trading.AccountID); err != nil {
		logger.Warnf("price refresh failed: %v", err)
	}
	a.strategies.ExecuteCycle(cycleCtx, symbols)
}

func (a *App) printSummary() {
	lines := []string{
		"tradepilot 启动",
		fmt.Sprintf("- 环境: %s", a.cfg.App.Env),
		fmt.Sprintf("- HTTP: %s", a.httpServer.Addr()),
		fmt.Sprintf("- 账户: %s", a.cfg.Trading.AccountID),
		fmt.Sprintf("- 监控标的: %s", joinOrDash(a.cfg.Trading.AllowedSymbols)),
		fmt.Sprintf("- 策略: %d 个（启用 %d）", a.strategies.Registry().Len(), len(a.strategies.Registry().Enabled())),
		fmt.Sprintf("- 自动交易: %v", a.cfg.Trading.EnableAutoTrading),
	}
	logger.InfoBlock(strings.Join(lines, "\n"))
}

func joinOrDash(items []string) string {
	if len(items) == 0 {
		return "-"
	}
	return strings.Join(items, ", ")
}
