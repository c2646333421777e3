package app

import (
	"context"
	"fmt"
	"time"

	"tradepilot/internal/broker"
	"tradepilot/internal/config"
	"tradepilot/internal/logger"
	"tradepilot/internal/market"
	"tradepilot/internal/pkg/traderr"
	"tradepilot/internal/portfolio"
	"tradepilot/internal/shutdown"
	"tradepilot/internal/store/sqlite"
	"tradepilot/internal/strategy"
	"tradepilot/internal/trading"
	apihttp "tradepilot/internal/transport/http"
)

// buildApp 显式组装全部依赖。构造顺序即依赖顺序，不用注入框架。
func buildApp(ctx context.Context, cfg *config.Config) (*App, error) {
	st, err := sqlite.NewSqliteStore(cfg.Store.Path)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}

	restClient, err := broker.NewRESTClient(broker.Config{
		BaseURL:   cfg.Broker.BaseURL,
		APIKey:    cfg.Broker.APIKey,
		APISecret: cfg.Broker.APISecret,
		Timeout:   time.Duration(cfg.Broker.TimeoutSeconds) * time.Second,
	})
	if err != nil {
		st.Close()
		return nil, fmt.Errorf("build broker gateway: %w", err)
	}
	gateway := broker.WithRetry(restClient, broker.RetryPolicy{
		MaxAttempts: cfg.Broker.MaxRetries,
		Backoff:     time.Duration(cfg.Broker.RetryBackoffMs) * time.Millisecond,
	})

	source := market.NewBinanceSource(market.BinanceConfig{RESTBaseURL: cfg.Market.RESTBaseURL})
	provider := market.NewThrottledProvider(source, market.ThrottleConfig{
		RatePerSecond: cfg.Market.RatePerSecond,
		Burst:         cfg.Market.RateBurst,
		QuoteTTL:      time.Duration(cfg.Market.QuoteTTLSeconds) * time.Second,
	})

	ledger := portfolio.NewService(st, provider, gateway)
	tradingSvc := trading.NewService(st, gateway, ledger, provider, &cfg.Trading)

	registry := strategy.NewRegistry()
	profiles, err := config.LoadProfiles(cfg.Strategies.ProfilesPath)
	if err != nil {
		st.Close()
		return nil, fmt.Errorf("load strategy profiles: %w", err)
	}
	if err := registry.ApplyProfiles(profiles); err != nil {
		st.Close()
		return nil, fmt.Errorf("register strategies: %w", err)
	}
	tracker := strategy.NewPerformanceTracker()
	strategySvc := strategy.NewService(registry, tracker, tradingSvc, provider, &cfg.Trading)
	tradingSvc.SetPnLObserver(strategySvc)

	httpServer, err := apihttp.NewServer(apihttp.ServerConfig{
		Addr:       cfg.App.HTTPAddr,
		AccountID:  cfg.Trading.AccountID,
		Trading:    tradingSvc,
		Ledger:     ledger,
		Strategies: strategySvc,
	})
	if err != nil {
		st.Close()
		return nil, fmt.Errorf("build http server: %w", err)
	}

	app := &App{
		cfg:        cfg,
		store:      st,
		gateway:    gateway,
		provider:   provider,
		ledger:     ledger,
		trading:    tradingSvc,
		strategies: strategySvc,
		httpServer: httpServer,
		teardown:   shutdown.NewCoordinator(tradingSvc, &cfg.Shutdown),
	}

	if err := app.startupChecks(ctx); err != nil {
		st.Close()
		return nil, err
	}
	return app, nil
}

// startupChecks 验证券商连通性并做首次组合对账。任一失败都是致命错误，
// 宁可拒绝启动也不要带着坏账本交易。
func (a *App) startupChecks(ctx context.Context) error {
	checkCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	account, err := a.gateway.GetAccountInfo(checkCtx)
	if err != nil {
		return &traderr.SystemError{Op: "broker health check", Err: err}
	}
	logger.Infof("Broker reachable: account=%s status=%s cash=%.2f", account.AccountID, account.Status, account.Cash)

	if err := a.ledger.SynchronizePortfolio(checkCtx, a.cfg.Trading.AccountID); err != nil {
		return &traderr.SystemError{Op: "initial portfolio sync", Err: err}
	}

	if len(a.strategies.Registry().Enabled()) == 0 {
		logger.Warnf("启动时没有启用任何策略，等待 profile 热更新")
	}
	return nil
}
