package strategy

import (
	"context"

	"tradepilot/internal/config"
	"tradepilot/internal/logger"
	"tradepilot/internal/market"
	"tradepilot/internal/pkg/traderr"
	"tradepilot/internal/types"
)

// SignalExecutor 是执行层能力（由 trading.Service 实现），
// 接口放在这里避免策略层反向依赖执行层。
type SignalExecutor interface {
	ExecuteSignal(ctx context.Context, signal types.TradingSignal) (*types.Trade, error)
}

// Service orchestrates strategy execution: feeds market data to every
// enabled strategy, gates the produced signals, and hands survivors to the
// executor while keeping performance counters up to date.
type Service struct {
	registry *Registry
	tracker  *PerformanceTracker
	executor SignalExecutor
	provider market.Provider
	trading  *config.TradingConfig
}

// NewService wires the orchestrator.
func NewService(registry *Registry, tracker *PerformanceTracker, executor SignalExecutor, provider market.Provider, trading *config.TradingConfig) *Service {
	return &Service{
		registry: registry,
		tracker:  tracker,
		executor: executor,
		provider: provider,
		trading:  trading,
	}
}

// Registry exposes the underlying registry (HTTP surface needs enumeration).
func (s *Service) Registry() *Registry { return s.registry }

// Tracker exposes the performance tracker.
func (s *Service) Tracker() *PerformanceTracker { return s.tracker }

// ExecuteCycle 拉取每个标的的最新行情并跑一轮全部启用策略。
// 单个标的失败不会中断整轮。
func (s *Service) ExecuteCycle(ctx context.Context, symbols []string) {
	for _, symbol := range symbols {
		quote, err := s.provider.GetCurrentQuote(ctx, symbol)
		if err != nil {
			logger.Warnf("StrategyService: quote fetch failed symbol=%s: %v", symbol, err)
			continue
		}
		s.ExecuteStrategies(ctx, types.FromQuote(quote))
	}
}

// ExecuteStrategies 把一条行情喂给所有启用策略并处理产生的信号。
func (s *Service) ExecuteStrategies(ctx context.Context, data types.MarketData) {
	for _, strat := range s.registry.Enabled() {
		signals, err := strat.Analyze(data)
		if err != nil {
			logger.Warnf("StrategyService: analyze failed strategy=%s symbol=%s: %v", strat.Name(), data.Symbol, err)
			continue
		}
		for _, signal := range signals {
			s.handleSignal(ctx, strat, signal)
		}
	}
}

func (s *Service) handleSignal(ctx context.Context, strat Strategy, signal types.TradingSignal) {
	perf := s.tracker.For(strat.Name())
	perf.RecordSignalGenerated()
	logger.Infof("StrategyService: signal strategy=%s symbol=%s side=%s qty=%.4f conf=%.2f reason=%q",
		signal.StrategyName, signal.Symbol, signal.Type, signal.Quantity, signal.Confidence, signal.Reason)

	if !strat.ShouldExecute(signal) {
		logger.Debugf("StrategyService: signal below confidence gate strategy=%s conf=%.2f", strat.Name(), signal.Confidence)
		return
	}
	if !s.trading.EnableAutoTrading {
		logger.Debugf("StrategyService: auto trading disabled, dropping signal strategy=%s", strat.Name())
		return
	}
	if !s.trading.SymbolAllowed(signal.Symbol) {
		logger.Warnf("StrategyService: symbol %s not in allow-list, dropping signal", signal.Symbol)
		return
	}

	trade, err := s.executor.ExecuteSignal(ctx, signal)
	if err != nil {
		if traderr.IsRejection(err) {
			logger.Warnf("StrategyService: signal rejected strategy=%s: %v", strat.Name(), err)
		} else {
			logger.Errorf("StrategyService: signal execution failed strategy=%s: %v", strat.Name(), err)
		}
		return
	}
	perf.RecordSignalExecuted(trade.Quantity * trade.Price)
	logger.Infof("StrategyService: signal executed strategy=%s order=%s status=%s", strat.Name(), trade.OrderID, trade.Status)
}

// OnTradeClosed 把平仓盈亏记回产生该信号的策略。
func (s *Service) OnTradeClosed(strategyName string, pnl float64) {
	if strategyName == "" {
		return
	}
	s.tracker.For(strategyName).RecordTradeProfitLoss(pnl)
}
