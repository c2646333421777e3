// Package trading is the order execution core: it validates requests, applies
// the risk gates, talks to the broker gateway and settles fills into the
// portfolio ledger. 校验与风控拒绝都发生在任何券商调用之前。
package trading

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"tradepilot/internal/broker"
	"tradepilot/internal/config"
	"tradepilot/internal/logger"
	"tradepilot/internal/market"
	"tradepilot/internal/pkg/traderr"
	"tradepilot/internal/portfolio"
	"tradepilot/internal/store"
	"tradepilot/internal/types"
)

// PnLObserver 接收平仓盈亏回报（由策略层实现）。
type PnLObserver interface {
	OnTradeClosed(strategyName string, pnl float64)
}

// Service 执行层核心。实现 strategy.SignalExecutor。
type Service struct {
	store    store.Store
	gateway  broker.Gateway
	ledger   *portfolio.Service
	provider market.Provider
	cfg      *config.TradingConfig

	observerMu sync.RWMutex
	observer   PnLObserver
}

// NewService wires the execution core.
func NewService(st store.Store, gateway broker.Gateway, ledger *portfolio.Service, provider market.Provider, cfg *config.TradingConfig) *Service {
	return &Service{
		store:    st,
		gateway:  gateway,
		ledger:   ledger,
		provider: provider,
		cfg:      cfg,
	}
}

// SetPnLObserver registers the closed-trade callback. 可选；为空时仅记录日志。
func (s *Service) SetPnLObserver(observer PnLObserver) {
	s.observerMu.Lock()
	s.observer = observer
	s.observerMu.Unlock()
}

func (s *Service) notifyClosed(strategyName string, pnl float64) {
	s.observerMu.RLock()
	observer := s.observer
	s.observerMu.RUnlock()
	if observer != nil {
		observer.OnTradeClosed(strategyName, pnl)
	}
}

// ExecuteSignal converts an approved strategy signal into an order.
func (s *Service) ExecuteSignal(ctx context.Context, signal types.TradingSignal) (*types.Trade, error) {
	params := OrderParams{
		Symbol:       signal.Symbol,
		Quantity:     signal.Quantity,
		OrderType:    types.OrderTypeMarket,
		StrategyName: signal.StrategyName,
	}
	switch signal.Type {
	case types.TradeTypeBuy:
		return s.ExecuteBuyOrder(ctx, params)
	case types.TradeTypeSell:
		return s.ExecuteSellOrder(ctx, params)
	}
	return nil, traderr.NewInvalidOrder("unknown signal type %q", string(signal.Type))
}

// GetTrade returns the locally recorded trade for orderID, nil when unknown.
func (s *Service) GetTrade(ctx context.Context, orderID string) (*types.Trade, error) {
	row, err := s.store.Trades().FindByOrderID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if row == nil {
		return nil, nil
	}
	trade := modelToTrade(row)
	return &trade, nil
}

// GetTradeHistory lists trades created within the last lookback window.
func (s *Service) GetTradeHistory(ctx context.Context, lookback time.Duration) ([]types.Trade, error) {
	rows, err := s.store.Trades().FindRecent(ctx, time.Now().Add(-lookback))
	if err != nil {
		return nil, err
	}
	trades := make([]types.Trade, 0, len(rows))
	for i := range rows {
		trades = append(trades, modelToTrade(&rows[i]))
	}
	return trades, nil
}

// GetOrderStatus re-queries the broker and advances the local record. The
// local status only ever moves forward; a broker answer that would move it
// backwards is ignored.
func (s *Service) GetOrderStatus(ctx context.Context, orderID string) (*types.Trade, error) {
	row, err := s.store.Trades().FindByOrderID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if row == nil {
		return nil, traderr.NewInvalidOrder("unknown order %s", orderID)
	}
	trade := modelToTrade(row)
	if trade.Status.Terminal() {
		return &trade, nil
	}

	status, err := s.gateway.GetOrderStatus(ctx, orderID)
	if err != nil {
		return &trade, err
	}
	if status == trade.Status || !trade.Status.CanTransition(status) {
		return &trade, nil
	}
	return s.advanceStatus(ctx, &trade, status)
}

// CancelOrder cancels an unresolved order at the broker and locally.
func (s *Service) CancelOrder(ctx context.Context, orderID string) error {
	row, err := s.store.Trades().FindByOrderID(ctx, orderID)
	if err != nil {
		return err
	}
	if row == nil {
		return traderr.NewInvalidOrder("unknown order %s", orderID)
	}
	trade := modelToTrade(row)
	if trade.Status.Terminal() {
		return traderr.NewInvalidOrder("order %s already %s", orderID, trade.Status)
	}
	if err := s.gateway.CancelOrder(ctx, orderID); err != nil {
		return err
	}
	_, err = s.advanceStatus(ctx, &trade, types.OrderStatusCancelled)
	return err
}

// advanceStatus persists a forward transition; on FILLED it stamps ExecutedAt
// once and settles the fill into the ledger.
func (s *Service) advanceStatus(ctx context.Context, trade *types.Trade, next types.OrderStatus) (*types.Trade, error) {
	prev := trade.Status
	trade.Status = next
	if next == types.OrderStatusFilled && trade.ExecutedAt == nil {
		now := time.Now()
		trade.ExecutedAt = &now
	}

	if next == types.OrderStatusFilled {
		realized, err := s.ledger.ApplyFill(ctx, trade)
		if err != nil {
			// 订单在券商侧已成交，本地账本却没跟上：这是一致性故障，
			// 必须显眼地报出来，不能吞掉。
			logger.Errorf("CONSISTENCY FAULT: order %s filled at broker but ledger update failed: %v", trade.OrderID, err)
		} else {
			trade.RealizedPnL = realized
			if realized != 0 {
				s.notifyClosed(trade.StrategyName, realized)
			}
		}
	}

	if err := s.store.Trades().Save(ctx, tradeToModel(trade)); err != nil {
		return trade, err
	}
	logger.Infof("TradingService: order %s %s -> %s", trade.OrderID, prev, trade.Status)
	return trade, nil
}

func newOrderID() string {
	return "tp-" + uuid.NewString()
}
