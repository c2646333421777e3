package trading

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"tradepilot/internal/broker"
	"tradepilot/internal/logger"
	"tradepilot/internal/pkg/decmath"
	"tradepilot/internal/pkg/traderr"
	"tradepilot/internal/types"
)

// OrderParams 是买卖入口的请求载体。
type OrderParams struct {
	Symbol       string
	Quantity     float64
	OrderType    types.OrderType
	LimitPrice   *float64
	StopPrice    *float64
	StrategyName string
}

// orderMeta 随交易记录持久化的下单上下文。
type orderMeta struct {
	OrderType  string   `json:"order_type"`
	LimitPrice *float64 `json:"limit_price,omitempty"`
	StopPrice  *float64 `json:"stop_price,omitempty"`
}

// ExecuteBuyOrder validates a buy request against the risk gates and submits
// it. Gate order: request shape, price requirements, symbol allow-list,
// notional cap, then available cash. 任何一关失败都不会触发券商调用。
func (s *Service) ExecuteBuyOrder(ctx context.Context, params OrderParams) (*types.Trade, error) {
	if err := s.validateShape(&params); err != nil {
		return nil, err
	}
	price, err := s.referencePrice(ctx, params)
	if err != nil {
		return nil, err
	}
	notional := decmath.Notional(params.Quantity, price)
	if decmath.GT(notional, s.cfg.MaxPositionSize) {
		return nil, traderr.NewInvalidOrder("notional %.4f exceeds max position size %.4f", notional, s.cfg.MaxPositionSize)
	}

	view, err := s.ledger.GetPortfolio(ctx, s.cfg.AccountID)
	if err != nil {
		return nil, err
	}
	if decmath.GT(notional, view.CashBalance) {
		return nil, &traderr.InsufficientFundsError{Required: notional, Available: view.CashBalance}
	}

	return s.submit(ctx, params, types.TradeTypeBuy, price)
}

// ExecuteSellOrder validates a sell request. 卖出数量不得超过当前持仓。
func (s *Service) ExecuteSellOrder(ctx context.Context, params OrderParams) (*types.Trade, error) {
	if err := s.validateShape(&params); err != nil {
		return nil, err
	}
	price, err := s.referencePrice(ctx, params)
	if err != nil {
		return nil, err
	}
	notional := decmath.Notional(params.Quantity, price)
	if decmath.GT(notional, s.cfg.MaxPositionSize) {
		return nil, traderr.NewInvalidOrder("notional %.4f exceeds max position size %.4f", notional, s.cfg.MaxPositionSize)
	}

	position, err := s.ledger.GetPosition(ctx, s.cfg.AccountID, params.Symbol)
	if err != nil {
		return nil, err
	}
	var held float64
	if position != nil {
		held = position.Quantity
	}
	if decmath.GT(params.Quantity, held) {
		return nil, &traderr.InsufficientSharesError{Symbol: params.Symbol, Requested: params.Quantity, Held: held}
	}

	return s.submit(ctx, params, types.TradeTypeSell, price)
}

func (s *Service) validateShape(params *OrderParams) error {
	params.Symbol = strings.ToUpper(strings.TrimSpace(params.Symbol))
	if params.Symbol == "" {
		return traderr.NewInvalidOrder("symbol cannot be empty")
	}
	if params.Quantity <= 0 {
		return traderr.NewInvalidOrder("quantity must be positive, got %v", params.Quantity)
	}
	switch params.OrderType {
	case "", types.OrderTypeMarket:
		params.OrderType = types.OrderTypeMarket
	case types.OrderTypeLimit:
		if params.LimitPrice == nil || *params.LimitPrice <= 0 {
			return traderr.NewInvalidOrder("limit order for %s requires a positive limit price", params.Symbol)
		}
	case types.OrderTypeStop:
		if params.StopPrice == nil || *params.StopPrice <= 0 {
			return traderr.NewInvalidOrder("stop order for %s requires a positive stop price", params.Symbol)
		}
	default:
		return traderr.NewInvalidOrder("unknown order type %q", string(params.OrderType))
	}
	if !s.cfg.SymbolAllowed(params.Symbol) {
		return traderr.NewInvalidOrder("symbol %s is not in the allowed list", params.Symbol)
	}
	return nil
}

// referencePrice picks the price used for risk sizing: the limit price when
// given, otherwise the live quote.
func (s *Service) referencePrice(ctx context.Context, params OrderParams) (float64, error) {
	if params.OrderType == types.OrderTypeLimit {
		return *params.LimitPrice, nil
	}
	quote, err := s.provider.GetCurrentQuote(ctx, params.Symbol)
	if err != nil {
		return 0, err
	}
	if quote.Price <= 0 {
		return 0, &traderr.MarketDataError{Symbol: params.Symbol, Reason: "non-positive quote price"}
	}
	return quote.Price, nil
}

// submit places the order at the broker and records the outcome. A failed
// submission leaves cash and positions untouched; only an audit row with
// status CANCELLED is written.
func (s *Service) submit(ctx context.Context, params OrderParams, side types.TradeType, refPrice float64) (*types.Trade, error) {
	clientID := newOrderID()
	meta, _ := json.Marshal(orderMeta{
		OrderType:  string(params.OrderType),
		LimitPrice: params.LimitPrice,
		StopPrice:  params.StopPrice,
	})
	trade := &types.Trade{
		OrderID:      clientID,
		AccountID:    s.cfg.AccountID,
		Symbol:       params.Symbol,
		Type:         side,
		Quantity:     params.Quantity,
		Price:        refPrice,
		Status:       types.OrderStatusPending,
		StrategyName: params.StrategyName,
		SignalMeta:   meta,
		CreatedAt:    time.Now(),
	}

	logger.Infof("TradingService: submitting %s %s qty=%.4f type=%s ref=%.4f order=%s strategy=%s",
		side, params.Symbol, params.Quantity, params.OrderType, refPrice, clientID, params.StrategyName)

	resp, err := s.gateway.PlaceOrder(ctx, broker.OrderRequest{
		Symbol:        params.Symbol,
		Quantity:      params.Quantity,
		Side:          side,
		OrderType:     params.OrderType,
		LimitPrice:    params.LimitPrice,
		StopPrice:     params.StopPrice,
		ClientOrderID: clientID,
	})
	if err != nil {
		trade.Status = types.OrderStatusCancelled
		if saveErr := s.store.Trades().Save(ctx, tradeToModel(trade)); saveErr != nil {
			logger.Errorf("TradingService: audit save failed for rejected order %s: %v", clientID, saveErr)
		}
		logger.Warnf("TradingService: submission failed order=%s: %v", clientID, err)
		return nil, err
	}

	if resp.OrderID != "" {
		trade.OrderID = resp.OrderID
	}
	if resp.Status == types.OrderStatusFilled {
		if resp.FilledQuantity > 0 {
			trade.Quantity = resp.FilledQuantity
		}
		if resp.FilledPrice > 0 {
			trade.Price = resp.FilledPrice
		}
		if resp.FilledAt != nil {
			trade.ExecutedAt = resp.FilledAt
		}
	}

	next := resp.Status
	if next == "" || next == types.OrderStatusPending {
		if err := s.store.Trades().Save(ctx, tradeToModel(trade)); err != nil {
			return trade, err
		}
		return trade, nil
	}
	return s.advanceStatus(ctx, trade, next)
}
