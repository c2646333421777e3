package types

import (
	"encoding/json"
	"time"
)

// TradeType 买卖方向。
type TradeType string

const (
	TradeTypeBuy  TradeType = "BUY"
	TradeTypeSell TradeType = "SELL"
)

// Valid reports whether the trade type is one of the known values.
func (t TradeType) Valid() bool {
	return t == TradeTypeBuy || t == TradeTypeSell
}

// OrderStatus 订单生命周期状态。状态只能单向推进：
// PENDING → SUBMITTED → (PARTIALLY_FILLED →) FILLED，或任一未成交状态 → CANCELLED。
type OrderStatus string

const (
	OrderStatusPending         OrderStatus = "PENDING"
	OrderStatusSubmitted       OrderStatus = "SUBMITTED"
	OrderStatusPartiallyFilled OrderStatus = "PARTIALLY_FILLED"
	OrderStatusFilled          OrderStatus = "FILLED"
	OrderStatusCancelled       OrderStatus = "CANCELLED"
)

// Terminal reports whether no further transition is allowed.
func (s OrderStatus) Terminal() bool {
	return s == OrderStatusFilled || s == OrderStatusCancelled
}

// Unresolved reports whether the order may still fill or be cancelled.
func (s OrderStatus) Unresolved() bool {
	switch s {
	case OrderStatusPending, OrderStatusSubmitted, OrderStatusPartiallyFilled:
		return true
	}
	return false
}

var statusRank = map[OrderStatus]int{
	OrderStatusPending:         0,
	OrderStatusSubmitted:       1,
	OrderStatusPartiallyFilled: 2,
	OrderStatusFilled:          3,
	OrderStatusCancelled:       3,
}

// CanTransition reports whether moving from s to next keeps the status monotonic.
func (s OrderStatus) CanTransition(next OrderStatus) bool {
	if s == next {
		return false
	}
	if s.Terminal() {
		return false
	}
	cur, ok := statusRank[s]
	if !ok {
		return false
	}
	nxt, ok := statusRank[next]
	if !ok {
		return false
	}
	return nxt >= cur
}

// OrderType 下单方式。
type OrderType string

const (
	OrderTypeMarket OrderType = "market"
	OrderTypeLimit  OrderType = "limit"
	OrderTypeStop   OrderType = "stop"
)

// Trade 是一笔已提交订单的本地记录。FILLED/CANCELLED 之后不再修改。
type Trade struct {
	OrderID      string          `json:"order_id"`
	AccountID    string          `json:"account_id"`
	Symbol       string          `json:"symbol"`
	Type         TradeType       `json:"type"`
	Quantity     float64         `json:"quantity"`
	Price        float64         `json:"price"`
	Status       OrderStatus     `json:"status"`
	StrategyName string          `json:"strategy_name,omitempty"`
	RealizedPnL  float64         `json:"realized_pnl,omitempty"`
	SignalMeta   json.RawMessage `json:"signal_meta,omitempty"`
	CreatedAt    time.Time       `json:"created_at"`
	ExecutedAt   *time.Time      `json:"executed_at,omitempty"`
}
