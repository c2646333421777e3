// Package broker defines the BrokerGateway capability and a REST
// implementation. 校验/风控拒绝与连接故障在这里分流：只有后者可重试。
package broker

import (
	"context"
	"time"

	"tradepilot/internal/types"
)

// OrderRequest 是提交给券商的下单请求。
type OrderRequest struct {
	Symbol        string
	Quantity      float64
	Side          types.TradeType
	OrderType     types.OrderType
	TimeInForce   string
	LimitPrice    *float64
	StopPrice     *float64
	ClientOrderID string
}

// OrderResponse 是券商对下单/查单的应答。
type OrderResponse struct {
	OrderID        string
	Status         types.OrderStatus
	FilledQuantity float64
	FilledPrice    float64
	FilledAt       *time.Time
}

// AccountInfo 账户快照。
type AccountInfo struct {
	AccountID        string
	Cash             float64
	PortfolioValue   float64
	BuyingPower      float64
	PatternDayTrader bool
	Status           string
}

// Position 券商侧持仓。
type Position struct {
	Symbol        string
	Quantity      float64
	AveragePrice  float64
	MarketValue   float64
	UnrealizedPnL float64
}

// Gateway 是核心消费的券商能力接口。所有调用都是阻塞 I/O。
type Gateway interface {
	PlaceOrder(ctx context.Context, req OrderRequest) (OrderResponse, error)
	GetOrderStatus(ctx context.Context, orderID string) (types.OrderStatus, error)
	CancelOrder(ctx context.Context, orderID string) error
	GetAccountInfo(ctx context.Context) (AccountInfo, error)
	GetPositions(ctx context.Context) ([]Position, error)
}
