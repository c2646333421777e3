package types

import "time"

// Position 持仓快照。Quantity 带符号：正数为多头。
type Position struct {
	Symbol        string    `json:"symbol"`
	Quantity      float64   `json:"quantity"`
	AveragePrice  float64   `json:"average_price"`
	CurrentPrice  *float64  `json:"current_price,omitempty"`
	UnrealizedPnL float64   `json:"unrealized_pnl"`
	LastUpdated   time.Time `json:"last_updated"`
}

// HasPrice reports whether a market price has been observed for the position.
func (p Position) HasPrice() bool {
	return p.CurrentPrice != nil
}

// MarketValue returns quantity * current price, or 0 when no price is known.
func (p Position) MarketValue() float64 {
	if p.CurrentPrice == nil {
		return 0
	}
	return p.Quantity * (*p.CurrentPrice)
}

// Portfolio 账户视图：现金 + 持仓集合。TotalValue 永远重算，不单独存储。
type Portfolio struct {
	AccountID   string     `json:"account_id"`
	CashBalance float64    `json:"cash_balance"`
	Positions   []Position `json:"positions"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// TotalValue returns cash plus the market value of every priced position.
func (p Portfolio) TotalValue() float64 {
	total := p.CashBalance
	for _, pos := range p.Positions {
		total += pos.MarketValue()
	}
	return total
}

// PortfolioPerformance 是 CalculatePerformance 的输出。
type PortfolioPerformance struct {
	AccountID          string    `json:"account_id"`
	CashBalance        float64   `json:"cash_balance"`
	TotalValue         float64   `json:"total_value"`
	TotalUnrealizedPnL float64   `json:"total_unrealized_pnl"`
	PositionCount      int       `json:"position_count"`
	CalculatedAt       time.Time `json:"calculated_at"`
}
