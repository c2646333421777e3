package model

import (
	"time"

	"gorm.io/datatypes"
)

// TradeModel 交易记录行。order_id 唯一；FILLED/CANCELLED 之后不再更新。
type TradeModel struct {
	ID           uint           `gorm:"primaryKey;autoIncrement"`
	OrderID      string         `gorm:"column:order_id;uniqueIndex;size:64"`
	AccountID    string         `gorm:"column:account_id;index;size:64"`
	Symbol       string         `gorm:"column:symbol;index;size:20"`
	Type         string         `gorm:"column:type;size:8"`
	Quantity     float64        `gorm:"column:quantity"`
	Price        float64        `gorm:"column:price"`
	Status       string         `gorm:"column:status;index;size:20"`
	StrategyName string         `gorm:"column:strategy_name;index;size:64"`
	RealizedPnL  float64        `gorm:"column:realized_pnl"`
	SignalMeta   datatypes.JSON `gorm:"column:signal_meta"`
	CreatedAt    time.Time      `gorm:"column:created_at;index"`
	ExecutedAt   *time.Time     `gorm:"column:executed_at"`
	UpdatedAt    time.Time      `gorm:"column:updated_at"`
}

func (TradeModel) TableName() string { return "trades" }

// PortfolioModel 账户现金行。持仓单独成表，保存/删除都显式进行。
type PortfolioModel struct {
	ID          uint      `gorm:"primaryKey;autoIncrement"`
	AccountID   string    `gorm:"column:account_id;uniqueIndex;size:64"`
	CashBalance float64   `gorm:"column:cash_balance"`
	UpdatedAt   time.Time `gorm:"column:updated_at"`
}

func (PortfolioModel) TableName() string { return "portfolios" }

// PositionModel 持仓行，(account_id, symbol) 唯一。数量归零时删除整行。
type PositionModel struct {
	ID           uint      `gorm:"primaryKey;autoIncrement"`
	AccountID    string    `gorm:"column:account_id;uniqueIndex:idx_account_symbol;size:64"`
	Symbol       string    `gorm:"column:symbol;uniqueIndex:idx_account_symbol;size:20"`
	Quantity     float64   `gorm:"column:quantity"`
	AveragePrice float64   `gorm:"column:average_price"`
	UpdatedAt    time.Time `gorm:"column:updated_at"`
}

func (PositionModel) TableName() string { return "positions" }
