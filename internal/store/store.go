// Package store declares the persistence capability consumed by the trading
// core. 核心只依赖这些操作签名，不依赖具体 ORM 映射。
package store

import (
	"context"
	"time"

	"tradepilot/internal/store/model"
)

// TradeRepository 交易记录仓库（append-only，按 order_id 引用）。
type TradeRepository interface {
	Save(ctx context.Context, trade *model.TradeModel) error
	FindByOrderID(ctx context.Context, orderID string) (*model.TradeModel, error)
	FindRecent(ctx context.Context, since time.Time) ([]model.TradeModel, error)
}

// PortfolioRepository 账户组合仓库。
type PortfolioRepository interface {
	Save(ctx context.Context, portfolio *model.PortfolioModel) error
	FindByAccountID(ctx context.Context, accountID string) (*model.PortfolioModel, error)
}

// PositionRepository 持仓仓库。删除必须显式调用，没有级联。
type PositionRepository interface {
	Save(ctx context.Context, position *model.PositionModel) error
	FindRow(ctx context.Context, accountID, symbol string) (*model.PositionModel, error)
	Delete(ctx context.Context, accountID, symbol string) error
	ListByAccount(ctx context.Context, accountID string) ([]model.PositionModel, error)
}

// Store 聚合全部仓库。
type Store interface {
	Trades() TradeRepository
	Portfolios() PortfolioRepository
	Positions() PositionRepository
	Close() error
}
