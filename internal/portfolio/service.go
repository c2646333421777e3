// Package portfolio maintains the local position ledger and the account cash
// row. 所有成交先落到这里，broker 对账时以券商数据为准整体覆盖。
package portfolio

import (
	"context"
	"fmt"
	"sync"
	"time"

	"tradepilot/internal/broker"
	"tradepilot/internal/logger"
	"tradepilot/internal/market"
	"tradepilot/internal/pkg/decmath"
	"tradepilot/internal/pkg/traderr"
	"tradepilot/internal/store"
	"tradepilot/internal/store/model"
	"tradepilot/internal/types"
)

// Service 持仓账本。写路径按 (account, symbol) 串行化，读路径无锁。
type Service struct {
	store    store.Store
	provider market.Provider
	gateway  broker.Gateway

	locks keyLocks

	pricesMu   sync.RWMutex
	lastPrices map[string]float64
}

// NewService wires the ledger over its persistence, quote and broker deps.
func NewService(st store.Store, provider market.Provider, gateway broker.Gateway) *Service {
	return &Service{
		store:      st,
		provider:   provider,
		gateway:    gateway,
		lastPrices: make(map[string]float64),
	}
}

// ApplyFill folds a filled trade into the ledger and adjusts the cash row.
// Returns the realized P&L of the closed slice (zero when only adding).
func (s *Service) ApplyFill(ctx context.Context, trade *types.Trade) (float64, error) {
	if trade == nil {
		return 0, fmt.Errorf("trade cannot be nil")
	}
	if trade.Status != types.OrderStatusFilled {
		return 0, fmt.Errorf("cannot apply unfilled trade %s (status %s)", trade.OrderID, trade.Status)
	}
	if !trade.Type.Valid() || trade.Quantity <= 0 || trade.Price <= 0 {
		return 0, traderr.NewInvalidOrder("fill for %s has invalid quantity/price", trade.Symbol)
	}

	fillQty := trade.Quantity
	if trade.Type == types.TradeTypeSell {
		fillQty = -fillQty
	}

	unlock := s.locks.lock(trade.AccountID + "|" + trade.Symbol)
	defer unlock()

	row, err := s.store.Positions().FindRow(ctx, trade.AccountID, trade.Symbol)
	if err != nil {
		return 0, fmt.Errorf("load position %s/%s: %w", trade.AccountID, trade.Symbol, err)
	}
	var curQty, curAvg float64
	if row != nil {
		curQty, curAvg = row.Quantity, row.AveragePrice
	}

	out := applyFill(curQty, curAvg, fillQty, trade.Price)
	now := time.Now()

	if out.Closed {
		if err := s.store.Positions().Delete(ctx, trade.AccountID, trade.Symbol); err != nil {
			return 0, fmt.Errorf("delete flat position %s/%s: %w", trade.AccountID, trade.Symbol, err)
		}
	} else {
		next := &model.PositionModel{
			AccountID:    trade.AccountID,
			Symbol:       trade.Symbol,
			Quantity:     out.Quantity,
			AveragePrice: out.AveragePrice,
			UpdatedAt:    now,
		}
		if row != nil {
			next.ID = row.ID
		}
		if err := s.store.Positions().Save(ctx, next); err != nil {
			return 0, fmt.Errorf("save position %s/%s: %w", trade.AccountID, trade.Symbol, err)
		}
	}

	if err := s.adjustCash(ctx, trade.AccountID, -decmath.Notional(fillQty, trade.Price), now); err != nil {
		return out.RealizedPnL, err
	}
	return out.RealizedPnL, nil
}

// adjustCash 是账户级的读改写：不同标的的成交会并发走到这里，
// 必须用独立于持仓锁的账户级锁串行化，否则余额更新会互相覆盖。
func (s *Service) adjustCash(ctx context.Context, accountID string, delta float64, now time.Time) error {
	unlock := s.locks.lock("cash|" + accountID)
	defer unlock()

	row, err := s.store.Portfolios().FindByAccountID(ctx, accountID)
	if err != nil {
		return fmt.Errorf("load portfolio %s: %w", accountID, err)
	}
	next := &model.PortfolioModel{AccountID: accountID, UpdatedAt: now}
	if row != nil {
		next.ID = row.ID
		next.CashBalance = row.CashBalance
	}
	next.CashBalance = decmath.ToFloat(decmath.FromFloat(next.CashBalance).Add(decmath.FromFloat(delta)).Round(4))
	if err := s.store.Portfolios().Save(ctx, next); err != nil {
		return fmt.Errorf("save portfolio %s: %w", accountID, err)
	}
	return nil
}

// GetPosition returns the held position for symbol, or nil when flat.
func (s *Service) GetPosition(ctx context.Context, accountID, symbol string) (*types.Position, error) {
	row, err := s.store.Positions().FindRow(ctx, accountID, symbol)
	if err != nil {
		return nil, err
	}
	if row == nil {
		return nil, nil
	}
	pos := s.toPosition(*row)
	return &pos, nil
}

// GetPositions lists every ledger position for the account, priced with the
// last observed quotes.
func (s *Service) GetPositions(ctx context.Context, accountID string) ([]types.Position, error) {
	rows, err := s.store.Positions().ListByAccount(ctx, accountID)
	if err != nil {
		return nil, err
	}
	positions := make([]types.Position, 0, len(rows))
	for _, row := range rows {
		positions = append(positions, s.toPosition(row))
	}
	return positions, nil
}

// GetActivePositions filters out any zero-quantity remnant rows.
func (s *Service) GetActivePositions(ctx context.Context, accountID string) ([]types.Position, error) {
	positions, err := s.GetPositions(ctx, accountID)
	if err != nil {
		return nil, err
	}
	active := positions[:0]
	for _, pos := range positions {
		if !decmath.IsZero(pos.Quantity) {
			active = append(active, pos)
		}
	}
	return active, nil
}

// GetPortfolio assembles the cash row plus all positions into one view.
func (s *Service) GetPortfolio(ctx context.Context, accountID string) (*types.Portfolio, error) {
	cashRow, err := s.store.Portfolios().FindByAccountID(ctx, accountID)
	if err != nil {
		return nil, err
	}
	positions, err := s.GetPositions(ctx, accountID)
	if err != nil {
		return nil, err
	}
	view := &types.Portfolio{
		AccountID: accountID,
		Positions: positions,
		UpdatedAt: time.Now(),
	}
	if cashRow != nil {
		view.CashBalance = cashRow.CashBalance
		view.UpdatedAt = cashRow.UpdatedAt
	}
	return view, nil
}

// RefreshPrices pulls a quote for every held symbol. A failed symbol is
// logged and skipped so one outage does not blank the whole book.
func (s *Service) RefreshPrices(ctx context.Context, accountID string) error {
	rows, err := s.store.Positions().ListByAccount(ctx, accountID)
	if err != nil {
		return err
	}
	var failed int
	for _, row := range rows {
		quote, err := s.provider.GetCurrentQuote(ctx, row.Symbol)
		if err != nil {
			failed++
			logger.Warnf("刷新 %s 价格失败: %v", row.Symbol, err)
			continue
		}
		s.pricesMu.Lock()
		s.lastPrices[row.Symbol] = quote.Price
		s.pricesMu.Unlock()
	}
	if failed > 0 && failed == len(rows) {
		return &traderr.MarketDataError{Reason: fmt.Sprintf("all %d quote refreshes failed", failed)}
	}
	return nil
}

// CalculatePerformance totals the account at the current prices. 只统计
// 非零持仓，残留的零数量行不计入 position_count。
func (s *Service) CalculatePerformance(ctx context.Context, accountID string) (*types.PortfolioPerformance, error) {
	cashRow, err := s.store.Portfolios().FindByAccountID(ctx, accountID)
	if err != nil {
		return nil, err
	}
	positions, err := s.GetActivePositions(ctx, accountID)
	if err != nil {
		return nil, err
	}
	perf := &types.PortfolioPerformance{
		AccountID:     accountID,
		PositionCount: len(positions),
		CalculatedAt:  time.Now(),
	}
	if cashRow != nil {
		perf.CashBalance = cashRow.CashBalance
	}
	perf.TotalValue = perf.CashBalance
	for _, pos := range positions {
		perf.TotalValue += pos.MarketValue()
		perf.TotalUnrealizedPnL += pos.UnrealizedPnL
	}
	return perf, nil
}

// SynchronizePortfolio overwrites the local ledger with broker truth: cash
// from the account snapshot, positions row-for-row, local leftovers deleted.
func (s *Service) SynchronizePortfolio(ctx context.Context, accountID string) error {
	account, err := s.gateway.GetAccountInfo(ctx)
	if err != nil {
		return fmt.Errorf("broker account snapshot: %w", err)
	}
	brokerPositions, err := s.gateway.GetPositions(ctx)
	if err != nil {
		return fmt.Errorf("broker positions snapshot: %w", err)
	}

	now := time.Now()
	unlockCash := s.locks.lock("cash|" + accountID)
	err = s.store.Portfolios().Save(ctx, &model.PortfolioModel{
		AccountID:   accountID,
		CashBalance: account.Cash,
		UpdatedAt:   now,
	})
	unlockCash()
	if err != nil {
		return fmt.Errorf("save synced portfolio: %w", err)
	}

	seen := make(map[string]struct{}, len(brokerPositions))
	for _, bp := range brokerPositions {
		seen[bp.Symbol] = struct{}{}
		unlock := s.locks.lock(accountID + "|" + bp.Symbol)
		err := s.store.Positions().Save(ctx, &model.PositionModel{
			AccountID:    accountID,
			Symbol:       bp.Symbol,
			Quantity:     bp.Quantity,
			AveragePrice: bp.AveragePrice,
			UpdatedAt:    now,
		})
		unlock()
		if err != nil {
			return fmt.Errorf("save synced position %s: %w", bp.Symbol, err)
		}
	}

	local, err := s.store.Positions().ListByAccount(ctx, accountID)
	if err != nil {
		return err
	}
	for _, row := range local {
		if _, ok := seen[row.Symbol]; ok {
			continue
		}
		logger.Warnf("本地持仓 %s 在券商侧不存在，删除", row.Symbol)
		if err := s.store.Positions().Delete(ctx, accountID, row.Symbol); err != nil {
			return fmt.Errorf("delete stale position %s: %w", row.Symbol, err)
		}
	}
	logger.Infof("组合对账完成: account=%s cash=%.4f positions=%d", accountID, account.Cash, len(brokerPositions))
	return nil
}

func (s *Service) toPosition(row model.PositionModel) types.Position {
	pos := types.Position{
		Symbol:       row.Symbol,
		Quantity:     row.Quantity,
		AveragePrice: row.AveragePrice,
		LastUpdated:  row.UpdatedAt,
	}
	s.pricesMu.RLock()
	price, ok := s.lastPrices[row.Symbol]
	s.pricesMu.RUnlock()
	if ok {
		pos.CurrentPrice = &price
		pos.UnrealizedPnL = decmath.PnL(row.Quantity, row.AveragePrice, price)
	}
	return pos
}

// keyLocks 按 key 串行化写操作的小工具。
type keyLocks struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func (k *keyLocks) lock(key string) func() {
	k.mu.Lock()
	if k.locks == nil {
		k.locks = make(map[string]*sync.Mutex)
	}
	l, ok := k.locks[key]
	if !ok {
		l = &sync.Mutex{}
		k.locks[key] = l
	}
	k.mu.Unlock()
	l.Lock()
	return l.Unlock
}
