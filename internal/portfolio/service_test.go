package portfolio

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tradepilot/internal/broker"
	"tradepilot/internal/store"
	"tradepilot/internal/store/model"
	"tradepilot/internal/types"
)

type memStore struct {
	mu         sync.Mutex
	portfolios map[string]model.PortfolioModel
	positions  map[string]model.PositionModel
}

func newMemStore() *memStore {
	return &memStore{
		portfolios: make(map[string]model.PortfolioModel),
		positions:  make(map[string]model.PositionModel),
	}
}

func key(accountID, symbol string) string { return accountID + "|" + symbol }

func (s *memStore) Trades() store.TradeRepository         { return nil }
func (s *memStore) Portfolios() store.PortfolioRepository { return memPortfolioRepo{s} }
func (s *memStore) Positions() store.PositionRepository   { return memPositionRepo{s} }
func (s *memStore) Close() error                          { return nil }

type memPortfolioRepo struct{ s *memStore }

func (r memPortfolioRepo) Save(_ context.Context, p *model.PortfolioModel) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.portfolios[p.AccountID] = *p
	return nil
}

func (r memPortfolioRepo) FindByAccountID(_ context.Context, accountID string) (*model.PortfolioModel, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if row, ok := r.s.portfolios[accountID]; ok {
		copied := row
		return &copied, nil
	}
	return nil, nil
}

type memPositionRepo struct{ s *memStore }

func (r memPositionRepo) Save(_ context.Context, p *model.PositionModel) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.positions[key(p.AccountID, p.Symbol)] = *p
	return nil
}

func (r memPositionRepo) FindRow(_ context.Context, accountID, symbol string) (*model.PositionModel, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if row, ok := r.s.positions[key(accountID, symbol)]; ok {
		copied := row
		return &copied, nil
	}
	return nil, nil
}

func (r memPositionRepo) Delete(_ context.Context, accountID, symbol string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	delete(r.s.positions, key(accountID, symbol))
	return nil
}

func (r memPositionRepo) ListByAccount(_ context.Context, accountID string) ([]model.PositionModel, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []model.PositionModel
	for _, row := range r.s.positions {
		if row.AccountID == accountID {
			out = append(out, row)
		}
	}
	return out, nil
}

type stubGateway struct {
	account   broker.AccountInfo
	positions []broker.Position
	err       error
}

func (g stubGateway) PlaceOrder(context.Context, broker.OrderRequest) (broker.OrderResponse, error) {
	return broker.OrderResponse{}, errors.New("not implemented")
}
func (g stubGateway) GetOrderStatus(context.Context, string) (types.OrderStatus, error) {
	return "", errors.New("not implemented")
}
func (g stubGateway) CancelOrder(context.Context, string) error { return errors.New("not implemented") }
func (g stubGateway) GetAccountInfo(context.Context) (broker.AccountInfo, error) {
	return g.account, g.err
}
func (g stubGateway) GetPositions(context.Context) ([]broker.Position, error) {
	return g.positions, g.err
}

type stubProvider struct {
	prices map[string]float64
	err    error
}

func (p stubProvider) GetCurrentQuote(_ context.Context, symbol string) (types.Quote, error) {
	if p.err != nil {
		return types.Quote{}, p.err
	}
	price, ok := p.prices[symbol]
	if !ok {
		return types.Quote{}, errors.New("unknown symbol")
	}
	return types.Quote{Symbol: symbol, Price: price, Timestamp: time.Now()}, nil
}

func (p stubProvider) GetHistoricalData(context.Context, string, int) ([]types.Bar, error) {
	return nil, nil
}

const account = "acct-1"

func filledTrade(symbol string, side types.TradeType, qty, price float64) *types.Trade {
	now := time.Now()
	return &types.Trade{
		OrderID: "ord-" + symbol, AccountID: account, Symbol: symbol,
		Type: side, Quantity: qty, Price: price,
		Status: types.OrderStatusFilled, CreatedAt: now, ExecutedAt: &now,
	}
}

func TestApplyFill_PersistsPositionAndCash(t *testing.T) {
	st := newMemStore()
	st.portfolios[account] = model.PortfolioModel{AccountID: account, CashBalance: 10000}
	svc := NewService(st, stubProvider{}, stubGateway{})

	realized, err := svc.ApplyFill(context.Background(), filledTrade("AAPL", types.TradeTypeBuy, 10, 150))
	require.NoError(t, err)
	assert.Zero(t, realized)

	row := st.positions[key(account, "AAPL")]
	assert.InDelta(t, 10, row.Quantity, 1e-9)
	assert.InDelta(t, 150, row.AveragePrice, 1e-9)
	assert.InDelta(t, 8500, st.portfolios[account].CashBalance, 1e-9)
}

func TestApplyFill_RejectsUnfilledTrade(t *testing.T) {
	st := newMemStore()
	svc := NewService(st, stubProvider{}, stubGateway{})

	trade := filledTrade("AAPL", types.TradeTypeBuy, 10, 150)
	trade.Status = types.OrderStatusSubmitted
	_, err := svc.ApplyFill(context.Background(), trade)
	assert.Error(t, err)
	assert.Empty(t, st.positions)
}

func TestApplyFill_ConcurrentFillsKeepCashConsistent(t *testing.T) {
	st := newMemStore()
	st.portfolios[account] = model.PortfolioModel{AccountID: account, CashBalance: 20000}
	svc := NewService(st, stubProvider{}, stubGateway{})

	// 不同标的走不同的持仓锁，现金扣减必须逐笔生效，一笔都不能丢。
	symbols := []string{"AAPL", "MSFT", "GOOG", "AMZN"}
	const fillsPerSymbol = 10

	var wg sync.WaitGroup
	for _, symbol := range symbols {
		wg.Add(1)
		go func(symbol string) {
			defer wg.Done()
			for i := 0; i < fillsPerSymbol; i++ {
				_, err := svc.ApplyFill(context.Background(), filledTrade(symbol, types.TradeTypeBuy, 1, 100))
				assert.NoError(t, err)
			}
		}(symbol)
	}
	wg.Wait()

	// 4 个标的 × 10 笔 × 100 = 4000
	assert.InDelta(t, 16000, st.portfolios[account].CashBalance, 1e-9)
	for _, symbol := range symbols {
		assert.InDelta(t, fillsPerSymbol, st.positions[key(account, symbol)].Quantity, 1e-9)
	}
}

func TestSynchronizePortfolio_BrokerStateWins(t *testing.T) {
	st := newMemStore()
	// 本地有一条券商侧不存在的持仓，同步后必须被删除。
	st.positions[key(account, "STALE")] = model.PositionModel{
		AccountID: account, Symbol: "STALE", Quantity: 3, AveragePrice: 50,
	}
	st.portfolios[account] = model.PortfolioModel{AccountID: account, CashBalance: 1}

	gateway := stubGateway{
		account: broker.AccountInfo{AccountID: account, Cash: 25000, Status: "ACTIVE"},
		positions: []broker.Position{
			{Symbol: "AAPL", Quantity: 12, AveragePrice: 148.5},
			{Symbol: "MSFT", Quantity: 4, AveragePrice: 310},
		},
	}
	svc := NewService(st, stubProvider{}, gateway)
	require.NoError(t, svc.SynchronizePortfolio(context.Background(), account))

	assert.InDelta(t, 25000, st.portfolios[account].CashBalance, 1e-9)
	assert.Len(t, st.positions, 2)
	assert.InDelta(t, 12, st.positions[key(account, "AAPL")].Quantity, 1e-9)
	_, stale := st.positions[key(account, "STALE")]
	assert.False(t, stale)
}

func TestRefreshPrices_ComputesUnrealizedPnL(t *testing.T) {
	st := newMemStore()
	st.positions[key(account, "AAPL")] = model.PositionModel{
		AccountID: account, Symbol: "AAPL", Quantity: 10, AveragePrice: 150,
	}
	provider := stubProvider{prices: map[string]float64{"AAPL": 155}}
	svc := NewService(st, provider, stubGateway{})

	require.NoError(t, svc.RefreshPrices(context.Background(), account))

	pos, err := svc.GetPosition(context.Background(), account, "AAPL")
	require.NoError(t, err)
	require.NotNil(t, pos)
	require.True(t, pos.HasPrice())
	assert.InDelta(t, 155, *pos.CurrentPrice, 1e-9)
	assert.InDelta(t, 50, pos.UnrealizedPnL, 1e-9) // 10 * (155-150)
}

func TestRefreshPrices_AllFailuresReturnError(t *testing.T) {
	st := newMemStore()
	st.positions[key(account, "AAPL")] = model.PositionModel{
		AccountID: account, Symbol: "AAPL", Quantity: 10, AveragePrice: 150,
	}
	svc := NewService(st, stubProvider{err: errors.New("feed down")}, stubGateway{})

	err := svc.RefreshPrices(context.Background(), account)
	assert.Error(t, err)
}

func TestCalculatePerformance_TotalsPositionsAndCash(t *testing.T) {
	st := newMemStore()
	st.portfolios[account] = model.PortfolioModel{AccountID: account, CashBalance: 1000}
	st.positions[key(account, "AAPL")] = model.PositionModel{
		AccountID: account, Symbol: "AAPL", Quantity: 10, AveragePrice: 150,
	}
	provider := stubProvider{prices: map[string]float64{"AAPL": 155}}
	svc := NewService(st, provider, stubGateway{})
	require.NoError(t, svc.RefreshPrices(context.Background(), account))

	perf, err := svc.CalculatePerformance(context.Background(), account)
	require.NoError(t, err)
	assert.InDelta(t, 1000, perf.CashBalance, 1e-9)
	assert.InDelta(t, 2550, perf.TotalValue, 1e-9) // 1000 + 10*155
	assert.InDelta(t, 50, perf.TotalUnrealizedPnL, 1e-9)
	assert.Equal(t, 1, perf.PositionCount)
}

func TestCalculatePerformance_IgnoresZeroQuantityRows(t *testing.T) {
	st := newMemStore()
	st.portfolios[account] = model.PortfolioModel{AccountID: account, CashBalance: 1000}
	st.positions[key(account, "AAPL")] = model.PositionModel{
		AccountID: account, Symbol: "AAPL", Quantity: 10, AveragePrice: 150,
	}
	// 残留的零数量行不计入活跃持仓。
	st.positions[key(account, "GONE")] = model.PositionModel{
		AccountID: account, Symbol: "GONE", Quantity: 0, AveragePrice: 80,
	}
	provider := stubProvider{prices: map[string]float64{"AAPL": 155, "GONE": 90}}
	svc := NewService(st, provider, stubGateway{})
	require.NoError(t, svc.RefreshPrices(context.Background(), account))

	perf, err := svc.CalculatePerformance(context.Background(), account)
	require.NoError(t, err)
	assert.Equal(t, 1, perf.PositionCount)
	assert.InDelta(t, 2550, perf.TotalValue, 1e-9)
}
