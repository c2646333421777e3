package trading

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"tradepilot/internal/broker"
	"tradepilot/internal/config"
	"tradepilot/internal/pkg/traderr"
	"tradepilot/internal/portfolio"
	"tradepilot/internal/store"
	"tradepilot/internal/store/model"
	"tradepilot/internal/types"
)

// ---- in-memory store ----

type memStore struct {
	mu         sync.Mutex
	trades     map[string]model.TradeModel
	portfolios map[string]model.PortfolioModel
	positions  map[string]model.PositionModel
}

func newMemStore() *memStore {
	return &memStore{
		trades:     make(map[string]model.TradeModel),
		portfolios: make(map[string]model.PortfolioModel),
		positions:  make(map[string]model.PositionModel),
	}
}

func (s *memStore) Trades() store.TradeRepository         { return memTradeRepo{s} }
func (s *memStore) Portfolios() store.PortfolioRepository { return memPortfolioRepo{s} }
func (s *memStore) Positions() store.PositionRepository   { return memPositionRepo{s} }
func (s *memStore) Close() error                          { return nil }

type memTradeRepo struct{ s *memStore }

func (r memTradeRepo) Save(_ context.Context, trade *model.TradeModel) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.trades[trade.OrderID] = *trade
	return nil
}

func (r memTradeRepo) FindByOrderID(_ context.Context, orderID string) (*model.TradeModel, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if row, ok := r.s.trades[orderID]; ok {
		copied := row
		return &copied, nil
	}
	return nil, nil
}

func (r memTradeRepo) FindRecent(_ context.Context, since time.Time) ([]model.TradeModel, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []model.TradeModel
	for _, row := range r.s.trades {
		if !row.CreatedAt.Before(since) {
			out = append(out, row)
		}
	}
	return out, nil
}

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

func positionKey(accountID, symbol string) string { return accountID + "|" + symbol }

func (r memPositionRepo) Save(_ context.Context, p *model.PositionModel) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.positions[positionKey(p.AccountID, p.Symbol)] = *p
	return nil
}

func (r memPositionRepo) FindRow(_ context.Context, accountID, symbol string) (*model.PositionModel, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if row, ok := r.s.positions[positionKey(accountID, symbol)]; ok {
		copied := row
		return &copied, nil
	}
	return nil, nil
}

func (r memPositionRepo) Delete(_ context.Context, accountID, symbol string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	delete(r.s.positions, positionKey(accountID, symbol))
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

// ---- mocks ----

type MockGateway struct {
	mock.Mock
}

func (m *MockGateway) PlaceOrder(ctx context.Context, req broker.OrderRequest) (broker.OrderResponse, error) {
	args := m.Called(ctx, req)
	return args.Get(0).(broker.OrderResponse), args.Error(1)
}

func (m *MockGateway) GetOrderStatus(ctx context.Context, orderID string) (types.OrderStatus, error) {
	args := m.Called(ctx, orderID)
	return args.Get(0).(types.OrderStatus), args.Error(1)
}

func (m *MockGateway) CancelOrder(ctx context.Context, orderID string) error {
	args := m.Called(ctx, orderID)
	return args.Error(0)
}

func (m *MockGateway) GetAccountInfo(ctx context.Context) (broker.AccountInfo, error) {
	args := m.Called(ctx)
	return args.Get(0).(broker.AccountInfo), args.Error(1)
}

func (m *MockGateway) GetPositions(ctx context.Context) ([]broker.Position, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]broker.Position), args.Error(1)
}

type stubProvider struct {
	price float64
	err   error
}

func (p stubProvider) GetCurrentQuote(_ context.Context, symbol string) (types.Quote, error) {
	if p.err != nil {
		return types.Quote{}, p.err
	}
	return types.Quote{Symbol: symbol, Price: p.price, Timestamp: time.Now()}, nil
}

func (p stubProvider) GetHistoricalData(context.Context, string, int) ([]types.Bar, error) {
	return nil, nil
}

// ---- fixtures ----

const testAccount = "acct-1"

func newTestService(t *testing.T, st *memStore, gateway *MockGateway, price float64) (*Service, *portfolio.Service) {
	t.Helper()
	provider := stubProvider{price: price}
	ledger := portfolio.NewService(st, provider, gateway)
	cfg := &config.TradingConfig{
		AccountID:         testAccount,
		MaxPositionSize:   10000,
		RiskPerTrade:      0.02,
		EnableAutoTrading: true,
	}
	return NewService(st, gateway, ledger, provider, cfg), ledger
}

func seedCash(st *memStore, cash float64) {
	st.portfolios[testAccount] = model.PortfolioModel{AccountID: testAccount, CashBalance: cash, UpdatedAt: time.Now()}
}

func seedPosition(st *memStore, symbol string, qty, avg float64) {
	st.positions[positionKey(testAccount, symbol)] = model.PositionModel{
		AccountID: testAccount, Symbol: symbol, Quantity: qty, AveragePrice: avg, UpdatedAt: time.Now(),
	}
}

// ---- tests ----

func TestExecuteBuyOrder_RejectsInsufficientFundsWithoutBrokerCall(t *testing.T) {
	st := newMemStore()
	seedCash(st, 1000)
	gateway := new(MockGateway)
	svc, _ := newTestService(t, st, gateway, 150)

	_, err := svc.ExecuteBuyOrder(context.Background(), OrderParams{Symbol: "AAPL", Quantity: 10})
	require.Error(t, err)

	var funds *traderr.InsufficientFundsError
	require.ErrorAs(t, err, &funds)
	assert.InDelta(t, 1500, funds.Required, 1e-9)
	assert.InDelta(t, 1000, funds.Available, 1e-9)
	gateway.AssertNotCalled(t, "PlaceOrder", mock.Anything, mock.Anything)
}

func TestExecuteSellOrder_RejectsInsufficientShares(t *testing.T) {
	st := newMemStore()
	seedCash(st, 100000)
	seedPosition(st, "AAPL", 3, 140)
	gateway := new(MockGateway)
	svc, _ := newTestService(t, st, gateway, 150)

	_, err := svc.ExecuteSellOrder(context.Background(), OrderParams{Symbol: "AAPL", Quantity: 10})
	require.Error(t, err)

	var shares *traderr.InsufficientSharesError
	require.ErrorAs(t, err, &shares)
	assert.InDelta(t, 3, shares.Held, 1e-9)
	gateway.AssertNotCalled(t, "PlaceOrder", mock.Anything, mock.Anything)
}

func TestExecuteBuyOrder_RejectsNotionalAboveCap(t *testing.T) {
	st := newMemStore()
	seedCash(st, 1000000)
	gateway := new(MockGateway)
	svc, _ := newTestService(t, st, gateway, 150)

	_, err := svc.ExecuteBuyOrder(context.Background(), OrderParams{Symbol: "AAPL", Quantity: 100})
	require.Error(t, err)
	assert.True(t, traderr.IsRejection(err))
	gateway.AssertNotCalled(t, "PlaceOrder", mock.Anything, mock.Anything)
}

func TestExecuteBuyOrder_ValidationRejections(t *testing.T) {
	st := newMemStore()
	gateway := new(MockGateway)
	svc, _ := newTestService(t, st, gateway, 150)
	ctx := context.Background()

	cases := []OrderParams{
		{Symbol: "", Quantity: 10},
		{Symbol: "AAPL", Quantity: 0},
		{Symbol: "AAPL", Quantity: -3},
		{Symbol: "AAPL", Quantity: 10, OrderType: types.OrderTypeLimit},
		{Symbol: "AAPL", Quantity: 10, OrderType: types.OrderTypeStop},
		{Symbol: "AAPL", Quantity: 10, OrderType: "iceberg"},
	}
	for _, params := range cases {
		_, err := svc.ExecuteBuyOrder(ctx, params)
		var invalid *traderr.InvalidOrderError
		assert.ErrorAs(t, err, &invalid, "params=%+v", params)
	}
	gateway.AssertNotCalled(t, "PlaceOrder", mock.Anything, mock.Anything)
}

func TestExecuteBuyOrder_ImmediateFillSettlesLedger(t *testing.T) {
	st := newMemStore()
	seedCash(st, 5000)
	gateway := new(MockGateway)
	gateway.On("PlaceOrder", mock.Anything, mock.Anything).
		Return(broker.OrderResponse{
			OrderID:        "brk-1",
			Status:         types.OrderStatusFilled,
			FilledQuantity: 10,
			FilledPrice:    150,
		}, nil).Once()

	svc, ledger := newTestService(t, st, gateway, 150)
	trade, err := svc.ExecuteBuyOrder(context.Background(), OrderParams{Symbol: "AAPL", Quantity: 10})
	require.NoError(t, err)

	assert.Equal(t, "brk-1", trade.OrderID)
	assert.Equal(t, types.OrderStatusFilled, trade.Status)
	require.NotNil(t, trade.ExecutedAt)

	pos, err := ledger.GetPosition(context.Background(), testAccount, "AAPL")
	require.NoError(t, err)
	require.NotNil(t, pos)
	assert.InDelta(t, 10, pos.Quantity, 1e-9)
	assert.InDelta(t, 150, pos.AveragePrice, 1e-9)

	view, err := ledger.GetPortfolio(context.Background(), testAccount)
	require.NoError(t, err)
	assert.InDelta(t, 3500, view.CashBalance, 1e-9)
}

func TestExecuteSellOrder_FillRealizesPnLAndNotifiesObserver(t *testing.T) {
	st := newMemStore()
	seedCash(st, 1000)
	seedPosition(st, "AAPL", 10, 140)
	gateway := new(MockGateway)
	gateway.On("PlaceOrder", mock.Anything, mock.Anything).
		Return(broker.OrderResponse{
			OrderID:        "brk-2",
			Status:         types.OrderStatusFilled,
			FilledQuantity: 10,
			FilledPrice:    150,
		}, nil).Once()

	svc, ledger := newTestService(t, st, gateway, 150)
	var gotStrategy string
	var gotPnL float64
	svc.SetPnLObserver(pnlObserverFunc(func(name string, pnl float64) {
		gotStrategy, gotPnL = name, pnl
	}))

	trade, err := svc.ExecuteSellOrder(context.Background(), OrderParams{
		Symbol: "AAPL", Quantity: 10, StrategyName: "sma-fast",
	})
	require.NoError(t, err)
	assert.InDelta(t, 100, trade.RealizedPnL, 1e-9) // 10 * (150-140)
	assert.Equal(t, "sma-fast", gotStrategy)
	assert.InDelta(t, 100, gotPnL, 1e-9)

	// 持仓归零后行被删除
	pos, err := ledger.GetPosition(context.Background(), testAccount, "AAPL")
	require.NoError(t, err)
	assert.Nil(t, pos)
}

func TestSubmit_FailureLeavesLedgerUntouched(t *testing.T) {
	st := newMemStore()
	seedCash(st, 5000)
	gateway := new(MockGateway)
	gateway.On("PlaceOrder", mock.Anything, mock.Anything).
		Return(broker.OrderResponse{}, traderr.NewAPIConnection("/v1/orders", assert.AnError))

	svc, ledger := newTestService(t, st, gateway, 150)
	_, err := svc.ExecuteBuyOrder(context.Background(), OrderParams{Symbol: "AAPL", Quantity: 10})
	require.Error(t, err)

	view, verr := ledger.GetPortfolio(context.Background(), testAccount)
	require.NoError(t, verr)
	assert.InDelta(t, 5000, view.CashBalance, 1e-9, "失败的提交不能动现金")
	pos, perr := ledger.GetPosition(context.Background(), testAccount, "AAPL")
	require.NoError(t, perr)
	assert.Nil(t, pos)

	// 审计行保留为 CANCELLED
	require.Len(t, st.trades, 1)
	for _, row := range st.trades {
		assert.Equal(t, string(types.OrderStatusCancelled), row.Status)
	}
}

func TestGetOrderStatus_TerminalStateSkipsBroker(t *testing.T) {
	st := newMemStore()
	now := time.Now()
	st.trades["ord-1"] = model.TradeModel{
		OrderID: "ord-1", AccountID: testAccount, Symbol: "AAPL",
		Type: string(types.TradeTypeBuy), Quantity: 10, Price: 150,
		Status: string(types.OrderStatusFilled), CreatedAt: now, ExecutedAt: &now,
	}
	gateway := new(MockGateway)
	svc, _ := newTestService(t, st, gateway, 150)

	trade, err := svc.GetOrderStatus(context.Background(), "ord-1")
	require.NoError(t, err)
	assert.Equal(t, types.OrderStatusFilled, trade.Status)
	gateway.AssertNotCalled(t, "GetOrderStatus", mock.Anything, mock.Anything)
}

func TestGetOrderStatus_AdvancesToFilledAndSettles(t *testing.T) {
	st := newMemStore()
	seedCash(st, 5000)
	st.trades["ord-2"] = model.TradeModel{
		OrderID: "ord-2", AccountID: testAccount, Symbol: "AAPL",
		Type: string(types.TradeTypeBuy), Quantity: 10, Price: 150,
		Status: string(types.OrderStatusSubmitted), CreatedAt: time.Now(),
	}
	gateway := new(MockGateway)
	gateway.On("GetOrderStatus", mock.Anything, "ord-2").Return(types.OrderStatusFilled, nil).Once()

	svc, ledger := newTestService(t, st, gateway, 150)
	trade, err := svc.GetOrderStatus(context.Background(), "ord-2")
	require.NoError(t, err)
	assert.Equal(t, types.OrderStatusFilled, trade.Status)
	require.NotNil(t, trade.ExecutedAt)

	pos, err := ledger.GetPosition(context.Background(), testAccount, "AAPL")
	require.NoError(t, err)
	require.NotNil(t, pos)
	assert.InDelta(t, 10, pos.Quantity, 1e-9)
}

func TestCancelOrder_RejectsTerminalOrders(t *testing.T) {
	st := newMemStore()
	now := time.Now()
	st.trades["ord-3"] = model.TradeModel{
		OrderID: "ord-3", AccountID: testAccount, Symbol: "AAPL",
		Type: string(types.TradeTypeBuy), Quantity: 10, Price: 150,
		Status: string(types.OrderStatusFilled), CreatedAt: now, ExecutedAt: &now,
	}
	gateway := new(MockGateway)
	svc, _ := newTestService(t, st, gateway, 150)

	err := svc.CancelOrder(context.Background(), "ord-3")
	require.Error(t, err)
	assert.True(t, traderr.IsRejection(err))
	gateway.AssertNotCalled(t, "CancelOrder", mock.Anything, mock.Anything)
}

func TestCancelOrder_CancelsUnresolvedOrder(t *testing.T) {
	st := newMemStore()
	st.trades["ord-4"] = model.TradeModel{
		OrderID: "ord-4", AccountID: testAccount, Symbol: "AAPL",
		Type: string(types.TradeTypeBuy), Quantity: 10, Price: 150,
		Status: string(types.OrderStatusSubmitted), CreatedAt: time.Now(),
	}
	gateway := new(MockGateway)
	gateway.On("CancelOrder", mock.Anything, "ord-4").Return(nil).Once()

	svc, _ := newTestService(t, st, gateway, 150)
	require.NoError(t, svc.CancelOrder(context.Background(), "ord-4"))
	assert.Equal(t, string(types.OrderStatusCancelled), st.trades["ord-4"].Status)
}

type pnlObserverFunc func(strategyName string, pnl float64)

func (f pnlObserverFunc) OnTradeClosed(strategyName string, pnl float64) { f(strategyName, pnl) }
