package broker

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"tradepilot/internal/pkg/traderr"
	"tradepilot/internal/types"
)

type MockGateway struct {
	mock.Mock
}

func (m *MockGateway) PlaceOrder(ctx context.Context, req OrderRequest) (OrderResponse, error) {
	args := m.Called(ctx, req)
	return args.Get(0).(OrderResponse), args.Error(1)
}

func (m *MockGateway) GetOrderStatus(ctx context.Context, orderID string) (types.OrderStatus, error) {
	args := m.Called(ctx, orderID)
	return args.Get(0).(types.OrderStatus), args.Error(1)
}

func (m *MockGateway) CancelOrder(ctx context.Context, orderID string) error {
	args := m.Called(ctx, orderID)
	return args.Error(0)
}

func (m *MockGateway) GetAccountInfo(ctx context.Context) (AccountInfo, error) {
	args := m.Called(ctx)
	return args.Get(0).(AccountInfo), args.Error(1)
}

func (m *MockGateway) GetPositions(ctx context.Context) ([]Position, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]Position), args.Error(1)
}

func fastPolicy() RetryPolicy {
	return RetryPolicy{MaxAttempts: 3, Backoff: time.Millisecond}
}

func TestRetryingGateway_RetriesConnectionFailures(t *testing.T) {
	inner := new(MockGateway)
	connErr := traderr.NewAPIConnection("/v1/orders", assert.AnError)
	inner.On("PlaceOrder", mock.Anything, mock.Anything).
		Return(OrderResponse{}, connErr).Twice()
	inner.On("PlaceOrder", mock.Anything, mock.Anything).
		Return(OrderResponse{OrderID: "ok-1", Status: types.OrderStatusSubmitted}, nil).Once()

	g := WithRetry(inner, fastPolicy())
	resp, err := g.PlaceOrder(context.Background(), OrderRequest{Symbol: "AAPL"})
	require.NoError(t, err)
	assert.Equal(t, "ok-1", resp.OrderID)
	inner.AssertNumberOfCalls(t, "PlaceOrder", 3)
}

func TestRetryingGateway_GivesUpAfterMaxAttempts(t *testing.T) {
	inner := new(MockGateway)
	connErr := traderr.NewAPIConnection("/v1/orders", assert.AnError)
	inner.On("PlaceOrder", mock.Anything, mock.Anything).
		Return(OrderResponse{}, connErr)

	g := WithRetry(inner, fastPolicy())
	_, err := g.PlaceOrder(context.Background(), OrderRequest{Symbol: "AAPL"})
	require.Error(t, err)
	assert.True(t, traderr.IsRetryable(err))
	inner.AssertNumberOfCalls(t, "PlaceOrder", 3)
}

func TestRetryingGateway_NeverRetriesRejections(t *testing.T) {
	inner := new(MockGateway)
	inner.On("PlaceOrder", mock.Anything, mock.Anything).
		Return(OrderResponse{}, traderr.NewInvalidOrder("quantity must be positive"))

	g := WithRetry(inner, fastPolicy())
	_, err := g.PlaceOrder(context.Background(), OrderRequest{Symbol: "AAPL"})
	require.Error(t, err)
	assert.True(t, traderr.IsRejection(err))
	inner.AssertNumberOfCalls(t, "PlaceOrder", 1)
}

func TestRetryingGateway_StopsWhenContextCancelled(t *testing.T) {
	inner := new(MockGateway)
	connErr := traderr.NewAPIConnection("/v1/account", assert.AnError)
	inner.On("GetAccountInfo", mock.Anything).Return(AccountInfo{}, connErr)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	g := WithRetry(inner, RetryPolicy{MaxAttempts: 3, Backoff: time.Second})
	_, err := g.GetAccountInfo(ctx)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	inner.AssertNumberOfCalls(t, "GetAccountInfo", 1)
}
