package broker

import (
	"context"
	"time"

	"tradepilot/internal/logger"
	"tradepilot/internal/pkg/traderr"
	"tradepilot/internal/types"
)

// RetryPolicy 控制网关调用的重试行为：只重试连接类错误，
// 业务拒绝立即向上抛。
type RetryPolicy struct {
	MaxAttempts int
	Backoff     time.Duration // 首次等待，之后每次翻倍
}

// DefaultRetryPolicy 3 次尝试，500ms 起步。
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{MaxAttempts: 3, Backoff: 500 * time.Millisecond}
}

func (p RetryPolicy) normalized() RetryPolicy {
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = 3
	}
	if p.Backoff <= 0 {
		p.Backoff = 500 * time.Millisecond
	}
	return p
}

// withRetry 执行 fn，连接失败时按指数退避重试。
func withRetry[T any](ctx context.Context, op string, policy RetryPolicy, fn func() (T, error)) (T, error) {
	policy = policy.normalized()
	var (
		result T
		err    error
	)
	backoff := policy.Backoff
	for attempt := 1; attempt <= policy.MaxAttempts; attempt++ {
		result, err = fn()
		if err == nil {
			return result, nil
		}
		if !traderr.IsRetryable(err) {
			return result, err
		}
		if attempt == policy.MaxAttempts {
			break
		}
		logger.Warnf("broker: %s attempt %d/%d failed, retrying in %s: %v", op, attempt, policy.MaxAttempts, backoff, err)
		select {
		case <-ctx.Done():
			return result, ctx.Err()
		case <-time.After(backoff):
		}
		backoff *= 2
	}
	logger.Errorf("broker: %s failed after %d attempts: %v", op, policy.MaxAttempts, err)
	return result, err
}

// RetryingGateway 用重试策略包装任意 Gateway 实现。
type RetryingGateway struct {
	inner  Gateway
	policy RetryPolicy
}

// WithRetry decorates a gateway with the retry policy.
func WithRetry(inner Gateway, policy RetryPolicy) *RetryingGateway {
	return &RetryingGateway{inner: inner, policy: policy.normalized()}
}

func (g *RetryingGateway) PlaceOrder(ctx context.Context, req OrderRequest) (OrderResponse, error) {
	return withRetry(ctx, "place order", g.policy, func() (OrderResponse, error) {
		return g.inner.PlaceOrder(ctx, req)
	})
}

func (g *RetryingGateway) GetOrderStatus(ctx context.Context, orderID string) (types.OrderStatus, error) {
	return withRetry(ctx, "order status", g.policy, func() (types.OrderStatus, error) {
		return g.inner.GetOrderStatus(ctx, orderID)
	})
}

func (g *RetryingGateway) CancelOrder(ctx context.Context, orderID string) error {
	_, err := withRetry(ctx, "cancel order", g.policy, func() (struct{}, error) {
		return struct{}{}, g.inner.CancelOrder(ctx, orderID)
	})
	return err
}

func (g *RetryingGateway) GetAccountInfo(ctx context.Context) (AccountInfo, error) {
	return withRetry(ctx, "account info", g.policy, func() (AccountInfo, error) {
		return g.inner.GetAccountInfo(ctx)
	})
}

func (g *RetryingGateway) GetPositions(ctx context.Context) ([]Position, error) {
	return withRetry(ctx, "positions", g.policy, func() ([]Position, error) {
		return g.inner.GetPositions(ctx)
	})
}
