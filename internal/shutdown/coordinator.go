// Package shutdown implements the best-effort teardown pass: resolve what the
// broker still holds open, cancel it, and give partial fills a bounded window
// to settle. 清理失败只告警，不阻塞进程退出。
package shutdown

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"

	"tradepilot/internal/config"
	"tradepilot/internal/logger"
	"tradepilot/internal/trading"
	"tradepilot/internal/types"
)

// Coordinator 停机清理器。
type Coordinator struct {
	trading *trading.Service
	cfg     *config.ShutdownConfig
}

// NewCoordinator wires the teardown pass.
func NewCoordinator(tradingSvc *trading.Service, cfg *config.ShutdownConfig) *Coordinator {
	return &Coordinator{trading: tradingSvc, cfg: cfg}
}

// Run executes the teardown within cfg.TimeoutSeconds. Cancellation gets the
// first half of the budget, the fill wait gets whatever remains. Run never
// returns an error for incomplete cleanup; it logs and moves on.
func (c *Coordinator) Run(ctx context.Context) {
	timeout := time.Duration(c.cfg.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	deadline, _ := ctx.Deadline()

	pending := c.collectUnresolved(ctx)
	if len(pending) == 0 {
		logger.Infof("Shutdown: no unresolved orders, nothing to clean up")
		return
	}
	logger.Infof("Shutdown: %d unresolved order(s) to reconcile", len(pending))

	if c.cfg.CancelPendingOrders {
		c.cancelAll(ctx, pending, timeout/2)
	}
	if c.cfg.WaitForFills {
		c.waitForResolution(ctx, pending)
	}

	if remaining := time.Until(deadline); remaining <= 0 {
		logger.Warnf("Shutdown: cleanup budget exhausted with work possibly outstanding")
	}
}

// collectUnresolved lists recent trades whose local status is non-terminal and
// whose broker status agrees. 本地状态可能滞后，以券商应答为准。
func (c *Coordinator) collectUnresolved(ctx context.Context) []types.Trade {
	lookback := time.Duration(c.cfg.LookbackMinutes) * time.Minute
	if lookback <= 0 {
		lookback = time.Hour
	}
	trades, err := c.trading.GetTradeHistory(ctx, lookback)
	if err != nil {
		logger.Warnf("Shutdown: trade history lookup failed: %v", err)
		return nil
	}

	var pending []types.Trade
	for _, trade := range trades {
		if !trade.Status.Unresolved() {
			continue
		}
		// Re-query so a fill that happened after our last poll is not
		// cancelled by mistake.
		refreshed, err := c.trading.GetOrderStatus(ctx, trade.OrderID)
		if err != nil {
			logger.Warnf("Shutdown: status re-query failed order=%s: %v", trade.OrderID, err)
			pending = append(pending, trade)
			continue
		}
		if refreshed.Status.Unresolved() {
			pending = append(pending, *refreshed)
		}
	}
	return pending
}

// cancelAll fires concurrent cancel requests bounded by budget.
func (c *Coordinator) cancelAll(parent context.Context, pending []types.Trade, budget time.Duration) {
	ctx, cancel := context.WithTimeout(parent, budget)
	defer cancel()

	group, ctx := errgroup.WithContext(ctx)
	for _, trade := range pending {
		orderID := trade.OrderID
		group.Go(func() error {
			if err := c.trading.CancelOrder(ctx, orderID); err != nil {
				logger.Warnf("Shutdown: cancel failed order=%s: %v", orderID, err)
			} else {
				logger.Infof("Shutdown: cancelled order=%s", orderID)
			}
			return nil
		})
	}
	_ = group.Wait()
}

// waitForResolution polls every second until each order reaches a terminal
// state or the surrounding context expires.
func (c *Coordinator) waitForResolution(ctx context.Context, pending []types.Trade) {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	outstanding := make(map[string]struct{}, len(pending))
	for _, trade := range pending {
		outstanding[trade.OrderID] = struct{}{}
	}

	for len(outstanding) > 0 {
		select {
		case <-ctx.Done():
			for orderID := range outstanding {
				logger.Warnf("Shutdown: order %s still unresolved at exit", orderID)
			}
			return
		case <-ticker.C:
		}
		for orderID := range outstanding {
			trade, err := c.trading.GetOrderStatus(ctx, orderID)
			if err != nil {
				logger.Warnf("Shutdown: status poll failed order=%s: %v", orderID, err)
				continue
			}
			if trade.Status.Terminal() {
				logger.Infof("Shutdown: order %s resolved as %s", orderID, trade.Status)
				delete(outstanding, orderID)
			}
		}
	}
}
