package strategy

import (
	"sync"
	"time"
)

// activeWindow 之内产生过信号的策略视为活跃。
const activeWindow = 24 * time.Hour

// Performance 是单个策略的运行计数器。除 Reset 外所有计数只增不减。
type Performance struct {
	mu sync.Mutex

	strategyName     string
	signalsGenerated int64
	signalsExecuted  int64
	totalPnL         float64
	totalVolume      float64
	winningTrades    int64
	losingTrades     int64
	largestWin       float64
	largestLoss      float64
	firstSignalTime  time.Time
	lastSignalTime   time.Time
}

// NewPerformance creates a zeroed counter for the named strategy.
func NewPerformance(strategyName string) *Performance {
	return &Performance{strategyName: strategyName}
}

// RecordSignalGenerated bumps the generated counter and the signal timestamps.
func (p *Performance) RecordSignalGenerated() {
	p.mu.Lock()
	defer p.mu.Unlock()
	now := time.Now().UTC()
	p.signalsGenerated++
	if p.firstSignalTime.IsZero() {
		p.firstSignalTime = now
	}
	p.lastSignalTime = now
}

// RecordSignalExecuted bumps the executed counter and accumulates volume.
func (p *Performance) RecordSignalExecuted(volume float64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.signalsExecuted++
	if volume > 0 {
		p.totalVolume += volume
	}
}

// RecordTradeProfitLoss classifies the pnl. Zero pnl touches neither
// win nor loss counters.
func (p *Performance) RecordTradeProfitLoss(pnl float64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.totalPnL += pnl
	switch {
	case pnl > 0:
		p.winningTrades++
		if pnl > p.largestWin {
			p.largestWin = pnl
		}
	case pnl < 0:
		p.losingTrades++
		if pnl < p.largestLoss {
			p.largestLoss = pnl
		}
	}
}

// IsActive reports whether a signal was generated within the last 24 hours.
func (p *Performance) IsActive() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.lastSignalTime.IsZero() {
		return false
	}
	return time.Since(p.lastSignalTime) <= activeWindow
}

// Reset 清零所有计数与时间戳，仅保留策略名。
// 逐字段清零而不是整体替换，持有中的锁不能被覆盖。
func (p *Performance) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.signalsGenerated = 0
	p.signalsExecuted = 0
	p.totalPnL = 0
	p.totalVolume = 0
	p.winningTrades = 0
	p.losingTrades = 0
	p.largestWin = 0
	p.largestLoss = 0
	p.firstSignalTime = time.Time{}
	p.lastSignalTime = time.Time{}
}

// PerformanceSnapshot 是对外暴露的只读视图。
type PerformanceSnapshot struct {
	StrategyName     string    `json:"strategy_name"`
	SignalsGenerated int64     `json:"signals_generated"`
	SignalsExecuted  int64     `json:"signals_executed"`
	TotalPnL         float64   `json:"total_pnl"`
	TotalVolume      float64   `json:"total_volume"`
	WinningTrades    int64     `json:"winning_trades"`
	LosingTrades     int64     `json:"losing_trades"`
	LargestWin       float64   `json:"largest_win"`
	LargestLoss      float64   `json:"largest_loss"`
	FirstSignalTime  time.Time `json:"first_signal_time,omitzero"`
	LastSignalTime   time.Time `json:"last_signal_time,omitzero"`
	Active           bool      `json:"active"`
}

// Snapshot returns a copy of the counters.
func (p *Performance) Snapshot() PerformanceSnapshot {
	p.mu.Lock()
	defer p.mu.Unlock()
	active := !p.lastSignalTime.IsZero() && time.Since(p.lastSignalTime) <= activeWindow
	return PerformanceSnapshot{
		StrategyName:     p.strategyName,
		SignalsGenerated: p.signalsGenerated,
		SignalsExecuted:  p.signalsExecuted,
		TotalPnL:         p.totalPnL,
		TotalVolume:      p.totalVolume,
		WinningTrades:    p.winningTrades,
		LosingTrades:     p.losingTrades,
		LargestWin:       p.largestWin,
		LargestLoss:      p.largestLoss,
		FirstSignalTime:  p.firstSignalTime,
		LastSignalTime:   p.lastSignalTime,
		Active:           active,
	}
}

// PerformanceTracker 按策略名持有计数器，随注册创建。
type PerformanceTracker struct {
	mu      sync.RWMutex
	entries map[string]*Performance
}

// NewPerformanceTracker builds an empty tracker.
func NewPerformanceTracker() *PerformanceTracker {
	return &PerformanceTracker{entries: make(map[string]*Performance)}
}

// For returns the counter for a strategy, creating it on first use.
func (t *PerformanceTracker) For(strategyName string) *Performance {
	t.mu.RLock()
	p, ok := t.entries[strategyName]
	t.mu.RUnlock()
	if ok {
		return p
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if p, ok = t.entries[strategyName]; ok {
		return p
	}
	p = NewPerformance(strategyName)
	t.entries[strategyName] = p
	return p
}

// Snapshots returns every counter's snapshot.
func (t *PerformanceTracker) Snapshots() []PerformanceSnapshot {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]PerformanceSnapshot, 0, len(t.entries))
	for _, p := range t.entries {
		out = append(out, p.Snapshot())
	}
	return out
}
