package strategy

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPerformance_CountersAccumulate(t *testing.T) {
	p := NewPerformance("alpha")
	p.RecordSignalGenerated()
	p.RecordSignalGenerated()
	p.RecordSignalExecuted(1500)
	p.RecordTradeProfitLoss(120)
	p.RecordTradeProfitLoss(-40)
	p.RecordTradeProfitLoss(0) // 零盈亏既不算赢也不算输

	snap := p.Snapshot()
	assert.Equal(t, "alpha", snap.StrategyName)
	assert.Equal(t, int64(2), snap.SignalsGenerated)
	assert.Equal(t, int64(1), snap.SignalsExecuted)
	assert.InDelta(t, 1500, snap.TotalVolume, 1e-9)
	assert.InDelta(t, 80, snap.TotalPnL, 1e-9)
	assert.Equal(t, int64(1), snap.WinningTrades)
	assert.Equal(t, int64(1), snap.LosingTrades)
	assert.InDelta(t, 120, snap.LargestWin, 1e-9)
	assert.InDelta(t, -40, snap.LargestLoss, 1e-9)
	assert.True(t, snap.Active)
}

func TestPerformance_ResetKeepsName(t *testing.T) {
	p := NewPerformance("alpha")
	p.RecordSignalGenerated()
	p.RecordTradeProfitLoss(50)

	p.Reset()
	snap := p.Snapshot()
	assert.Equal(t, "alpha", snap.StrategyName)
	assert.Zero(t, snap.SignalsGenerated)
	assert.Zero(t, snap.TotalPnL)
	assert.False(t, snap.Active)

	// Reset 后计数器必须还能正常工作（锁不能被 Reset 破坏）。
	p.Reset()
	p.RecordSignalGenerated()
	p.RecordTradeProfitLoss(10)
	snap = p.Snapshot()
	assert.Equal(t, int64(1), snap.SignalsGenerated)
	assert.InDelta(t, 10, snap.TotalPnL, 1e-9)
}

func TestPerformanceTracker_ForIsIdempotent(t *testing.T) {
	tracker := NewPerformanceTracker()
	first := tracker.For("alpha")
	second := tracker.For("alpha")
	require.Same(t, first, second)

	first.RecordSignalGenerated()
	snaps := tracker.Snapshots()
	require.Len(t, snaps, 1)
	assert.Equal(t, int64(1), snaps[0].SignalsGenerated)
}
