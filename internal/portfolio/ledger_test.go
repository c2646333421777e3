package portfolio

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestApplyFill_OpensNewPosition(t *testing.T) {
	out := applyFill(0, 0, 10, 150)
	assert.InDelta(t, 10, out.Quantity, 1e-9)
	assert.InDelta(t, 150, out.AveragePrice, 1e-9)
	assert.Zero(t, out.RealizedPnL)
	assert.False(t, out.Closed)
}

func TestApplyFill_SameDirectionUsesWeightedAverage(t *testing.T) {
	// 10 股 @150 加仓 5 股 @160 → (10*150 + 5*160) / 15 = 153.3333
	out := applyFill(10, 150, 5, 160)
	assert.InDelta(t, 15, out.Quantity, 1e-9)
	assert.InDelta(t, 153.3333, out.AveragePrice, 1e-9)
	assert.Zero(t, out.RealizedPnL)
}

func TestApplyFill_PartialReduceKeepsAverage(t *testing.T) {
	out := applyFill(10, 150, -4, 160)
	assert.InDelta(t, 6, out.Quantity, 1e-9)
	assert.InDelta(t, 150, out.AveragePrice, 1e-9, "均价在减仓时保持不变")
	assert.InDelta(t, 40, out.RealizedPnL, 1e-9) // 4 * (160-150)
	assert.False(t, out.Closed)
}

func TestApplyFill_ExactCloseDeletesPosition(t *testing.T) {
	out := applyFill(10, 150, -10, 140)
	assert.True(t, out.Closed)
	assert.InDelta(t, -100, out.RealizedPnL, 1e-9) // 10 * (140-150)
}

func TestApplyFill_CrossingZeroResetsAverage(t *testing.T) {
	// 10 股多头被 15 股卖单穿越：平掉 10 股，剩 -5 股按成交价开仓。
	out := applyFill(10, 150, -15, 160)
	assert.InDelta(t, -5, out.Quantity, 1e-9)
	assert.InDelta(t, 160, out.AveragePrice, 1e-9)
	assert.InDelta(t, 100, out.RealizedPnL, 1e-9) // 只结算平掉的 10 股
	assert.False(t, out.Closed)
}

func TestApplyFill_ShortSideSymmetry(t *testing.T) {
	// -10 股空头，买回 4 股 @140：盈利 4 * (150-140) = 40
	out := applyFill(-10, 150, 4, 140)
	assert.InDelta(t, -6, out.Quantity, 1e-9)
	assert.InDelta(t, 150, out.AveragePrice, 1e-9)
	assert.InDelta(t, 40, out.RealizedPnL, 1e-9)
}

func TestApplyFill_FloatNoiseRoundsAway(t *testing.T) {
	// 0.1+0.2 类的二进制噪声不能让归零判断失效
	out := applyFill(0.3, 100, -0.3, 110)
	assert.True(t, out.Closed)
}
