package portfolio

import (
	"math"

	"tradepilot/internal/pkg/decmath"
)

// fillOutcome 是一笔成交对单个持仓行的影响。
type fillOutcome struct {
	Quantity     float64
	AveragePrice float64
	RealizedPnL  float64
	Closed       bool
}

// applyFill folds a signed fill (positive = buy) into an existing position.
// Rules:
//   - 同向加仓：均价按数量加权平均（4 位小数）。
//   - 反向减仓且方向不变：均价保持不变，只结算已平部分的盈亏。
//   - 数量恰好归零：持仓行删除。
//   - 反向穿越（方向翻转）：均价重置为本次成交价。
func applyFill(quantity, averagePrice, fillQuantity, fillPrice float64) fillOutcome {
	newQty := decmath.ToFloat(decmath.FromFloat(quantity).Add(decmath.FromFloat(fillQuantity)))

	// Opening a fresh position.
	if decmath.IsZero(quantity) {
		return fillOutcome{Quantity: newQty, AveragePrice: fillPrice}
	}

	// Adding in the same direction.
	if quantity > 0 == (fillQuantity > 0) {
		return fillOutcome{
			Quantity:     newQty,
			AveragePrice: decmath.WeightedAverage(quantity, averagePrice, fillQuantity, fillPrice),
		}
	}

	// Reducing: realize P&L on the closed slice only.
	closedMag := math.Min(math.Abs(fillQuantity), math.Abs(quantity))
	closedQty := closedMag
	if quantity < 0 {
		closedQty = -closedMag
	}
	realized := decmath.PnL(closedQty, averagePrice, fillPrice)

	if decmath.IsZero(newQty) {
		return fillOutcome{RealizedPnL: realized, Closed: true}
	}
	if quantity > 0 == (newQty > 0) {
		// Direction kept: the remaining lot keeps its cost basis.
		return fillOutcome{Quantity: newQty, AveragePrice: averagePrice, RealizedPnL: realized}
	}
	// Crossed through zero: the surplus opens a new lot at the fill price.
	return fillOutcome{Quantity: newQty, AveragePrice: fillPrice, RealizedPnL: realized}
}
