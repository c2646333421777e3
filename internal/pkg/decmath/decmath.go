package decmath

import (
	"math"

	"github.com/shopspring/decimal"
)

var decimalZero = decimal.Zero

// FromFloat converts a float, mapping NaN/Inf to zero so持仓计算不会被污染。
func FromFloat(val float64) decimal.Decimal {
	if math.IsNaN(val) || math.IsInf(val, 0) {
		return decimalZero
	}
	return decimal.NewFromFloat(val)
}

// ToFloat drops the decimal wrapper.
func ToFloat(val decimal.Decimal) float64 {
	f, _ := val.Float64()
	return f
}

// WeightedAverage returns (q0*p0 + dq*p) / (q0+dq) rounded to 4 decimal places.
// Callers guarantee q0+dq != 0.
func WeightedAverage(q0, p0, dq, p float64) float64 {
	total := FromFloat(q0).Mul(FromFloat(p0)).Add(FromFloat(dq).Mul(FromFloat(p)))
	qty := FromFloat(q0).Add(FromFloat(dq))
	return ToFloat(total.Div(qty).Round(4))
}

// Notional returns quantity * price rounded to 4 decimal places.
func Notional(quantity, price float64) float64 {
	return ToFloat(FromFloat(quantity).Mul(FromFloat(price)).Round(4))
}

// PnL returns quantity * (current - entry) rounded to 4 decimal places.
func PnL(quantity, entry, current float64) float64 {
	diff := FromFloat(current).Sub(FromFloat(entry))
	return ToFloat(FromFloat(quantity).Mul(diff).Round(4))
}

// Compare compares two floats through decimal to avoid binary rounding artifacts.
func Compare(a, b float64) int {
	return FromFloat(a).Cmp(FromFloat(b))
}

func LTE(a, b float64) bool { return Compare(a, b) <= 0 }
func GTE(a, b float64) bool { return Compare(a, b) >= 0 }
func GT(a, b float64) bool  { return Compare(a, b) > 0 }

// IsZero reports whether the value is exactly zero after decimal normalization.
func IsZero(a float64) bool { return FromFloat(a).IsZero() }
