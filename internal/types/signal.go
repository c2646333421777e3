package types

import (
	"fmt"
	"strings"
	"time"
)

// TradingSignal 是策略输出的买卖建议，尚未经过风控校验。
type TradingSignal struct {
	Symbol       string    `json:"symbol"`
	Type         TradeType `json:"type"`
	Quantity     float64   `json:"quantity"`
	TargetPrice  float64   `json:"target_price,omitempty"`
	StopLoss     float64   `json:"stop_loss,omitempty"`
	TakeProfit   float64   `json:"take_profit,omitempty"`
	Confidence   float64   `json:"confidence"`
	StrategyName string    `json:"strategy_name"`
	Reason       string    `json:"reason"`
	Timestamp    time.Time `json:"timestamp"`
}

// NewTradingSignal validates and builds a signal. Confidence outside [0,1] and
// non-positive quantity are construction errors, not things downstream should clamp.
func NewTradingSignal(symbol string, t TradeType, quantity, confidence float64, strategyName, reason string) (TradingSignal, error) {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	if symbol == "" {
		return TradingSignal{}, fmt.Errorf("signal symbol 不能为空")
	}
	if !t.Valid() {
		return TradingSignal{}, fmt.Errorf("signal 方向非法: %q", string(t))
	}
	if quantity <= 0 {
		return TradingSignal{}, fmt.Errorf("signal quantity 必须为正: %v", quantity)
	}
	if confidence < 0 || confidence > 1 {
		return TradingSignal{}, fmt.Errorf("signal confidence 超出 [0,1]: %v", confidence)
	}
	return TradingSignal{
		Symbol:       symbol,
		Type:         t,
		Quantity:     quantity,
		Confidence:   confidence,
		StrategyName: strategyName,
		Reason:       reason,
		Timestamp:    time.Now().UTC(),
	}, nil
}
