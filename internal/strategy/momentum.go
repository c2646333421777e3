package strategy

import (
	"fmt"
	"math"
	"sync"

	talib "github.com/markcheno/go-talib"
	"github.com/santhosh-tekuri/jsonschema/v5"

	"tradepilot/internal/types"
)

// TypeRSIMomentum 是第二个策略变体。原系统在这个槽位上挂的是一个
// 无法复现的 ML 管道；这里用 RSI 动量策略占住多态分发路径。
const TypeRSIMomentum = "rsi_momentum"

const (
	ReasonRSIOversoldExit   = "RSI recovered from oversold"
	ReasonRSIOverboughtExit = "RSI dropped from overbought"
)

const rsiParamSchema = `{
	"type": "object",
	"properties": {
		"period": {"type": "integer", "minimum": 2},
		"oversold": {"type": "number", "minimum": 1, "maximum": 50},
		"overbought": {"type": "number", "minimum": 50, "maximum": 99},
		"quantity": {"type": "number", "exclusiveMinimum": 0},
		"window_capacity": {"type": "integer", "minimum": 10}
	},
	"additionalProperties": false
}`

// RSIMomentumStrategy 在 RSI 从超卖/超买区间穿出时发信号。
type RSIMomentumStrategy struct {
	mu     sync.RWMutex
	cfg    Config
	schema *jsonschema.Schema
	window *HistoricalWindow

	period     int
	oversold   float64
	overbought float64
	quantity   float64
}

// NewRSIMomentum validates config + parameters and builds the strategy.
func NewRSIMomentum(cfg Config) (*RSIMomentumStrategy, error) {
	schema, err := compileParamSchema(rsiParamSchema)
	if err != nil {
		return nil, fmt.Errorf("rsi schema compile failed: %w", err)
	}
	s := &RSIMomentumStrategy{schema: schema}
	if err := s.applyConfig(cfg); err != nil {
		return nil, err
	}
	s.window = NewHistoricalWindow(paramInt(cfg.Parameters, "window_capacity", DefaultWindowCapacity))
	return s, nil
}

func (s *RSIMomentumStrategy) applyConfig(cfg Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	if err := validateParams(s.schema, cfg.Parameters); err != nil {
		return fmt.Errorf("rsi %s: %w", cfg.StrategyName, err)
	}
	oversold := paramFloat(cfg.Parameters, "oversold", 30)
	overbought := paramFloat(cfg.Parameters, "overbought", 70)
	if oversold >= overbought {
		return fmt.Errorf("rsi %s: oversold (%v) must be < overbought (%v)", cfg.StrategyName, oversold, overbought)
	}
	s.mu.Lock()
	s.cfg = cfg
	s.period = paramInt(cfg.Parameters, "period", 14)
	s.oversold = oversold
	s.overbought = overbought
	s.quantity = paramFloat(cfg.Parameters, "quantity", 0)
	s.mu.Unlock()
	return nil
}

func (s *RSIMomentumStrategy) Name() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cfg.StrategyName
}

func (s *RSIMomentumStrategy) Enabled() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cfg.Enabled
}

func (s *RSIMomentumStrategy) Config() Config {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cfg
}

func (s *RSIMomentumStrategy) UpdateConfig(cfg Config) error {
	return s.applyConfig(cfg)
}

func (s *RSIMomentumStrategy) ShouldExecute(signal types.TradingSignal) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.cfg.Enabled {
		return false
	}
	return signal.Confidence >= s.cfg.MinConfidence
}

// Analyze 在 RSI 穿越边界时产生信号：从超卖区向上穿出 → BUY，
// 从超买区向下穿出 → SELL。停留在区间内不重复触发。
func (s *RSIMomentumStrategy) Analyze(data types.MarketData) ([]types.TradingSignal, error) {
	s.window.Add(data)

	s.mu.RLock()
	period := s.period
	oversold, overbought := s.oversold, s.overbought
	cfg := s.cfg
	fixedQty := s.quantity
	s.mu.RUnlock()

	closes := s.window.Closes(data.Symbol)
	if len(closes) < period+2 {
		return nil, nil
	}

	rsi := talib.Rsi(closes, period)
	n := len(rsi)
	prev, curr := rsi[n-2], rsi[n-1]

	var (
		side   types.TradeType
		reason string
	)
	switch {
	case prev <= oversold && curr > oversold:
		side, reason = types.TradeTypeBuy, ReasonRSIOversoldExit
	case prev >= overbought && curr < overbought:
		side, reason = types.TradeTypeSell, ReasonRSIOverboughtExit
	default:
		return nil, nil
	}

	// 离中线越远，动量越强。
	conf := math.Abs(curr-50) / 50
	if conf > 1 {
		conf = 1
	}
	qty := fixedQty
	if qty <= 0 {
		qty = sizeByRisk(cfg, data.Price)
	}
	if qty <= 0 {
		return nil, nil
	}

	signal, err := types.NewTradingSignal(data.Symbol, side, qty, conf, cfg.StrategyName, reason)
	if err != nil {
		return nil, err
	}
	signal.TargetPrice = data.Price
	return []types.TradingSignal{signal}, nil
}
