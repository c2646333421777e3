package strategy

import (
	"fmt"
	"math"
	"sync"

	talib "github.com/markcheno/go-talib"
	"github.com/santhosh-tekuri/jsonschema/v5"

	"tradepilot/internal/types"
)

// TypeSMACrossover 是 profile 文件里的策略类型名。
const TypeSMACrossover = "sma_crossover"

const (
	ReasonBullishCrossover = "Bullish SMA crossover"
	ReasonBearishCrossover = "Bearish SMA crossover"
)

// smaParamSchema 约束 sma_crossover 的自由参数。
const smaParamSchema = `{
	"type": "object",
	"properties": {
		"short_period": {"type": "integer", "minimum": 2},
		"long_period": {"type": "integer", "minimum": 3},
		"quantity": {"type": "number", "exclusiveMinimum": 0},
		"window_capacity": {"type": "integer", "minimum": 10}
	},
	"additionalProperties": false
}`

// SMACrossoverStrategy 检测短周期均线对长周期均线的穿越事件。
// 只在发生穿越的那个点发信号，持续在上方/下方不会重复触发。
type SMACrossoverStrategy struct {
	mu     sync.RWMutex
	cfg    Config
	schema *jsonschema.Schema
	window *HistoricalWindow

	shortPeriod int
	longPeriod  int
	quantity    float64
}

// NewSMACrossover validates config + parameters and builds the strategy.
func NewSMACrossover(cfg Config) (*SMACrossoverStrategy, error) {
	schema, err := compileParamSchema(smaParamSchema)
	if err != nil {
		return nil, fmt.Errorf("sma schema compile failed: %w", err)
	}
	s := &SMACrossoverStrategy{schema: schema}
	if err := s.applyConfig(cfg); err != nil {
		return nil, err
	}
	s.window = NewHistoricalWindow(paramInt(cfg.Parameters, "window_capacity", DefaultWindowCapacity))
	return s, nil
}

func (s *SMACrossoverStrategy) applyConfig(cfg Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	if err := validateParams(s.schema, cfg.Parameters); err != nil {
		return fmt.Errorf("sma %s: %w", cfg.StrategyName, err)
	}
	short := paramInt(cfg.Parameters, "short_period", 5)
	long := paramInt(cfg.Parameters, "long_period", 20)
	if short >= long {
		return fmt.Errorf("sma %s: short_period (%d) must be < long_period (%d)", cfg.StrategyName, short, long)
	}
	s.mu.Lock()
	s.cfg = cfg
	s.shortPeriod = short
	s.longPeriod = long
	s.quantity = paramFloat(cfg.Parameters, "quantity", 0)
	s.mu.Unlock()
	return nil
}

func (s *SMACrossoverStrategy) Name() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cfg.StrategyName
}

func (s *SMACrossoverStrategy) Enabled() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cfg.Enabled
}

func (s *SMACrossoverStrategy) Config() Config {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cfg
}

// UpdateConfig replaces the configuration; the rolling window is preserved.
func (s *SMACrossoverStrategy) UpdateConfig(cfg Config) error {
	return s.applyConfig(cfg)
}

// ShouldExecute 在策略关闭或置信度不足时拦截信号。
func (s *SMACrossoverStrategy) ShouldExecute(signal types.TradingSignal) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.cfg.Enabled {
		return false
	}
	return signal.Confidence >= s.cfg.MinConfidence
}

// Analyze appends the data point to the window and reports a crossover signal
// when the short SMA moved from one side of the long SMA to the other.
func (s *SMACrossoverStrategy) Analyze(data types.MarketData) ([]types.TradingSignal, error) {
	s.window.Add(data)

	s.mu.RLock()
	short, long := s.shortPeriod, s.longPeriod
	cfg := s.cfg
	fixedQty := s.quantity
	s.mu.RUnlock()

	closes := s.window.Closes(data.Symbol)
	// 需要当前点之前也有一个完整的 long 窗口，才能比较穿越前后。
	if len(closes) < long+1 {
		return nil, nil
	}

	shortSeries := talib.Sma(closes, short)
	longSeries := talib.Sma(closes, long)
	n := len(closes)
	prevDiff := shortSeries[n-2] - longSeries[n-2]
	currDiff := shortSeries[n-1] - longSeries[n-1]

	var (
		side   types.TradeType
		reason string
	)
	switch {
	case prevDiff <= 0 && currDiff > 0:
		side, reason = types.TradeTypeBuy, ReasonBullishCrossover
	case prevDiff >= 0 && currDiff < 0:
		side, reason = types.TradeTypeSell, ReasonBearishCrossover
	default:
		return nil, nil
	}

	confidence := crossoverConfidence(shortSeries[n-1], longSeries[n-1])
	qty := fixedQty
	if qty <= 0 {
		qty = sizeByRisk(cfg, data.Price)
	}
	if qty <= 0 {
		return nil, nil
	}

	signal, err := types.NewTradingSignal(data.Symbol, side, qty, confidence, cfg.StrategyName, reason)
	if err != nil {
		return nil, err
	}
	signal.TargetPrice = data.Price
	return []types.TradingSignal{signal}, nil
}

// crossoverConfidence maps the normalized SMA separation to [0,1].
// 分离度 5% 即视为满置信。
func crossoverConfidence(short, long float64) float64 {
	if long == 0 {
		return 0
	}
	sep := math.Abs(short-long) / math.Abs(long)
	conf := sep / 0.05
	if conf > 1 {
		return 1
	}
	if conf < 0 {
		return 0
	}
	return conf
}

// sizeByRisk 根据单笔风险预算推导数量：budget = maxPositionSize * riskPerTrade。
func sizeByRisk(cfg Config, price float64) float64 {
	if price <= 0 {
		return 0
	}
	budget := cfg.MaxPositionSize * cfg.RiskPerTrade
	qty := budget / price
	if qty <= 0 {
		return 0
	}
	// 保留 4 位小数，避免碎股噪声。
	return math.Floor(qty*10000) / 10000
}
