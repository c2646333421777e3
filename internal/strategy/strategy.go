// Package strategy implements the signal-generation engine: the Strategy
// capability interface, its concrete variants, the named registry, and the
// per-strategy performance counters.
package strategy

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"tradepilot/internal/types"
)

// Strategy 是策略能力接口。实现方只读取自身的滚动历史窗口，
// 绝不直接访问外部 API。
type Strategy interface {
	Name() string
	// Analyze consumes one market data point and returns zero or more signals.
	Analyze(data types.MarketData) ([]types.TradingSignal, error)
	// ShouldExecute applies the per-strategy confidence gate.
	ShouldExecute(signal types.TradingSignal) bool
	// UpdateConfig replaces the strategy configuration after validation.
	UpdateConfig(cfg Config) error
	Enabled() bool
	Config() Config
}

// Config 是单个策略的不可变配置值，替换时整体校验。
type Config struct {
	StrategyName    string
	MaxPositionSize float64
	RiskPerTrade    float64
	MinConfidence   float64
	Enabled         bool
	Parameters      map[string]any
}

// Validate 检查配置边界。每次替换都要重新校验。
func (c Config) Validate() error {
	if strings.TrimSpace(c.StrategyName) == "" {
		return fmt.Errorf("strategy config: name cannot be empty")
	}
	if c.MaxPositionSize <= 0 {
		return fmt.Errorf("strategy config %s: max_position_size must be > 0", c.StrategyName)
	}
	if c.RiskPerTrade <= 0 || c.RiskPerTrade > 1 {
		return fmt.Errorf("strategy config %s: risk_per_trade must be in (0,1]", c.StrategyName)
	}
	if c.MinConfidence < 0 || c.MinConfidence > 1 {
		return fmt.Errorf("strategy config %s: min_confidence must be in [0,1]", c.StrategyName)
	}
	return nil
}

// compileParamSchema 编译策略参数的 JSON Schema。
func compileParamSchema(schemaJSON string) (*jsonschema.Schema, error) {
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("params.json", strings.NewReader(schemaJSON)); err != nil {
		return nil, err
	}
	return compiler.Compile("params.json")
}

// validateParams 用编译好的 schema 校验自由参数。
// 数值经过一次 JSON round-trip，确保 int/float 混用不会误报。
func validateParams(schema *jsonschema.Schema, params map[string]any) error {
	if schema == nil {
		return nil
	}
	if params == nil {
		params = map[string]any{}
	}
	raw, err := json.Marshal(params)
	if err != nil {
		return fmt.Errorf("strategy parameters not serializable: %w", err)
	}
	var normalized any
	if err := json.Unmarshal(raw, &normalized); err != nil {
		return err
	}
	if err := schema.Validate(normalized); err != nil {
		return fmt.Errorf("strategy parameters invalid: %w", err)
	}
	return nil
}

// paramFloat 从自由参数里取数值，缺失时返回默认值。
func paramFloat(params map[string]any, key string, def float64) float64 {
	if params == nil {
		return def
	}
	switch v := params[key].(type) {
	case float64:
		return v
	case float32:
		return float64(v)
	case int:
		return float64(v)
	case int64:
		return float64(v)
	case uint64:
		return float64(v)
	case json.Number:
		if f, err := v.Float64(); err == nil {
			return f
		}
	}
	return def
}

func paramInt(params map[string]any, key string, def int) int {
	f := paramFloat(params, key, float64(def))
	return int(f)
}
