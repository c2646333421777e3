package strategy

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"tradepilot/internal/config"
)

// Registry 按名字持有策略实例，支持并发注册/查找/遍历。
type Registry struct {
	mu         sync.RWMutex
	strategies map[string]Strategy
}

// NewRegistry builds an empty registry.
func NewRegistry() *Registry {
	return &Registry{strategies: make(map[string]Strategy)}
}

// Register adds a strategy; duplicate names are an error.
func (r *Registry) Register(s Strategy) error {
	if s == nil {
		return fmt.Errorf("registry: strategy cannot be nil")
	}
	name := strings.TrimSpace(s.Name())
	if name == "" {
		return fmt.Errorf("registry: strategy name cannot be empty")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.strategies[name]; exists {
		return fmt.Errorf("registry: strategy %q already registered", name)
	}
	r.strategies[name] = s
	return nil
}

// Unregister removes and returns the strategy, or (nil,false) when absent.
func (r *Registry) Unregister(name string) (Strategy, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.strategies[name]
	if ok {
		delete(r.strategies, name)
	}
	return s, ok
}

// Get returns the strategy by name.
func (r *Registry) Get(name string) (Strategy, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.strategies[name]
	return s, ok
}

// All returns a name-sorted snapshot; safe to iterate while others register.
func (r *Registry) All() []Strategy {
	r.mu.RLock()
	out := make([]Strategy, 0, len(r.strategies))
	for _, s := range r.strategies {
		out = append(out, s)
	}
	r.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].Name() < out[j].Name() })
	return out
}

// Enabled returns the enabled subset, name sorted.
func (r *Registry) Enabled() []Strategy {
	all := r.All()
	out := all[:0]
	for _, s := range all {
		if s.Enabled() {
			out = append(out, s)
		}
	}
	return out
}

// Len returns the number of registered strategies.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.strategies)
}

// BuildFromProfile 根据 profile 条目构造对应变体。
func BuildFromProfile(p config.StrategyProfile) (Strategy, error) {
	cfg := Config{
		StrategyName:    p.Name,
		MaxPositionSize: p.MaxPositionSize,
		RiskPerTrade:    p.RiskPerTrade,
		MinConfidence:   p.MinConfidence,
		Enabled:         p.Enabled,
		Parameters:      p.Parameters,
	}
	switch p.Type {
	case TypeSMACrossover:
		return NewSMACrossover(cfg)
	case TypeRSIMomentum:
		return NewRSIMomentum(cfg)
	default:
		return nil, fmt.Errorf("unknown strategy type %q (name=%s)", p.Type, p.Name)
	}
}

// ApplyProfiles 将最新 profile 集合套到注册表上：已存在的更新配置，
// 新增的注册，文件里消失的保持原样（显式禁用请在文件里写 enabled: false）。
func (r *Registry) ApplyProfiles(profiles []config.StrategyProfile) error {
	var firstErr error
	for _, p := range profiles {
		if existing, ok := r.Get(p.Name); ok {
			cfg := Config{
				StrategyName:    p.Name,
				MaxPositionSize: p.MaxPositionSize,
				RiskPerTrade:    p.RiskPerTrade,
				MinConfidence:   p.MinConfidence,
				Enabled:         p.Enabled,
				Parameters:      p.Parameters,
			}
			if err := existing.UpdateConfig(cfg); err != nil && firstErr == nil {
				firstErr = err
			}
			continue
		}
		s, err := BuildFromProfile(p)
		if err != nil {
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		if err := r.Register(s); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
