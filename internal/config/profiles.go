package config

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"gopkg.in/yaml.v3"

	"tradepilot/internal/logger"
)

// StrategyProfile 描述单个策略的注册配置。parameters 为自由键值，
// 由策略自身的 JSON Schema 校验（见 internal/strategy）。
type StrategyProfile struct {
	Name            string         `yaml:"name"`
	Type            string         `yaml:"type"`
	Enabled         bool           `yaml:"enabled"`
	MaxPositionSize float64        `yaml:"max_position_size"`
	RiskPerTrade    float64        `yaml:"risk_per_trade"`
	MinConfidence   float64        `yaml:"min_confidence"`
	Parameters      map[string]any `yaml:"parameters"`
}

type profileFile struct {
	Strategies []StrategyProfile `yaml:"strategies"`
}

// LoadProfiles 解析策略 profile 文件并做基础校验。
func LoadProfiles(path string) ([]StrategyProfile, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading strategy profiles failed (%s): %w", path, err)
	}
	var file profileFile
	if err := yaml.Unmarshal(raw, &file); err != nil {
		return nil, fmt.Errorf("parsing strategy profiles failed (%s): %w", path, err)
	}
	seen := make(map[string]bool, len(file.Strategies))
	for i := range file.Strategies {
		p := &file.Strategies[i]
		p.Name = strings.TrimSpace(p.Name)
		p.Type = strings.ToLower(strings.TrimSpace(p.Type))
		if p.Name == "" {
			return nil, fmt.Errorf("strategies[%d]: name cannot be empty", i)
		}
		if seen[p.Name] {
			return nil, fmt.Errorf("strategies: duplicate name %q", p.Name)
		}
		seen[p.Name] = true
		if p.Type == "" {
			return nil, fmt.Errorf("strategies.%s: type cannot be empty", p.Name)
		}
		if p.MaxPositionSize <= 0 {
			return nil, fmt.Errorf("strategies.%s: max_position_size must be > 0", p.Name)
		}
		if p.RiskPerTrade <= 0 || p.RiskPerTrade > 1 {
			return nil, fmt.Errorf("strategies.%s: risk_per_trade must be in (0,1]", p.Name)
		}
		if p.MinConfidence < 0 || p.MinConfidence > 1 {
			return nil, fmt.Errorf("strategies.%s: min_confidence must be in [0,1]", p.Name)
		}
	}
	return file.Strategies, nil
}

// WatchProfiles 监听 profile 文件变更并回调最新内容。解析失败只告警，
// 保持上一次生效的配置。阻塞直到 ctx 结束，调用方负责放进 goroutine。
func WatchProfiles(ctx context.Context, path string, onChange func([]StrategyProfile)) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating profile watcher failed: %w", err)
	}
	defer watcher.Close()

	// 监听目录而不是文件本身：编辑器普遍用 rename+create 写文件。
	dir := filepath.Dir(path)
	if err := watcher.Add(dir); err != nil {
		return fmt.Errorf("watching %s failed: %w", dir, err)
	}
	target := filepath.Clean(path)

	var debounce *time.Timer
	reload := func() {
		profiles, err := LoadProfiles(path)
		if err != nil {
			logger.Warnf("strategy profiles reload failed: %v", err)
			return
		}
		logger.Infof("strategy profiles reloaded (%d entries)", len(profiles))
		onChange(profiles)
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != target {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			if debounce != nil {
				debounce.Stop()
			}
			debounce = time.AfterFunc(500*time.Millisecond, reload)
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logger.Warnf("profile watcher error: %v", err)
		}
	}
}
