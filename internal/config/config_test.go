package config

import (
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoad_IncludeMergeAndDefaults(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "base.yaml", `
broker:
  base_url: https://broker.test
  api_key: key-1
  api_secret: secret-1
trading:
  max_position_size: 5000
`)
	main := writeFile(t, dir, "config.yaml", `
include:
  - base.yaml
trading:
  account_id: acct-9
  max_position_size: 8000
`)

	cfg, err := Load(main)
	require.NoError(t, err)

	// 主文件覆盖被包含文件。
	assert.Equal(t, "acct-9", cfg.Trading.AccountID)
	assert.InDelta(t, 8000, cfg.Trading.MaxPositionSize, 1e-9)
	// 被包含文件的值保留。
	assert.Equal(t, "https://broker.test", cfg.Broker.BaseURL)
	// 未显式设置的字段走默认值。
	assert.InDelta(t, defaultTradingRisk, cfg.Trading.RiskPerTrade, 1e-9)
	assert.Equal(t, defaultAppHTTPAddr, cfg.App.HTTPAddr)
	assert.Equal(t, defaultBrokerRetries, cfg.Broker.MaxRetries)
	assert.True(t, cfg.Shutdown.CancelPendingOrders)
}

func TestLoad_IncludeCycleRejected(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "a.yaml", "include:\n  - b.yaml\n")
	path := writeFile(t, dir, "b.yaml", "include:\n  - a.yaml\n")

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "include cycle")
}

func TestTradingConfig_SymbolAllowed(t *testing.T) {
	cfg := &TradingConfig{AllowedSymbols: []string{" aapl ", "MSFT"}}
	assert.True(t, cfg.SymbolAllowed("AAPL"))
	assert.True(t, cfg.SymbolAllowed("msft"))
	assert.False(t, cfg.SymbolAllowed("TSLA"))

	open := &TradingConfig{}
	assert.True(t, open.SymbolAllowed("anything"))
}

func TestTradingConfig_SymbolAllowedConcurrent(t *testing.T) {
	// HTTP 下单校验和策略循环会同时查允许列表，首次构建不能出现写竞争。
	cfg := &TradingConfig{AllowedSymbols: []string{"AAPL", "MSFT", "GOOG"}}

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 200; j++ {
				assert.True(t, cfg.SymbolAllowed("AAPL"))
				assert.False(t, cfg.SymbolAllowed("TSLA"))
			}
		}()
	}
	wg.Wait()
}
