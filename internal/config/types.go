package config

import (
	"strings"
	"sync"
)

// Config 是 tradepilot 的主配置载体。
type Config struct {
	App        AppConfig        `toml:"app"`
	Market     MarketConfig     `toml:"market"`
	Broker     BrokerConfig     `toml:"broker"`
	Trading    TradingConfig    `toml:"trading"`
	Strategies StrategiesConfig `toml:"strategies"`
	Shutdown   ShutdownConfig   `toml:"shutdown"`
	Store      StoreConfig      `toml:"store"`
}

type AppConfig struct {
	Env      string `toml:"env"`
	LogLevel string `toml:"log_level"`
	HTTPAddr string `toml:"http_addr"`
	LogPath  string `toml:"log_path"`
}

// MarketConfig 描述行情来源与访问节流。
type MarketConfig struct {
	Source          string  `toml:"source"`
	RESTBaseURL     string  `toml:"rest_base_url"`
	RatePerSecond   float64 `toml:"rate_per_second"`
	RateBurst       int     `toml:"rate_burst"`
	QuoteTTLSeconds int     `toml:"quote_ttl_seconds"`
}

// BrokerConfig 描述券商网关的访问方式。凭证通过 key/secret 头部传递。
type BrokerConfig struct {
	BaseURL        string `toml:"base_url"`
	APIKey         string `toml:"api_key"`
	APISecret      string `toml:"api_secret"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
	MaxRetries     int    `toml:"max_retries"`
	RetryBackoffMs int    `toml:"retry_backoff_ms"`
}

// TradingConfig 控制全局风控限额与自动交易开关。
type TradingConfig struct {
	AccountID            string   `toml:"account_id"`
	MaxPositionSize      float64  `toml:"max_position_size"` // 单笔名义金额上限
	RiskPerTrade         float64  `toml:"risk_per_trade"`    // 0~1
	AllowedSymbols       []string `toml:"allowed_symbols"`
	EnableAutoTrading    bool     `toml:"enable_auto_trading"`
	CycleIntervalSeconds int      `toml:"cycle_interval_seconds"`

	allowedOnce  sync.Once
	allowedUpper map[string]struct{}
}

// SymbolAllowed reports whether the symbol passes the allow-list.
// 空列表表示不限制。HTTP 与策略循环会并发调用，查表只构建一次。
func (t *TradingConfig) SymbolAllowed(symbol string) bool {
	if len(t.AllowedSymbols) == 0 {
		return true
	}
	t.allowedOnce.Do(func() {
		t.allowedUpper = make(map[string]struct{}, len(t.AllowedSymbols))
		for _, s := range t.AllowedSymbols {
			s = strings.ToUpper(strings.TrimSpace(s))
			if s != "" {
				t.allowedUpper[s] = struct{}{}
			}
		}
	})
	_, ok := t.allowedUpper[strings.ToUpper(strings.TrimSpace(symbol))]
	return ok
}

// StrategiesConfig 指向策略 profile 文件。
type StrategiesConfig struct {
	ProfilesPath string `toml:"profiles_path"`
	WatchReload  bool   `toml:"watch_reload"`
}

// ShutdownConfig 控制进程终止时的清理行为。
type ShutdownConfig struct {
	TimeoutSeconds      int  `toml:"timeout_seconds"`
	CancelPendingOrders bool `toml:"cancel_pending_orders"`
	WaitForFills        bool `toml:"wait_for_fills"`
	LookbackMinutes     int  `toml:"lookback_minutes"`
}

type StoreConfig struct {
	Path string `toml:"path"`
}

// keySet 用于追踪配置文件中显式设置的字段路径。
type keySet map[string]struct{}

func (k keySet) mark(path string) {
	path = strings.ToLower(strings.TrimSpace(path))
	if path == "" {
		return
	}
	k[path] = struct{}{}
}

func (k keySet) isSet(path string) bool {
	if len(k) == 0 {
		return false
	}
	path = strings.ToLower(strings.TrimSpace(path))
	if path == "" {
		return false
	}
	_, ok := k[path]
	return ok
}

// fieldDefault 描述单个字段的默认值设置规则。
type fieldDefault struct {
	key   string
	need  func() bool
	apply func()
}
