package config

import "strings"

// 默认值常量
const (
	defaultAppEnv           = "dev"
	defaultAppLogLevel      = "info"
	defaultAppHTTPAddr      = ":9980"
	defaultAppLogPath       = "/data/logs/tradepilot.log"
	defaultMarketSource     = "binance"
	defaultMarketREST       = "https://api.binance.com"
	defaultMarketRate       = 5.0
	defaultMarketBurst      = 10
	defaultMarketQuoteTTL   = 5
	defaultBrokerTimeout    = 15
	defaultBrokerRetries    = 3
	defaultBrokerBackoffMs  = 500
	defaultTradingAccount   = "default"
	defaultTradingMaxSize   = 10000
	defaultTradingRisk      = 0.02
	defaultTradingCycleSecs = 60
	defaultProfilesPath     = "configs/strategies.yaml"
	defaultShutdownTimeout  = 30
	defaultShutdownLookback = 60
	defaultStorePath        = "/data/db/tradepilot.db"
)

// applyDefaults 为所有子配置应用默认值。
func (c *Config) applyDefaults(keys keySet) {
	c.App.applyDefaults(keys)
	c.Market.applyDefaults(keys)
	c.Broker.applyDefaults(keys)
	c.Trading.applyDefaults(keys)
	c.Strategies.applyDefaults(keys)
	c.Shutdown.applyDefaults(keys)
	c.Store.applyDefaults(keys)
}

func (a *AppConfig) applyDefaults(keys keySet) {
	if a == nil {
		return
	}
	applyFieldDefaults(keys,
		stringFieldDefault("app.env", &a.Env, defaultAppEnv),
		stringFieldDefault("app.log_level", &a.LogLevel, defaultAppLogLevel),
		stringFieldDefault("app.http_addr", &a.HTTPAddr, defaultAppHTTPAddr),
		stringFieldDefault("app.log_path", &a.LogPath, defaultAppLogPath),
	)
}

func (m *MarketConfig) applyDefaults(keys keySet) {
	if m == nil {
		return
	}
	applyFieldDefaults(keys,
		stringFieldDefault("market.source", &m.Source, defaultMarketSource),
		stringFieldDefault("market.rest_base_url", &m.RESTBaseURL, defaultMarketREST),
		fieldDefault{
			key:   "market.rate_per_second",
			need:  func() bool { return m.RatePerSecond <= 0 },
			apply: func() { m.RatePerSecond = defaultMarketRate },
		},
		fieldDefault{
			key:   "market.rate_burst",
			need:  func() bool { return m.RateBurst <= 0 },
			apply: func() { m.RateBurst = defaultMarketBurst },
		},
		fieldDefault{
			key:   "market.quote_ttl_seconds",
			need:  func() bool { return m.QuoteTTLSeconds <= 0 },
			apply: func() { m.QuoteTTLSeconds = defaultMarketQuoteTTL },
		},
	)
}

func (b *BrokerConfig) applyDefaults(keys keySet) {
	if b == nil {
		return
	}
	applyFieldDefaults(keys,
		fieldDefault{
			key:   "broker.timeout_seconds",
			need:  func() bool { return b.TimeoutSeconds <= 0 },
			apply: func() { b.TimeoutSeconds = defaultBrokerTimeout },
		},
		fieldDefault{
			key:   "broker.max_retries",
			need:  func() bool { return b.MaxRetries <= 0 },
			apply: func() { b.MaxRetries = defaultBrokerRetries },
		},
		fieldDefault{
			key:   "broker.retry_backoff_ms",
			need:  func() bool { return b.RetryBackoffMs <= 0 },
			apply: func() { b.RetryBackoffMs = defaultBrokerBackoffMs },
		},
	)
}

func (t *TradingConfig) applyDefaults(keys keySet) {
	if t == nil {
		return
	}
	applyFieldDefaults(keys,
		stringFieldDefault("trading.account_id", &t.AccountID, defaultTradingAccount),
		fieldDefault{
			key:   "trading.max_position_size",
			need:  func() bool { return t.MaxPositionSize <= 0 },
			apply: func() { t.MaxPositionSize = defaultTradingMaxSize },
		},
		fieldDefault{
			key:   "trading.risk_per_trade",
			need:  func() bool { return t.RiskPerTrade <= 0 },
			apply: func() { t.RiskPerTrade = defaultTradingRisk },
		},
		fieldDefault{
			key:   "trading.cycle_interval_seconds",
			need:  func() bool { return t.CycleIntervalSeconds <= 0 },
			apply: func() { t.CycleIntervalSeconds = defaultTradingCycleSecs },
		},
	)
}

func (s *StrategiesConfig) applyDefaults(keys keySet) {
	if s == nil {
		return
	}
	applyFieldDefaults(keys,
		stringFieldDefault("strategies.profiles_path", &s.ProfilesPath, defaultProfilesPath),
		boolFieldDefault("strategies.watch_reload", &s.WatchReload, true),
	)
}

func (s *ShutdownConfig) applyDefaults(keys keySet) {
	if s == nil {
		return
	}
	applyFieldDefaults(keys,
		fieldDefault{
			key:   "shutdown.timeout_seconds",
			need:  func() bool { return s.TimeoutSeconds <= 0 },
			apply: func() { s.TimeoutSeconds = defaultShutdownTimeout },
		},
		boolFieldDefault("shutdown.cancel_pending_orders", &s.CancelPendingOrders, true),
		boolFieldDefault("shutdown.wait_for_fills", &s.WaitForFills, true),
		fieldDefault{
			key:   "shutdown.lookback_minutes",
			need:  func() bool { return s.LookbackMinutes <= 0 },
			apply: func() { s.LookbackMinutes = defaultShutdownLookback },
		},
	)
}

func (s *StoreConfig) applyDefaults(keys keySet) {
	if s == nil {
		return
	}
	applyFieldDefaults(keys,
		stringFieldDefault("store.path", &s.Path, defaultStorePath),
	)
}

// Helper functions

func applyFieldDefaults(keys keySet, defs ...fieldDefault) {
	for _, def := range defs {
		if def.apply == nil {
			continue
		}
		if def.key != "" && keys.isSet(def.key) {
			continue
		}
		if def.need != nil && !def.need() {
			continue
		}
		def.apply()
	}
}

func stringFieldDefault(key string, target *string, def string) fieldDefault {
	return fieldDefault{
		key: key,
		need: func() bool {
			return target != nil && strings.TrimSpace(*target) == ""
		},
		apply: func() {
			if target != nil {
				*target = def
			}
		},
	}
}

func boolFieldDefault(key string, target *bool, def bool) fieldDefault {
	return fieldDefault{
		key:  key,
		need: func() bool { return target != nil },
		apply: func() {
			if target != nil {
				*target = def
			}
		},
	}
}
