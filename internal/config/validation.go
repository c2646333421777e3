package config

import (
	"fmt"
	"net/url"
	"strings"
)

// validate 对配置进行基础校验。
func validate(c *Config) error {
	if err := c.Market.validate(); err != nil {
		return err
	}
	if err := c.Broker.validate(); err != nil {
		return err
	}
	if err := c.Trading.validate(); err != nil {
		return err
	}
	if err := c.Shutdown.validate(); err != nil {
		return err
	}
	if strings.TrimSpace(c.Store.Path) == "" {
		return fmt.Errorf("store.path cannot be empty")
	}
	return nil
}

func (m *MarketConfig) validate() error {
	if strings.TrimSpace(m.RESTBaseURL) == "" {
		return fmt.Errorf("market.rest_base_url cannot be empty")
	}
	if _, err := url.Parse(m.RESTBaseURL); err != nil {
		return fmt.Errorf("market.rest_base_url invalid: %w", err)
	}
	if m.RatePerSecond <= 0 {
		return fmt.Errorf("market.rate_per_second must be > 0")
	}
	return nil
}

func (b *BrokerConfig) validate() error {
	if strings.TrimSpace(b.BaseURL) == "" {
		return fmt.Errorf("broker.base_url cannot be empty")
	}
	if _, err := url.Parse(b.BaseURL); err != nil {
		return fmt.Errorf("broker.base_url invalid: %w", err)
	}
	if strings.TrimSpace(b.APIKey) == "" || strings.TrimSpace(b.APISecret) == "" {
		return fmt.Errorf("broker.api_key / broker.api_secret cannot be empty")
	}
	if b.MaxRetries < 1 {
		return fmt.Errorf("broker.max_retries must be >= 1")
	}
	return nil
}

func (t *TradingConfig) validate() error {
	if strings.TrimSpace(t.AccountID) == "" {
		return fmt.Errorf("trading.account_id cannot be empty")
	}
	if t.MaxPositionSize <= 0 {
		return fmt.Errorf("trading.max_position_size must be > 0")
	}
	if t.RiskPerTrade <= 0 || t.RiskPerTrade > 1 {
		return fmt.Errorf("trading.risk_per_trade must be in (0,1]")
	}
	return nil
}

func (s *ShutdownConfig) validate() error {
	if s.TimeoutSeconds <= 0 {
		return fmt.Errorf("shutdown.timeout_seconds must be > 0")
	}
	if s.LookbackMinutes <= 0 {
		return fmt.Errorf("shutdown.lookback_minutes must be > 0")
	}
	return nil
}
