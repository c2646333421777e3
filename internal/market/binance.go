package market

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/adshao/go-binance/v2"

	"tradepilot/internal/pkg/traderr"
	"tradepilot/internal/types"
)

// BinanceSource 基于 go-binance SDK 的现货行情实现。
type BinanceSource struct {
	client *binance.Client
}

// BinanceConfig 描述现货 REST 入口。
type BinanceConfig struct {
	RESTBaseURL string
	HTTPTimeout time.Duration
}

// NewBinanceSource builds the spot client; credentials are not needed for
// public market data endpoints.
func NewBinanceSource(cfg BinanceConfig) *BinanceSource {
	client := binance.NewClient("", "")
	if base := strings.TrimSpace(cfg.RESTBaseURL); base != "" {
		client.BaseURL = base
	}
	timeout := cfg.HTTPTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	client.HTTPClient = &http.Client{Timeout: timeout}
	return &BinanceSource{client: client}
}

// GetCurrentQuote 拉取 24h 统计作为行情快照。
func (s *BinanceSource) GetCurrentQuote(ctx context.Context, symbol string) (types.Quote, error) {
	clean := cleanSymbol(symbol)
	if clean == "" {
		return types.Quote{}, &traderr.MarketDataError{Reason: "symbol is required"}
	}
	stats, err := s.client.NewListPriceChangeStatsService().Symbol(clean).Do(ctx)
	if err != nil {
		return types.Quote{}, traderr.NewAPIConnection("binance ticker", err)
	}
	if len(stats) == 0 || stats[0] == nil {
		return types.Quote{}, &traderr.MarketDataError{Symbol: symbol, Reason: "empty ticker response"}
	}
	st := stats[0]
	price := parseFloat(st.LastPrice)
	if price <= 0 {
		return types.Quote{}, &traderr.MarketDataError{Symbol: symbol, Reason: fmt.Sprintf("unparsable last price %q", st.LastPrice)}
	}
	return types.Quote{
		Symbol:    strings.ToUpper(strings.TrimSpace(symbol)),
		Price:     price,
		Open:      parseFloat(st.OpenPrice),
		High:      parseFloat(st.HighPrice),
		Low:       parseFloat(st.LowPrice),
		Volume:    parseFloat(st.Volume),
		Timestamp: time.UnixMilli(st.CloseTime).UTC(),
	}, nil
}

// GetHistoricalData 返回最近 days 天的日线。
func (s *BinanceSource) GetHistoricalData(ctx context.Context, symbol string, days int) ([]types.Bar, error) {
	clean := cleanSymbol(symbol)
	if clean == "" {
		return nil, &traderr.MarketDataError{Reason: "symbol is required"}
	}
	if days <= 0 {
		days = 30
	}
	if days > 1000 {
		days = 1000
	}
	kls, err := s.client.NewKlinesService().Symbol(clean).Interval("1d").Limit(days).Do(ctx)
	if err != nil {
		return nil, traderr.NewAPIConnection("binance klines", err)
	}
	if len(kls) == 0 {
		return nil, &traderr.MarketDataError{Symbol: symbol, Reason: "empty kline response"}
	}
	out := make([]types.Bar, 0, len(kls))
	for _, kl := range kls {
		if kl == nil {
			continue
		}
		out = append(out, types.Bar{
			Date:   time.UnixMilli(kl.OpenTime).UTC(),
			Open:   parseFloat(kl.Open),
			High:   parseFloat(kl.High),
			Low:    parseFloat(kl.Low),
			Close:  parseFloat(kl.Close),
			Volume: parseFloat(kl.Volume),
		})
	}
	return out, nil
}

// cleanSymbol 去掉分隔符：行情端点要求 ETHUSDT 这种写法。
func cleanSymbol(symbol string) string {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	symbol = strings.ReplaceAll(symbol, "/", "")
	return strings.ReplaceAll(symbol, "-", "")
}

func parseFloat(raw string) float64 {
	v, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil {
		return 0
	}
	return v
}
