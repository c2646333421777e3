package types

import "time"

// Quote 表示某个标的的最新行情快照。
type Quote struct {
	Symbol    string    `json:"symbol"`
	Price     float64   `json:"price"`
	Open      float64   `json:"open"`
	High      float64   `json:"high"`
	Low       float64   `json:"low"`
	Volume    float64   `json:"volume"`
	Timestamp time.Time `json:"timestamp"`
}

// Bar 表示一根历史K线（日线或分钟线均可）。
type Bar struct {
	Date   time.Time `json:"date"`
	Open   float64   `json:"open"`
	High   float64   `json:"high"`
	Low    float64   `json:"low"`
	Close  float64   `json:"close"`
	Volume float64   `json:"volume"`
}

// MarketData is the unit fed into strategies on every analysis cycle.
type MarketData struct {
	Symbol    string    `json:"symbol"`
	Price     float64   `json:"price"`
	Open      float64   `json:"open"`
	High      float64   `json:"high"`
	Low       float64   `json:"low"`
	Volume    float64   `json:"volume"`
	Timestamp time.Time `json:"timestamp"`
}

// FromQuote converts a provider quote into strategy input.
func FromQuote(q Quote) MarketData {
	return MarketData{
		Symbol:    q.Symbol,
		Price:     q.Price,
		Open:      q.Open,
		High:      q.High,
		Low:       q.Low,
		Volume:    q.Volume,
		Timestamp: q.Timestamp,
	}
}
