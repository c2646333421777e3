package strategy

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tradepilot/internal/types"
)

func dataPoint(symbol string, price float64, at time.Time) types.MarketData {
	return types.MarketData{Symbol: symbol, Price: price, Timestamp: at}
}

func TestHistoricalWindow_KeepsChronologicalOrder(t *testing.T) {
	w := NewHistoricalWindow(10)
	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	w.Add(dataPoint("AAPL", 100, base))
	w.Add(dataPoint("AAPL", 102, base.Add(2*time.Minute)))
	// 乱序到达的点要插回正确位置
	w.Add(dataPoint("AAPL", 101, base.Add(time.Minute)))

	assert.Equal(t, []float64{100, 101, 102}, w.Closes("AAPL"))
}

func TestHistoricalWindow_EvictsOldestAtCapacity(t *testing.T) {
	w := NewHistoricalWindow(3)
	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	for i := 0; i < 5; i++ {
		w.Add(dataPoint("AAPL", float64(100+i), base.Add(time.Duration(i)*time.Minute)))
	}

	require.Equal(t, 3, w.Len("AAPL"))
	assert.Equal(t, []float64{102, 103, 104}, w.Closes("AAPL"))
}

func TestHistoricalWindow_SymbolsAreIsolated(t *testing.T) {
	w := NewHistoricalWindow(10)
	now := time.Now()

	w.Add(dataPoint("AAPL", 100, now))
	w.Add(dataPoint("MSFT", 300, now))

	assert.Equal(t, []float64{100}, w.Closes("AAPL"))
	assert.Equal(t, []float64{300}, w.Closes("MSFT"))
	assert.Empty(t, w.Closes("GOOG"))
}
