package strategy

import (
	"sort"
	"sync"
	"time"

	"tradepilot/internal/types"
)

// DefaultWindowCapacity 每个标的保留的历史点数上限。
const DefaultWindowCapacity = 200

// HistoricalWindow 是按时间排序的有界滚动缓冲，按 symbol 分桶。
// 超过容量后丢弃最旧的点。乱序到达的点按时间戳插入而不是简单追加。
type HistoricalWindow struct {
	mu       sync.RWMutex
	capacity int
	points   map[string][]types.MarketData
}

// NewHistoricalWindow builds a window; capacity <= 0 falls back to the default.
func NewHistoricalWindow(capacity int) *HistoricalWindow {
	if capacity <= 0 {
		capacity = DefaultWindowCapacity
	}
	return &HistoricalWindow{
		capacity: capacity,
		points:   make(map[string][]types.MarketData),
	}
}

// Add inserts a data point keeping the per-symbol series timestamp ordered.
func (w *HistoricalWindow) Add(data types.MarketData) {
	w.mu.Lock()
	defer w.mu.Unlock()

	series := w.points[data.Symbol]
	n := len(series)
	if n == 0 || !data.Timestamp.Before(series[n-1].Timestamp) {
		series = append(series, data)
	} else {
		// 乱序点：按时间戳定位插入。
		idx := sort.Search(n, func(i int) bool {
			return series[i].Timestamp.After(data.Timestamp)
		})
		series = append(series, types.MarketData{})
		copy(series[idx+1:], series[idx:])
		series[idx] = data
	}
	if len(series) > w.capacity {
		series = series[len(series)-w.capacity:]
	}
	w.points[data.Symbol] = series
}

// Len returns the number of retained points for a symbol.
func (w *HistoricalWindow) Len(symbol string) int {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return len(w.points[symbol])
}

// Closes returns the close-price series (oldest first) for a symbol.
func (w *HistoricalWindow) Closes(symbol string) []float64 {
	w.mu.RLock()
	defer w.mu.RUnlock()
	series := w.points[symbol]
	out := make([]float64, len(series))
	for i, p := range series {
		out[i] = p.Price
	}
	return out
}

// Latest returns the most recent point for a symbol.
func (w *HistoricalWindow) Latest(symbol string) (types.MarketData, bool) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	series := w.points[symbol]
	if len(series) == 0 {
		return types.MarketData{}, false
	}
	return series[len(series)-1], true
}

// LatestTimestamp returns the newest retained timestamp for a symbol.
func (w *HistoricalWindow) LatestTimestamp(symbol string) (time.Time, bool) {
	p, ok := w.Latest(symbol)
	if !ok {
		return time.Time{}, false
	}
	return p.Timestamp, true
}
