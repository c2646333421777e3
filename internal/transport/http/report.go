package apihttp

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"

	"tradepilot/internal/logger"
	"tradepilot/internal/types"
)

// handleReport 输出组合与策略表现的可视化报表页。
func (h *handlers) handleReport(c *gin.Context) {
	ctx := c.Request.Context()
	positions, err := h.ledger.GetActivePositions(ctx, h.accountID)
	if err != nil {
		logger.Errorf("[api] report positions failed ip=%s err=%v", c.ClientIP(), err)
		c.String(http.StatusInternalServerError, "report unavailable: %v", err)
		return
	}
	trades, err := h.trading.GetTradeHistory(ctx, 7*24*time.Hour)
	if err != nil {
		logger.Errorf("[api] report trades failed ip=%s err=%v", c.ClientIP(), err)
		c.String(http.StatusInternalServerError, "report unavailable: %v", err)
		return
	}

	page := components.NewPage()
	page.SetLayout(components.PageFlexLayout)
	page.PageTitle = "tradepilot report"
	page.AddCharts(h.positionChart(positions), h.strategyChart(), tradeVolumeChart(trades))

	c.Header("Content-Type", "text/html; charset=utf-8")
	if err := page.Render(c.Writer); err != nil {
		logger.Errorf("[api] report render failed ip=%s err=%v", c.ClientIP(), err)
	}
}

func (h *handlers) positionChart(positions []types.Position) *charts.Bar {
	bar := charts.NewBar()
	bar.SetGlobalOptions(
		charts.WithTitleOpts(opts.Title{Title: "持仓浮动盈亏", Subtitle: "unrealized P&L per symbol"}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
	)
	symbols := make([]string, 0, len(positions))
	pnl := make([]opts.BarData, 0, len(positions))
	for _, pos := range positions {
		symbols = append(symbols, pos.Symbol)
		pnl = append(pnl, opts.BarData{Value: pos.UnrealizedPnL})
	}
	bar.SetXAxis(symbols)
	bar.AddSeries("Unrealized P&L", pnl)
	return bar
}

func (h *handlers) strategyChart() *charts.Bar {
	bar := charts.NewBar()
	bar.SetGlobalOptions(
		charts.WithTitleOpts(opts.Title{Title: "策略信号统计", Subtitle: "generated vs executed"}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
	)
	snapshots := h.strategies.Tracker().Snapshots()
	names := make([]string, 0, len(snapshots))
	generated := make([]opts.BarData, 0, len(snapshots))
	executed := make([]opts.BarData, 0, len(snapshots))
	for _, snap := range snapshots {
		names = append(names, snap.StrategyName)
		generated = append(generated, opts.BarData{Value: snap.SignalsGenerated})
		executed = append(executed, opts.BarData{Value: snap.SignalsExecuted})
	}
	bar.SetXAxis(names)
	bar.AddSeries("Generated", generated)
	bar.AddSeries("Executed", executed)
	return bar
}

func tradeVolumeChart(trades []types.Trade) *charts.Line {
	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithTitleOpts(opts.Title{Title: "近 7 日成交", Subtitle: "filled notional per day"}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
	)
	line.SetSeriesOptions(charts.WithLineChartOpts(opts.LineChart{ShowSymbol: opts.Bool(true)}))

	byDay := make(map[string]float64)
	for _, trade := range trades {
		if trade.ExecutedAt == nil {
			continue
		}
		day := trade.ExecutedAt.Format("01-02")
		byDay[day] += trade.Quantity * trade.Price
	}
	days := make([]string, 0, 7)
	values := make([]opts.LineData, 0, 7)
	for i := 6; i >= 0; i-- {
		day := time.Now().AddDate(0, 0, -i).Format("01-02")
		days = append(days, day)
		values = append(values, opts.LineData{Value: fmt.Sprintf("%.2f", byDay[day])})
	}
	line.SetXAxis(days)
	line.AddSeries("Notional", values)
	return line
}
