package apihttp

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"tradepilot/internal/logger"
	"tradepilot/internal/pkg/traderr"
	"tradepilot/internal/portfolio"
	"tradepilot/internal/strategy"
	"tradepilot/internal/trading"
	"tradepilot/internal/types"
)

type handlers struct {
	accountID  string
	trading    *trading.Service
	ledger     *portfolio.Service
	strategies *strategy.Service
}

func (h *handlers) handlePortfolio(c *gin.Context) {
	view, err := h.ledger.GetPortfolio(c.Request.Context(), h.accountID)
	if err != nil {
		logger.Errorf("[api] portfolio query failed ip=%s err=%v", c.ClientIP(), err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"portfolio":   view,
		"total_value": view.TotalValue(),
	})
}

func (h *handlers) handlePositions(c *gin.Context) {
	positions, err := h.ledger.GetActivePositions(c.Request.Context(), h.accountID)
	if err != nil {
		logger.Errorf("[api] positions query failed ip=%s err=%v", c.ClientIP(), err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"positions": positions, "count": len(positions)})
}

func (h *handlers) handlePerformance(c *gin.Context) {
	perf, err := h.ledger.CalculatePerformance(c.Request.Context(), h.accountID)
	if err != nil {
		logger.Errorf("[api] performance query failed ip=%s err=%v", c.ClientIP(), err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"portfolio":  perf,
		"strategies": h.strategies.Tracker().Snapshots(),
	})
}

func (h *handlers) handleTrades(c *gin.Context) {
	lookbackMin, _ := strconv.Atoi(c.DefaultQuery("lookback_minutes", "1440"))
	if lookbackMin <= 0 {
		lookbackMin = 1440
	}
	trades, err := h.trading.GetTradeHistory(c.Request.Context(), time.Duration(lookbackMin)*time.Minute)
	if err != nil {
		logger.Errorf("[api] trades query failed ip=%s err=%v", c.ClientIP(), err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"trades": trades, "count": len(trades)})
}

func (h *handlers) handleTradeDetail(c *gin.Context) {
	orderID := strings.TrimSpace(c.Param("id"))
	if orderID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "order id 不能为空"})
		return
	}
	trade, err := h.trading.GetOrderStatus(c.Request.Context(), orderID)
	if err != nil {
		if traderr.IsRejection(err) {
			c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
			return
		}
		logger.Warnf("[api] trade detail failed ip=%s order=%s err=%v", c.ClientIP(), orderID, err)
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"trade": trade})
}

type placeOrderRequest struct {
	Symbol     string   `json:"symbol" binding:"required"`
	Side       string   `json:"side" binding:"required"`
	Quantity   float64  `json:"quantity" binding:"required"`
	OrderType  string   `json:"order_type"`
	LimitPrice *float64 `json:"limit_price"`
	StopPrice  *float64 `json:"stop_price"`
}

func (h *handlers) handlePlaceOrder(c *gin.Context) {
	var req placeOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	params := trading.OrderParams{
		Symbol:     req.Symbol,
		Quantity:   req.Quantity,
		OrderType:  types.OrderType(strings.ToLower(strings.TrimSpace(req.OrderType))),
		LimitPrice: req.LimitPrice,
		StopPrice:  req.StopPrice,
	}

	var (
		trade *types.Trade
		err   error
	)
	switch strings.ToUpper(strings.TrimSpace(req.Side)) {
	case string(types.TradeTypeBuy):
		trade, err = h.trading.ExecuteBuyOrder(c.Request.Context(), params)
	case string(types.TradeTypeSell):
		trade, err = h.trading.ExecuteSellOrder(c.Request.Context(), params)
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "side 必须为 BUY 或 SELL"})
		return
	}
	if err != nil {
		if traderr.IsRejection(err) {
			logger.Warnf("[api] manual order rejected ip=%s symbol=%s err=%v", c.ClientIP(), req.Symbol, err)
			c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
			return
		}
		logger.Errorf("[api] manual order failed ip=%s symbol=%s err=%v", c.ClientIP(), req.Symbol, err)
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		return
	}
	logger.Infof("[api] manual order placed ip=%s order=%s symbol=%s side=%s qty=%.4f",
		c.ClientIP(), trade.OrderID, trade.Symbol, trade.Type, trade.Quantity)
	c.JSON(http.StatusOK, gin.H{"trade": trade})
}

func (h *handlers) handleCancelOrder(c *gin.Context) {
	orderID := strings.TrimSpace(c.Param("id"))
	if orderID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "order id 不能为空"})
		return
	}
	if err := h.trading.CancelOrder(c.Request.Context(), orderID); err != nil {
		if traderr.IsRejection(err) {
			c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
			return
		}
		logger.Errorf("[api] cancel failed ip=%s order=%s err=%v", c.ClientIP(), orderID, err)
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		return
	}
	logger.Infof("[api] order cancelled ip=%s order=%s", c.ClientIP(), orderID)
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (h *handlers) handleStrategies(c *gin.Context) {
	type strategyView struct {
		Name     string                       `json:"name"`
		Enabled  bool                         `json:"enabled"`
		Config   strategy.Config              `json:"config"`
		Snapshot strategy.PerformanceSnapshot `json:"performance"`
	}
	all := h.strategies.Registry().All()
	views := make([]strategyView, 0, len(all))
	for _, s := range all {
		views = append(views, strategyView{
			Name:     s.Name(),
			Enabled:  s.Enabled(),
			Config:   s.Config(),
			Snapshot: h.strategies.Tracker().For(s.Name()).Snapshot(),
		})
	}
	c.JSON(http.StatusOK, gin.H{"strategies": views, "count": len(views)})
}
