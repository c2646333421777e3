// Package apihttp 提供交易系统的查询与手工下单 HTTP 接口。
package apihttp

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"tradepilot/internal/logger"
	"tradepilot/internal/portfolio"
	"tradepilot/internal/strategy"
	"tradepilot/internal/trading"
)

// Server wraps the gin engine and its listen address.
type Server struct {
	addr   string
	router *gin.Engine
}

// ServerConfig 描述 HTTP 服务依赖。
type ServerConfig struct {
	Addr       string
	AccountID  string
	Trading    *trading.Service
	Ledger     *portfolio.Service
	Strategies *strategy.Service
}

// NewServer 构建 HTTP server。
func NewServer(cfg ServerConfig) (*Server, error) {
	if cfg.Trading == nil || cfg.Ledger == nil || cfg.Strategies == nil {
		return nil, errors.New("http server requires trading, ledger and strategy services")
	}
	if cfg.Addr == "" {
		cfg.Addr = ":9980"
	}
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery(), requestLogger())

	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	h := &handlers{
		accountID:  cfg.AccountID,
		trading:    cfg.Trading,
		ledger:     cfg.Ledger,
		strategies: cfg.Strategies,
	}
	api := router.Group("/api")
	{
		api.GET("/portfolio", h.handlePortfolio)
		api.GET("/positions", h.handlePositions)
		api.GET("/performance", h.handlePerformance)
		api.GET("/trades", h.handleTrades)
		api.GET("/trades/:id", h.handleTradeDetail)
		api.POST("/orders", h.handlePlaceOrder)
		api.DELETE("/orders/:id", h.handleCancelOrder)
		api.GET("/strategies", h.handleStrategies)
	}
	router.GET("/report", h.handleReport)

	return &Server{addr: cfg.Addr, router: router}, nil
}

// requestLogger 记录接口调用，便于追踪人工操作。
func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		method := c.Request.Method
		path := c.Request.URL.Path
		query := c.Request.URL.RawQuery
		client := c.ClientIP()
		c.Next()
		dur := time.Since(start)
		status := c.Writer.Status()
		fullPath := path
		if query != "" {
			fullPath = path + "?" + query
		}
		logger.Debugf("HTTP %s %s status=%d ip=%s dur=%s", method, fullPath, status, client, dur)
	}
}

// Addr 返回监听地址。
func (s *Server) Addr() string {
	if s == nil {
		return ""
	}
	return s.addr
}

// Start 启动 HTTP 服务，直到 ctx 取消或出现错误。
func (s *Server) Start(ctx context.Context) error {
	if s == nil {
		return nil
	}
	srv := &http.Server{Addr: s.addr, Handler: s.router}
	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		shCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shCtx)
		return nil
	case err := <-errCh:
		return err
	}
}
