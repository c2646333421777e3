package broker

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/tidwall/gjson"

	"tradepilot/internal/pkg/traderr"
	"tradepilot/internal/types"
)

// Config 描述券商 REST 网关的访问方式。
type Config struct {
	BaseURL   string
	APIKey    string
	APISecret string
	Timeout   time.Duration
}

// RESTClient 实现 Gateway，走 HTTPS + key/secret 头部认证。
type RESTClient struct {
	baseURL    *url.URL
	httpClient *http.Client
	apiKey     string
	apiSecret  string
}

// NewRESTClient constructs the gateway client from configuration.
func NewRESTClient(cfg Config) (*RESTClient, error) {
	raw := strings.TrimSpace(cfg.BaseURL)
	if raw == "" {
		return nil, fmt.Errorf("broker.base_url 不能为空")
	}
	parsed, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("解析 broker.base_url 失败: %w", err)
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &RESTClient{
		baseURL:    parsed,
		httpClient: &http.Client{Timeout: timeout},
		apiKey:     strings.TrimSpace(cfg.APIKey),
		apiSecret:  strings.TrimSpace(cfg.APISecret),
	}, nil
}

// SetHTTPClient sets the HTTP client for testing.
func (c *RESTClient) SetHTTPClient(client *http.Client) {
	c.httpClient = client
}

// orderPayload mirrors the gateway's order schema.
type orderPayload struct {
	Symbol        string   `json:"symbol"`
	Quantity      float64  `json:"qty"`
	Side          string   `json:"side"`
	OrderType     string   `json:"type"`
	TimeInForce   string   `json:"time_in_force"`
	LimitPrice    *float64 `json:"limit_price,omitempty"`
	StopPrice     *float64 `json:"stop_price,omitempty"`
	ClientOrderID string   `json:"client_order_id,omitempty"`
}

type orderEnvelope struct {
	ID             string  `json:"id"`
	Status         string  `json:"status"`
	FilledQty      string  `json:"filled_qty"`
	FilledAvgPrice string  `json:"filled_avg_price"`
	FilledAt       *string `json:"filled_at"`
}

// PlaceOrder submits the order and normalizes the response.
func (c *RESTClient) PlaceOrder(ctx context.Context, req OrderRequest) (OrderResponse, error) {
	payload := orderPayload{
		Symbol:        strings.ToUpper(strings.TrimSpace(req.Symbol)),
		Quantity:      req.Quantity,
		Side:          strings.ToLower(string(req.Side)),
		OrderType:     string(req.OrderType),
		TimeInForce:   strings.ToLower(req.TimeInForce),
		LimitPrice:    req.LimitPrice,
		StopPrice:     req.StopPrice,
		ClientOrderID: req.ClientOrderID,
	}
	if payload.TimeInForce == "" {
		payload.TimeInForce = "day"
	}
	var env orderEnvelope
	if err := c.doRequest(ctx, http.MethodPost, "/v1/orders", payload, &env); err != nil {
		return OrderResponse{}, err
	}
	if strings.TrimSpace(env.ID) == "" {
		return OrderResponse{}, traderr.NewInvalidOrder("broker 未返回订单号")
	}
	return normalizeOrder(env), nil
}

// GetOrderStatus 查询订单当前状态。
func (c *RESTClient) GetOrderStatus(ctx context.Context, orderID string) (types.OrderStatus, error) {
	var env orderEnvelope
	if err := c.doRequest(ctx, http.MethodGet, "/v1/orders/"+url.PathEscape(orderID), nil, &env); err != nil {
		return "", err
	}
	return normalizeStatus(env.Status), nil
}

// CancelOrder 请求撤单。已终态的订单会被券商拒绝，按业务错误处理。
func (c *RESTClient) CancelOrder(ctx context.Context, orderID string) error {
	return c.doRequest(ctx, http.MethodDelete, "/v1/orders/"+url.PathEscape(orderID), nil, nil)
}

type accountEnvelope struct {
	AccountNumber    string `json:"account_number"`
	Cash             string `json:"cash"`
	PortfolioValue   string `json:"portfolio_value"`
	BuyingPower      string `json:"buying_power"`
	PatternDayTrader bool   `json:"pattern_day_trader"`
	Status           string `json:"status"`
}

// GetAccountInfo 拉取账户快照。
func (c *RESTClient) GetAccountInfo(ctx context.Context) (AccountInfo, error) {
	var env accountEnvelope
	if err := c.doRequest(ctx, http.MethodGet, "/v1/account", nil, &env); err != nil {
		return AccountInfo{}, err
	}
	return AccountInfo{
		AccountID:        env.AccountNumber,
		Cash:             parseNumeric(env.Cash),
		PortfolioValue:   parseNumeric(env.PortfolioValue),
		BuyingPower:      parseNumeric(env.BuyingPower),
		PatternDayTrader: env.PatternDayTrader,
		Status:           env.Status,
	}, nil
}

type positionEnvelope struct {
	Symbol        string `json:"symbol"`
	Quantity      string `json:"qty"`
	AvgEntryPrice string `json:"avg_entry_price"`
	MarketValue   string `json:"market_value"`
	UnrealizedPL  string `json:"unrealized_pl"`
}

// GetPositions 拉取券商侧全部持仓。
func (c *RESTClient) GetPositions(ctx context.Context) ([]Position, error) {
	var raw json.RawMessage
	if err := c.doRequest(ctx, http.MethodGet, "/v1/positions", nil, &raw); err != nil {
		return nil, err
	}
	if len(raw) == 0 || string(bytes.TrimSpace(raw)) == "null" {
		return nil, nil
	}
	var envs []positionEnvelope
	if err := json.Unmarshal(raw, &envs); err != nil {
		// 个别网关把列表包在对象里，宽松解一层。
		result := gjson.GetBytes(raw, "positions")
		if !result.IsArray() {
			return nil, fmt.Errorf("无法解析 positions 响应: %w", err)
		}
		if err := json.Unmarshal([]byte(result.Raw), &envs); err != nil {
			return nil, fmt.Errorf("无法解析 positions 响应: %w", err)
		}
	}
	out := make([]Position, 0, len(envs))
	for _, env := range envs {
		out = append(out, Position{
			Symbol:        strings.ToUpper(strings.TrimSpace(env.Symbol)),
			Quantity:      parseNumeric(env.Quantity),
			AveragePrice:  parseNumeric(env.AvgEntryPrice),
			MarketValue:   parseNumeric(env.MarketValue),
			UnrealizedPnL: parseNumeric(env.UnrealizedPL),
		})
	}
	return out, nil
}

func (c *RESTClient) doRequest(ctx context.Context, method, path string, payload, out any) error {
	var body io.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("编码请求失败: %w", err)
		}
		body = bytes.NewReader(raw)
	}
	endpoint := c.baseURL.JoinPath(path).String()
	req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return fmt.Errorf("构造请求失败: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("X-API-KEY", c.apiKey)
	req.Header.Set("X-API-SECRET", c.apiSecret)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return traderr.NewAPIConnection(method+" "+path, err)
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return traderr.NewAPIConnection(method+" "+path, err)
	}

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		// fallthrough to decode
	case resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests:
		return traderr.NewAPIConnection(method+" "+path, fmt.Errorf("broker http %d: %s", resp.StatusCode, rejectionMessage(raw)))
	default:
		// 4xx：业务拒绝，不重试。
		return traderr.NewInvalidOrder("broker rejected (%d): %s", resp.StatusCode, rejectionMessage(raw))
	}

	if out == nil || len(bytes.TrimSpace(raw)) == 0 {
		return nil
	}
	if rawOut, ok := out.(*json.RawMessage); ok {
		*rawOut = append((*rawOut)[:0], raw...)
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("解析 broker 响应失败: %w", err)
	}
	return nil
}

// rejectionMessage 从错误响应里尽量提取可读信息。
func rejectionMessage(raw []byte) string {
	for _, key := range []string{"message", "error", "detail"} {
		if v := gjson.GetBytes(raw, key); v.Exists() && strings.TrimSpace(v.String()) != "" {
			return v.String()
		}
	}
	text := strings.TrimSpace(string(raw))
	if len(text) > 200 {
		text = text[:200]
	}
	if text == "" {
		text = "(empty body)"
	}
	return text
}

func normalizeOrder(env orderEnvelope) OrderResponse {
	resp := OrderResponse{
		OrderID:        env.ID,
		Status:         normalizeStatus(env.Status),
		FilledQuantity: parseNumeric(env.FilledQty),
		FilledPrice:    parseNumeric(env.FilledAvgPrice),
	}
	if env.FilledAt != nil {
		if ts, err := time.Parse(time.RFC3339, *env.FilledAt); err == nil {
			utc := ts.UTC()
			resp.FilledAt = &utc
		}
	}
	return resp
}

// normalizeStatus 把网关侧状态字符串折算到内部枚举。
func normalizeStatus(raw string) types.OrderStatus {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "pending", "pending_new", "accepted_for_bidding":
		return types.OrderStatusPending
	case "new", "accepted", "submitted", "open":
		return types.OrderStatusSubmitted
	case "partially_filled", "partial_fill":
		return types.OrderStatusPartiallyFilled
	case "filled", "done_for_day":
		return types.OrderStatusFilled
	case "canceled", "cancelled", "expired", "rejected", "stopped":
		return types.OrderStatusCancelled
	default:
		return types.OrderStatusSubmitted
	}
}

func parseNumeric(raw string) float64 {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0
	}
	return f
}
