// Package traderr defines the error taxonomy shared by the trading core.
//
// Validation and risk rejections are terminal for a request and must never be
// retried; only APIConnectionError is eligible for the gateway retry wrapper.
package traderr

import (
	"errors"
	"fmt"
)

// InvalidOrderError 表示请求未通过基础校验（符号、数量、价格、限额）。
type InvalidOrderError struct {
	Reason string
}

func (e *InvalidOrderError) Error() string {
	return fmt.Sprintf("invalid order: %s", e.Reason)
}

// NewInvalidOrder builds a validation rejection.
func NewInvalidOrder(format string, args ...any) error {
	return &InvalidOrderError{Reason: fmt.Sprintf(format, args...)}
}

// InsufficientFundsError 表示买入金额超过可用现金。
type InsufficientFundsError struct {
	Required  float64
	Available float64
}

func (e *InsufficientFundsError) Error() string {
	return fmt.Sprintf("insufficient funds: required %.4f, available %.4f", e.Required, e.Available)
}

// InsufficientSharesError 表示卖出数量超过持仓。
type InsufficientSharesError struct {
	Symbol    string
	Requested float64
	Held      float64
}

func (e *InsufficientSharesError) Error() string {
	return fmt.Sprintf("insufficient shares for %s: requested %.4f, held %.4f", e.Symbol, e.Requested, e.Held)
}

// APIConnectionError 表示券商/行情连接层故障，可重试。
type APIConnectionError struct {
	Endpoint string
	Err      error
}

func (e *APIConnectionError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("api connection failed: %s", e.Endpoint)
	}
	return fmt.Sprintf("api connection failed (%s): %v", e.Endpoint, e.Err)
}

func (e *APIConnectionError) Unwrap() error { return e.Err }

// NewAPIConnection wraps a transport-level failure.
func NewAPIConnection(endpoint string, err error) error {
	return &APIConnectionError{Endpoint: endpoint, Err: err}
}

// MarketDataError 表示行情返回为空或无法解析。核心不重试，重试属于 provider 的职责。
type MarketDataError struct {
	Symbol string
	Reason string
}

func (e *MarketDataError) Error() string {
	if e.Symbol == "" {
		return fmt.Sprintf("market data error: %s", e.Reason)
	}
	return fmt.Sprintf("market data error for %s: %s", e.Symbol, e.Reason)
}

// SystemError 用于启动健康检查失败等致命场景。
type SystemError struct {
	Op  string
	Err error
}

func (e *SystemError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("trading system error: %s", e.Op)
	}
	return fmt.Sprintf("trading system error (%s): %v", e.Op, e.Err)
}

func (e *SystemError) Unwrap() error { return e.Err }

// IsRetryable reports whether the error is a connectivity failure the gateway
// retry wrapper may attempt again. Business rejections always return false.
func IsRetryable(err error) bool {
	var connErr *APIConnectionError
	return errors.As(err, &connErr)
}

// IsRejection reports whether the error is a validation or risk-gate rejection.
func IsRejection(err error) bool {
	var (
		invalid *InvalidOrderError
		funds   *InsufficientFundsError
		shares  *InsufficientSharesError
	)
	return errors.As(err, &invalid) || errors.As(err, &funds) || errors.As(err, &shares)
}
