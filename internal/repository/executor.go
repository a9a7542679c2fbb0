package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
)

// QueryKind 查询类型（远端查询服务的 SQLType 字段）
type QueryKind string

const (
	QuerySelect QueryKind = "SELECT"
	QueryInsert QueryKind = "INSERT"
	QueryUpdate QueryKind = "UPDATE"
)

// ErrUnexpectedStatus 查询服务返回非 2xx 状态
var ErrUnexpectedStatus = errors.New("unexpected status from query service")

// Executor 执行一条查询，返回 JSON 行数组
type Executor interface {
	Execute(ctx context.Context, kind QueryKind, query string) ([]byte, error)
}

// QueryPayload 查询服务请求体
type QueryPayload struct {
	SQLType  QueryKind `json:"SQLType"`
	SQLQuery string    `json:"SQLquery"`
}

// HTTPExecutor 通过 HTTP 查询服务执行查询
type HTTPExecutor struct {
	httpClient *resty.Client
	url        string
	logger     *zap.Logger
}

// NewHTTPExecutor 创建 HTTP 执行器
// timeout 为 0 表示不设超时
func NewHTTPExecutor(url string, timeout time.Duration, retryCount int, logger *zap.Logger) *HTTPExecutor {
	client := resty.New().
		SetTimeout(timeout).
		SetRetryCount(retryCount).
		SetRetryWaitTime(1*time.Second).
		SetRetryMaxWaitTime(5*time.Second).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json")

	return &HTTPExecutor{
		httpClient: client,
		url:        url,
		logger:     logger,
	}
}

// Execute POST {SQLType, SQLquery}，返回响应体
func (e *HTTPExecutor) Execute(ctx context.Context, kind QueryKind, query string) ([]byte, error) {
	resp, err := e.httpClient.R().
		SetContext(ctx).
		SetBody(QueryPayload{SQLType: kind, SQLQuery: query}).
		Post(e.url)
	if err != nil {
		return nil, fmt.Errorf("failed to call query service: %w", err)
	}

	if !resp.IsSuccess() {
		e.logger.Debug("Query service returned error status",
			zap.Int("status_code", resp.StatusCode()),
			zap.String("sql_type", string(kind)),
		)
		return nil, fmt.Errorf("%w: %d", ErrUnexpectedStatus, resp.StatusCode())
	}

	return resp.Body(), nil
}
