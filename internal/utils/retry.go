package utils

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"time"
)

// RetryConfig 配置重试参数
type RetryConfig struct {
	// MaxRetries 最大重试次数，0 表示只请求一次
	MaxRetries int
	// InitialDelay 初始延迟时间
	InitialDelay time.Duration
	// MaxDelay 最大延迟时间
	MaxDelay time.Duration
	// BackoffMultiplier 退避倍数
	BackoffMultiplier float64
	// RetryableStatusCodes 需要重试的HTTP状态码
	RetryableStatusCodes []int
	// RetryableErrors 需要重试的错误类型判断函数
	RetryableErrors func(error) bool
}

// DefaultRetryConfig 返回默认的重试配置（不重试）
func DefaultRetryConfig() *RetryConfig {
	return &RetryConfig{
		MaxRetries:        0,
		InitialDelay:      500 * time.Millisecond,
		MaxDelay:          10 * time.Second,
		BackoffMultiplier: 2.0,
		RetryableStatusCodes: []int{
			http.StatusRequestTimeout,     // 408
			http.StatusTooManyRequests,    // 429
			http.StatusBadGateway,         // 502
			http.StatusServiceUnavailable, // 503
			http.StatusGatewayTimeout,     // 504
		},
		RetryableErrors: func(err error) bool {
			// 主动取消不重试，其余网络错误都重试
			return !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded)
		},
	}
}

// RetryableHTTPClient 带重试机制的HTTP客户端
type RetryableHTTPClient struct {
	client Doer
	config *RetryConfig
}

// NewRetryableHTTPClient 创建新的带重试机制的HTTP客户端
func NewRetryableHTTPClient(client Doer, config *RetryConfig) *RetryableHTTPClient {
	if config == nil {
		config = DefaultRetryConfig()
	}
	return &RetryableHTTPClient{
		client: client,
		config: config,
	}
}

// Do 执行HTTP请求，支持重试。
// 最后一次尝试的响应原样返回（即使状态码可重试），由调用方解析错误体。
func (r *RetryableHTTPClient) Do(req *http.Request) (*http.Response, error) {
	var bodyBytes []byte
	if req.Body != nil && req.Body != http.NoBody {
		var err error
		bodyBytes, err = io.ReadAll(req.Body)
		req.Body.Close()
		if err != nil {
			return nil, fmt.Errorf("读取请求体失败: %w", err)
		}
	}

	ctx := req.Context()
	var lastErr error

	for attempt := 0; attempt <= r.config.MaxRetries; attempt++ {
		if attempt > 0 {
			timer := time.NewTimer(r.calculateDelay(attempt))
			select {
			case <-ctx.Done():
				timer.Stop()
				return nil, ctx.Err()
			case <-timer.C:
			}
		}

		// 请求体只能读取一次，每次尝试都克隆
		attemptReq := req.Clone(ctx)
		if bodyBytes != nil {
			attemptReq.Body = io.NopCloser(bytes.NewReader(bodyBytes))
			attemptReq.ContentLength = int64(len(bodyBytes))
		}

		resp, err := r.client.Do(attemptReq)
		if err != nil {
			lastErr = err
			if !r.shouldRetryError(err) {
				break
			}
			continue
		}

		if attempt == r.config.MaxRetries || !r.shouldRetryStatus(resp.StatusCode) {
			return resp, nil
		}

		// 需要重试，关闭响应体
		io.Copy(io.Discard, resp.Body)
		resp.Body.Close()
		lastErr = fmt.Errorf("HTTP %d", resp.StatusCode)
	}

	return nil, fmt.Errorf("after %d retries: %w", r.config.MaxRetries, lastErr)
}

// calculateDelay 计算延迟时间
func (r *RetryableHTTPClient) calculateDelay(attempt int) time.Duration {
	// 指数退避：delay = initialDelay * (backoffMultiplier ^ (attempt - 1))
	delay := float64(r.config.InitialDelay) * math.Pow(r.config.BackoffMultiplier, float64(attempt-1))

	if delay > float64(r.config.MaxDelay) {
		delay = float64(r.config.MaxDelay)
	}

	return time.Duration(delay)
}

func (r *RetryableHTTPClient) shouldRetryStatus(statusCode int) bool {
	for _, code := range r.config.RetryableStatusCodes {
		if statusCode == code {
			return true
		}
	}
	return false
}

func (r *RetryableHTTPClient) shouldRetryError(err error) bool {
	if r.config.RetryableErrors == nil {
		return false
	}
	return r.config.RetryableErrors(err)
}
