package utils

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"
)

func fastRetryConfig(maxRetries int) *RetryConfig {
	cfg := DefaultRetryConfig()
	cfg.MaxRetries = maxRetries
	cfg.InitialDelay = 5 * time.Millisecond
	cfg.MaxDelay = 20 * time.Millisecond
	return cfg
}

func TestRetryableHTTPClient_Success(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("success"))
	}))
	defer server.Close()

	retryClient := NewRetryableHTTPClient(server.Client(), nil)

	req, err := http.NewRequest("GET", server.URL, nil)
	if err != nil {
		t.Fatalf("Failed to create request: %v", err)
	}

	resp, err := retryClient.Do(req)
	if err != nil {
		t.Fatalf("Request failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Errorf("Expected status 200, got %d", resp.StatusCode)
	}
}

func TestRetryableHTTPClient_DefaultDoesNotRetry(t *testing.T) {
	var requestCount int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&requestCount, 1)
		w.WriteHeader(http.StatusServiceUnavailable)
		w.Write([]byte(`{"detail":"busy"}`))
	}))
	defer server.Close()

	retryClient := NewRetryableHTTPClient(server.Client(), nil)
	req, _ := http.NewRequest("GET", server.URL, nil)

	resp, err := retryClient.Do(req)
	if err != nil {
		t.Fatalf("Expected the final response to be returned, got error: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Errorf("Expected status 503, got %d", resp.StatusCode)
	}
	// 最后一次响应体必须保留给调用方
	body, _ := io.ReadAll(resp.Body)
	if string(body) != `{"detail":"busy"}` {
		t.Errorf("Response body lost: %q", string(body))
	}
	if n := atomic.LoadInt32(&requestCount); n != 1 {
		t.Errorf("Expected 1 request, got %d", n)
	}
}

func TestRetryableHTTPClient_RetryOn503(t *testing.T) {
	var requestCount int32

	// 前2次返回503，第3次返回200
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&requestCount, 1) <= 2 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("success after retry"))
	}))
	defer server.Close()

	retryClient := NewRetryableHTTPClient(server.Client(), fastRetryConfig(3))

	req, _ := http.NewRequest("GET", server.URL, nil)
	resp, err := retryClient.Do(req)
	if err != nil {
		t.Fatalf("Request failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Errorf("Expected status 200, got %d", resp.StatusCode)
	}
	if n := atomic.LoadInt32(&requestCount); n != 3 {
		t.Errorf("Expected 3 requests, got %d", n)
	}
}

func TestRetryableHTTPClient_NonRetryableStatus(t *testing.T) {
	var requestCount int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&requestCount, 1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	retryClient := NewRetryableHTTPClient(server.Client(), fastRetryConfig(3))
	req, _ := http.NewRequest("GET", server.URL, nil)

	resp, err := retryClient.Do(req)
	if err != nil {
		t.Fatalf("Request failed: %v", err)
	}
	resp.Body.Close()

	if n := atomic.LoadInt32(&requestCount); n != 1 {
		t.Errorf("404 should not be retried, got %d requests", n)
	}
}

func TestRetryableHTTPClient_ReplaysBody(t *testing.T) {
	var bodies []string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b, _ := io.ReadAll(r.Body)
		bodies = append(bodies, string(b))
		if len(bodies) == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	retryClient := NewRetryableHTTPClient(server.Client(), fastRetryConfig(1))
	req, _ := http.NewRequest("POST", server.URL, strings.NewReader("payload"))

	resp, err := retryClient.Do(req)
	if err != nil {
		t.Fatalf("Request failed: %v", err)
	}
	resp.Body.Close()

	if len(bodies) != 2 || bodies[0] != "payload" || bodies[1] != "payload" {
		t.Errorf("Body was not replayed on retry: %q", bodies)
	}
}

func TestRetryableHTTPClient_ContextCancelled(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	cfg := fastRetryConfig(5)
	cfg.InitialDelay = time.Second
	cfg.MaxDelay = time.Second
	retryClient := NewRetryableHTTPClient(server.Client(), cfg)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	req, _ := http.NewRequestWithContext(ctx, "GET", server.URL, nil)

	start := time.Now()
	_, err := retryClient.Do(req)
	if err == nil {
		t.Fatal("Expected context error")
	}
	if time.Since(start) > 500*time.Millisecond {
		t.Errorf("Retry wait was not interrupted by context")
	}
}

func TestRetryableHTTPClient_CalculateDelay(t *testing.T) {
	r := NewRetryableHTTPClient(http.DefaultClient, &RetryConfig{
		InitialDelay:      10 * time.Millisecond,
		MaxDelay:          30 * time.Millisecond,
		BackoffMultiplier: 2.0,
	})

	tests := []struct {
		attempt int
		want    time.Duration
	}{
		{1, 10 * time.Millisecond},
		{2, 20 * time.Millisecond},
		{3, 30 * time.Millisecond}, // 被 MaxDelay 截断
	}
	for _, tt := range tests {
		if got := r.calculateDelay(tt.attempt); got != tt.want {
			t.Errorf("calculateDelay(%d) = %v, want %v", tt.attempt, got, tt.want)
		}
	}
}
