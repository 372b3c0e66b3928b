package api

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/Zacy-Sokach/RAGChat/internal/utils"
	"github.com/google/uuid"
)

const (
	DefaultBaseURL = "http://localhost:8000"

	requestIDHeader = "X-Request-ID"
)

// APIError 表示 API 请求错误，包含状态码和后端返回的 detail
type APIError struct {
	StatusCode int
	Detail     string
	Body       string
}

func (e *APIError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("API请求失败 (状态码: %d): %s", e.StatusCode, e.Detail)
	}
	return fmt.Sprintf("API请求失败 (状态码: %d): %s", e.StatusCode, e.Body)
}

// DetailOf 返回错误中携带的后端 detail，没有则返回空字符串
func DetailOf(err error) string {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Detail
	}
	return ""
}

// 全局共享的HTTP客户端，实现连接池化
var (
	sharedHTTPClient *http.Client
	httpClientOnce   sync.Once
)

// getSharedHTTPClient 返回共享的HTTP客户端实例。
// 不设置整体超时：流式响应可能持续很久，超时由调用方的 context 控制。
func getSharedHTTPClient() *http.Client {
	httpClientOnce.Do(func() {
		sharedHTTPClient = &http.Client{
			Transport: &http.Transport{
				Proxy:               http.ProxyFromEnvironment,
				MaxIdleConns:        20,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
				TLSHandshakeTimeout: 10 * time.Second,
			},
		}
	})
	return sharedHTTPClient
}

// Client 后端 API 客户端
type Client struct {
	baseURL     string
	doer        utils.Doer
	listDoer    utils.Doer
	listRetries int
	logger      *slog.Logger
}

type Option func(*Client)

// WithDoer 替换底层 HTTP 客户端（测试或自定义传输）
func WithDoer(d utils.Doer) Option {
	return func(c *Client) {
		c.doer = d
	}
}

// WithListRetry 为幂等的 PDF 列表请求启用重试，maxRetries 为 0 时不重试
func WithListRetry(maxRetries int) Option {
	return func(c *Client) {
		c.listRetries = maxRetries
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.logger = l
		}
	}
}

// NewClient 创建新的后端客户端
// baseURL: 后端地址，为空时使用 DefaultBaseURL
func NewClient(baseURL string, opts ...Option) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		doer:    getSharedHTTPClient(),
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}

	c.listDoer = c.doer
	if c.listRetries > 0 {
		cfg := utils.DefaultRetryConfig()
		cfg.MaxRetries = c.listRetries
		c.listDoer = utils.NewRetryableHTTPClient(c.doer, cfg)
	}
	return c
}

// BaseURL 返回后端地址
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Chat 发送普通聊天请求，流式读取纯文本响应。
// onChunk 可为 nil；返回完整的响应文本。
func (c *Client) Chat(ctx context.Context, req ChatRequest, onChunk func(string)) (string, error) {
	return c.postStream(ctx, "/api/chat", req, onChunk)
}

// ChatWithPDF 基于已上传的 PDF 进行检索增强聊天
func (c *Client) ChatWithPDF(ctx context.Context, req PDFChatRequest, onChunk func(string)) (string, error) {
	return c.postStream(ctx, "/api/chat-with-pdf", req, onChunk)
}

// UploadPDF 以 multipart 表单上传 PDF（字段 file 与 api_key）
func (c *Client) UploadPDF(ctx context.Context, apiKey, filename string, content io.Reader) (*UploadResponse, error) {
	var body bytes.Buffer
	writer := multipart.NewWriter(&body)

	part, err := writer.CreateFormFile("file", filename)
	if err != nil {
		return nil, fmt.Errorf("创建表单失败: %w", err)
	}
	if _, err := io.Copy(part, content); err != nil {
		return nil, fmt.Errorf("读取上传文件失败: %w", err)
	}
	if err := writer.WriteField("api_key", apiKey); err != nil {
		return nil, fmt.Errorf("创建表单失败: %w", err)
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("创建表单失败: %w", err)
	}

	resp, err := c.do(ctx, c.doer, http.MethodPost, "/api/upload-pdf", &body, writer.FormDataContentType())
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var uploadResp UploadResponse
	if err := json.NewDecoder(resp.Body).Decode(&uploadResp); err != nil {
		return nil, fmt.Errorf("解析响应失败: %w", err)
	}
	return &uploadResp, nil
}

// ListPDFs 获取后端当前已索引的 PDF 列表
func (c *Client) ListPDFs(ctx context.Context) ([]PDFRecord, error) {
	resp, err := c.do(ctx, c.listDoer, http.MethodGet, "/api/pdfs", nil, "")
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var listResp PDFListResponse
	if err := json.NewDecoder(resp.Body).Decode(&listResp); err != nil {
		return nil, fmt.Errorf("解析响应失败: %w", err)
	}
	if listResp.PDFs == nil {
		listResp.PDFs = []PDFRecord{}
	}
	return listResp.PDFs, nil
}

// DeletePDF 删除已上传的 PDF
func (c *Client) DeletePDF(ctx context.Context, pdfID string) (*DeleteResponse, error) {
	resp, err := c.do(ctx, c.doer, http.MethodDelete, "/api/pdf/"+url.PathEscape(pdfID), nil, "")
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	// 2xx 即视为成功，响应体可能为空或不是 JSON
	var delResp DeleteResponse
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if err := json.Unmarshal(body, &delResp); err != nil {
		delResp.Message = strings.TrimSpace(string(body))
	}
	return &delResp, nil
}

// Health 检查后端健康状态
func (c *Client) Health(ctx context.Context) (*HealthResponse, error) {
	resp, err := c.do(ctx, c.doer, http.MethodGet, "/api/health", nil, "")
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var health HealthResponse
	if err := json.NewDecoder(resp.Body).Decode(&health); err != nil {
		return nil, fmt.Errorf("解析响应失败: %w", err)
	}
	return &health, nil
}

func (c *Client) postStream(ctx context.Context, path string, payload interface{}, onChunk func(string)) (string, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("序列化请求失败: %w", err)
	}

	resp, err := c.do(ctx, c.doer, http.MethodPost, path, bytes.NewReader(body), "application/json")
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	return readTextStream(resp.Body, onChunk)
}

// readTextStream 按到达顺序读取纯文本流。
// 回调只收到完整的 UTF-8 字符，跨块被截断的多字节字符留到下一块。
func readTextStream(r io.Reader, onChunk func(string)) (string, error) {
	var full strings.Builder
	// 预分配容量，减少内存重分配
	full.Grow(4096)

	reader := bufio.NewReaderSize(r, 4096)
	buf := make([]byte, 4096)
	var pending []byte

	for {
		n, err := reader.Read(buf)
		if n > 0 {
			pending = append(pending, buf[:n]...)
			cut := completeUTF8Prefix(pending)
			if cut > 0 {
				chunk := string(pending[:cut])
				full.WriteString(chunk)
				if onChunk != nil {
					onChunk(chunk)
				}
				pending = append(pending[:0], pending[cut:]...)
			}
		}
		if err != nil {
			if err == io.EOF {
				break
			}
			return full.String(), fmt.Errorf("reading stream response failed: %w", err)
		}
	}

	if len(pending) > 0 {
		chunk := string(pending)
		full.WriteString(chunk)
		if onChunk != nil {
			onChunk(chunk)
		}
	}

	return full.String(), nil
}

// completeUTF8Prefix 返回 b 中以完整字符结尾的最长前缀长度
func completeUTF8Prefix(b []byte) int {
	n := len(b)
	for i := n - 1; i >= 0 && i >= n-utf8.UTFMax; i-- {
		if utf8.RuneStart(b[i]) {
			if !utf8.FullRune(b[i:]) {
				return i
			}
			return n
		}
	}
	return n
}

// do 发送请求并检查状态码，非 2xx 时返回 *APIError（响应体已关闭）
func (c *Client) do(ctx context.Context, doer utils.Doer, method, path string, body io.Reader, contentType string) (*http.Response, error) {
	httpReq, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("创建请求失败: %w", err)
	}

	requestID := uuid.NewString()
	httpReq.Header.Set(requestIDHeader, requestID)
	if contentType != "" {
		httpReq.Header.Set("Content-Type", contentType)
	}

	start := time.Now()
	resp, err := doer.Do(httpReq)
	if err != nil {
		c.logger.Warn("backend request failed",
			"method", method, "path", path, "request_id", requestID,
			"duration", time.Since(start), "error", err)
		return nil, fmt.Errorf("请求失败: %w", err)
	}

	c.logger.Debug("backend request",
		"method", method, "path", path, "request_id", requestID,
		"status", resp.StatusCode, "duration", time.Since(start))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		bodyBytes, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
		resp.Body.Close()
		return nil, &APIError{
			StatusCode: resp.StatusCode,
			Detail:     parseDetail(bodyBytes),
			Body:       string(bodyBytes),
		}
	}

	return resp, nil
}
