package api

import (
	"encoding/json"
)

// ChatRequest 普通聊天请求 (POST /api/chat)
type ChatRequest struct {
	DeveloperMessage string `json:"developer_message"`
	UserMessage      string `json:"user_message"`
	Model            string `json:"model,omitempty"`
	APIKey           string `json:"api_key"`
}

// PDFChatRequest 基于 PDF 的检索增强聊天请求 (POST /api/chat-with-pdf)
type PDFChatRequest struct {
	UserMessage string `json:"user_message"`
	PDFID       string `json:"pdf_id"`
	Model       string `json:"model,omitempty"`
	APIKey      string `json:"api_key"`
	K           int    `json:"k"`
}

type UploadResponse struct {
	PDFID         string `json:"pdf_id"`
	Filename      string `json:"filename"`
	ChunksCreated int    `json:"chunks_created"`
	Message       string `json:"message,omitempty"`
}

// PDFRecord 后端已索引的 PDF
type PDFRecord struct {
	PDFID       string `json:"pdf_id"`
	Filename    string `json:"filename"`
	ChunksCount int    `json:"chunks_count"`
}

type PDFListResponse struct {
	PDFs []PDFRecord `json:"pdfs"`
}

type DeleteResponse struct {
	Message string `json:"message"`
}

type HealthResponse struct {
	Status string `json:"status"`
}

// errorBody 后端错误响应，detail 可能是字符串，也可能是校验错误数组
type errorBody struct {
	Detail json.RawMessage `json:"detail"`
}

type validationItem struct {
	Msg string `json:"msg"`
}

// parseDetail 从错误响应体中提取 detail
func parseDetail(body []byte) string {
	var eb errorBody
	if err := json.Unmarshal(body, &eb); err != nil || len(eb.Detail) == 0 {
		return ""
	}

	var s string
	if err := json.Unmarshal(eb.Detail, &s); err == nil {
		return s
	}

	var items []validationItem
	if err := json.Unmarshal(eb.Detail, &items); err == nil && len(items) > 0 {
		return items[0].Msg
	}

	return ""
}
