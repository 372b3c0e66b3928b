package tui

import "github.com/Zacy-Sokach/RAGChat/internal/session"

// Message types for tea.Model

// StreamChunkMsg 流式响应的一个片段
type StreamChunkMsg struct {
	Chunk string
}

// TurnDoneMsg 一轮聊天结束
type TurnDoneMsg struct {
	Result session.TurnResult
}

type UploadDoneMsg struct {
	Result session.UploadResult
}

type RefreshDoneMsg struct {
	Result session.RefreshResult
	// Requested 由 /pdfs 触发时为 true
	Requested bool
}

type DeleteDoneMsg struct {
	Result session.DeletionResult
}

type HealthMsg struct {
	Result  session.HealthResult
	Verbose bool
}

type ExportSuccessMsg struct {
	FilePath string
}

type ExportErrorMsg struct {
	Error error
}
