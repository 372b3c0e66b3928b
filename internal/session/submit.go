package session

import (
	"context"
	"strings"
	"time"

	"github.com/Zacy-Sokach/RAGChat/internal/api"
)

// Turn 一次已发出的聊天请求，Run 只读取自身字段，可在事件循环外执行
type Turn struct {
	backend Backend
	timeout time.Duration
	pdf     bool
	chat    api.ChatRequest
	pdfChat api.PDFChatRequest
}

// TurnResult 聊天请求的结果
type TurnResult struct {
	Reply string
	Err   error
	pdf   bool
}

// UserMessage 返回本轮用户输入
func (t *Turn) UserMessage() string {
	if t.pdf {
		return t.pdfChat.UserMessage
	}
	return t.chat.UserMessage
}

// Run 发出请求，onChunk 可为 nil
func (t *Turn) Run(ctx context.Context, onChunk func(string)) TurnResult {
	ctx, cancel := withTimeout(ctx, t.timeout)
	defer cancel()

	var (
		reply string
		err   error
	)
	if t.pdf {
		reply, err = t.backend.ChatWithPDF(ctx, t.pdfChat, onChunk)
	} else {
		reply, err = t.backend.Chat(ctx, t.chat, onChunk)
	}
	return TurnResult{Reply: reply, Err: err, pdf: t.pdf}
}

// BeginSubmit 校验输入并开始一轮聊天。
// API Key 或输入为空、或已有请求在进行时不做任何事；
// PDF 模式下未选择 PDF 时追加错误消息并保留输入。
// 返回 false 表示不会发出请求。
func (s *Session) BeginSubmit(text string) (*Turn, bool) {
	if s.loading {
		return nil, false
	}
	s.input = text
	if s.apiKey == "" || strings.TrimSpace(text) == "" {
		return nil, false
	}
	if s.mode == ModePDF && s.selectedPDFID == "" {
		s.append(RoleError, MsgSelectPDF)
		return nil, false
	}

	s.append(RoleUser, text)
	s.input = ""
	s.loading = true

	turn := &Turn{
		backend: s.backend,
		timeout: s.opts.RequestTimeout,
		pdf:     s.mode == ModePDF,
	}
	if turn.pdf {
		turn.pdfChat = api.PDFChatRequest{
			UserMessage: text,
			PDFID:       s.selectedPDFID,
			Model:       s.opts.Model,
			APIKey:      s.apiKey,
			K:           s.opts.TopK,
		}
	} else {
		turn.chat = api.ChatRequest{
			DeveloperMessage: s.opts.DeveloperMessage,
			UserMessage:      text,
			Model:            s.opts.Model,
			APIKey:           s.apiKey,
		}
	}
	return turn, true
}

// FinishSubmit 应用聊天结果并结束加载状态
func (s *Session) FinishSubmit(res TurnResult) {
	defer func() { s.loading = false }()

	if res.Err != nil {
		fallback := MsgChatFailed
		if res.pdf {
			fallback = MsgPDFChatFailed
		}
		s.logger.Warn("chat request failed", "pdf_mode", res.pdf, "error", res.Err)
		s.append(RoleError, errorText(res.Err, fallback))
		return
	}
	s.append(RoleAssistant, res.Reply)
}

// Submit 同步完成一轮聊天，返回本次追加的最后一条消息；没有追加消息时返回 nil
func (s *Session) Submit(ctx context.Context, text string, onChunk func(string)) *Message {
	before := len(s.messages)
	turn, ok := s.BeginSubmit(text)
	if ok {
		defer func() { s.loading = false }()
		s.FinishSubmit(turn.Run(ctx, onChunk))
	}
	if len(s.messages) == before {
		return nil
	}
	last := s.messages[len(s.messages)-1]
	return &last
}
