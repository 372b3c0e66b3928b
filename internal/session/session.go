// Package session 保存一次聊天会话的全部状态：消息记录、PDF 列表与加载标志。
//
// Session 不做并发保护，只能由持有者（TUI 事件循环或单次命令的调用方）修改。
// 网络调用以两段式进行：BeginX 在持有者中修改状态并返回请求对象，
// 请求对象的 Run 可在其他 goroutine 中执行，结果再交回 FinishX 应用。
package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/Zacy-Sokach/RAGChat/internal/api"
)

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleError     Role = "error"
	RoleSystem    Role = "system"
)

type Mode string

const (
	ModeRegular Mode = "regular"
	ModePDF     Mode = "pdf"
)

// Message 消息记录中的一条，记录只追加不修改
type Message struct {
	Role    Role
	Content string
}

// 面向用户的提示文案
const (
	MsgSelectPDF      = "Please select a PDF to chat with."
	MsgChatFailed     = "An error occurred while fetching the response."
	MsgPDFChatFailed  = "An error occurred while chatting with the PDF."
	MsgUploadNeedsKey = "Please enter your API key before uploading a PDF."
	MsgUploadFailed   = "Failed to upload PDF."
	MsgDeleteFailed   = "Failed to delete PDF."
	MsgBackendDown    = "Backend is unreachable."
	DefaultDevMessage = "You are a helpful AI assistant."
	DefaultTopK       = 3
)

var (
	ErrUnknownPDF  = errors.New("unknown PDF")
	ErrInvalidMode = errors.New("invalid chat mode")
)

// Backend 会话依赖的后端调用，*api.Client 实现了该接口
type Backend interface {
	Chat(ctx context.Context, req api.ChatRequest, onChunk func(string)) (string, error)
	ChatWithPDF(ctx context.Context, req api.PDFChatRequest, onChunk func(string)) (string, error)
	UploadPDF(ctx context.Context, apiKey, filename string, content io.Reader) (*api.UploadResponse, error)
	ListPDFs(ctx context.Context) ([]api.PDFRecord, error)
	DeletePDF(ctx context.Context, pdfID string) (*api.DeleteResponse, error)
	Health(ctx context.Context) (*api.HealthResponse, error)
}

// Options 会话参数，零值字段使用默认值
type Options struct {
	DeveloperMessage string
	Model            string
	TopK             int
	// MaxUploadBytes 为 0 时不限制上传大小
	MaxUploadBytes int64
	// RequestTimeout 为 0 时不设置单次请求超时
	RequestTimeout time.Duration
	Logger         *slog.Logger
}

type Session struct {
	backend Backend
	opts    Options
	logger  *slog.Logger

	apiKey        string
	input         string
	loading       bool
	uploading     bool
	mode          Mode
	selectedPDFID string
	health        string

	messages []Message
	pdfs     map[string]api.PDFRecord
}

// New 创建会话，初始为普通模式且消息记录为空
func New(backend Backend, apiKey string, opts Options) *Session {
	if opts.DeveloperMessage == "" {
		opts.DeveloperMessage = DefaultDevMessage
	}
	if opts.TopK <= 0 {
		opts.TopK = DefaultTopK
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Session{
		backend: backend,
		opts:    opts,
		logger:  logger,
		apiKey:  strings.TrimSpace(apiKey),
		mode:    ModeRegular,
		pdfs:    make(map[string]api.PDFRecord),
	}
}

func (s *Session) APIKey() string        { return s.apiKey }
func (s *Session) Input() string         { return s.input }
func (s *Session) Loading() bool         { return s.loading }
func (s *Session) Uploading() bool       { return s.uploading }
func (s *Session) Mode() Mode            { return s.mode }
func (s *Session) SelectedPDFID() string { return s.selectedPDFID }

// Health 返回最近一次健康检查的状态，未检查过为空
func (s *Session) Health() string { return s.health }

// SetAPIKey 替换会话使用的 API Key
func (s *Session) SetAPIKey(key string) {
	s.apiKey = strings.TrimSpace(key)
}

// SetInput 更新输入缓冲区
func (s *Session) SetInput(text string) {
	s.input = text
}

// SetMode 用户手动切换聊天模式
func (s *Session) SetMode(mode Mode) error {
	switch mode {
	case ModeRegular, ModePDF:
		s.mode = mode
		return nil
	default:
		return fmt.Errorf("%w: %q", ErrInvalidMode, mode)
	}
}

// ToggleMode 在普通模式与 PDF 模式之间切换
func (s *Session) ToggleMode() Mode {
	if s.mode == ModePDF {
		s.mode = ModeRegular
	} else {
		s.mode = ModePDF
	}
	return s.mode
}

// Messages 返回消息记录的副本
func (s *Session) Messages() []Message {
	out := make([]Message, len(s.messages))
	copy(out, s.messages)
	return out
}

// AddSystemMessage 追加一条系统消息
func (s *Session) AddSystemMessage(content string) {
	s.append(RoleSystem, content)
}

// AddErrorMessage 追加一条错误消息
func (s *Session) AddErrorMessage(content string) {
	s.append(RoleError, content)
}

func (s *Session) append(role Role, content string) {
	s.messages = append(s.messages, Message{Role: role, Content: content})
}

// PDFs 返回 PDF 列表，按文件名、ID 排序
func (s *Session) PDFs() []api.PDFRecord {
	list := make([]api.PDFRecord, 0, len(s.pdfs))
	for _, rec := range s.pdfs {
		list = append(list, rec)
	}
	sort.Slice(list, func(i, j int) bool {
		if list[i].Filename != list[j].Filename {
			return list[i].Filename < list[j].Filename
		}
		return list[i].PDFID < list[j].PDFID
	})
	return list
}

// PDF 按 ID 查找记录
func (s *Session) PDF(id string) (api.PDFRecord, bool) {
	rec, ok := s.pdfs[id]
	return rec, ok
}

// SelectedPDF 返回当前选中的 PDF 记录；选中的 ID 不在列表中时 ok 为 false
func (s *Session) SelectedPDF() (api.PDFRecord, bool) {
	if s.selectedPDFID == "" {
		return api.PDFRecord{}, false
	}
	return s.PDF(s.selectedPDFID)
}

// ResolvePDF 将用户输入解析为 PDF 记录，支持 PDFs() 中的序号（从 1 开始）或 ID
func (s *Session) ResolvePDF(ref string) (api.PDFRecord, bool) {
	ref = strings.TrimSpace(ref)
	if rec, ok := s.pdfs[ref]; ok {
		return rec, true
	}
	if n, err := strconv.Atoi(ref); err == nil {
		list := s.PDFs()
		if n >= 1 && n <= len(list) {
			return list[n-1], true
		}
	}
	return api.PDFRecord{}, false
}

// SelectPDF 选中一个已知的 PDF，不改变聊天模式
func (s *Session) SelectPDF(id string) error {
	if _, ok := s.pdfs[id]; !ok {
		return fmt.Errorf("%w: %s", ErrUnknownPDF, id)
	}
	s.selectedPDFID = id
	return nil
}

// errorText 将错误转换为消息内容：优先使用后端 detail，否则使用通用文案
func errorText(err error, fallback string) string {
	if detail := api.DetailOf(err); detail != "" {
		return detail
	}
	return fallback
}

func withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d > 0 {
		return context.WithTimeout(ctx, d)
	}
	return context.WithCancel(ctx)
}
