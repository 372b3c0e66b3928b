package tui

import (
	"context"
	"strings"

	"github.com/Zacy-Sokach/RAGChat/internal/session"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
)

// Version 是当前的 RAGChat 版本，由 main 包设置
var Version string

// LogPath 日志文件路径，由 main 包设置，用于错误提示
var LogPath string

const (
	panelWidth    = 30
	minPanelWidth = 80
	inputHeight   = 3
)

type keyMap struct {
	Send       key.Binding
	ToggleMode key.Binding
	Quit       key.Binding
}

var keys = keyMap{
	Send:       key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "send")),
	ToggleMode: key.NewBinding(key.WithKeys("ctrl+t"), key.WithHelp("ctrl+t", "toggle mode")),
	Quit:       key.NewBinding(key.WithKeys("ctrl+c"), key.WithHelp("ctrl+c", "quit")),
}

type Model struct {
	session       *session.Session
	viewport      viewport.Model
	textarea      textarea.Model
	spinner       spinner.Model
	commandParser *CommandParser
	ready         bool
	width         int
	height        int

	// currentResp 正在流式接收的回复，完成后才写入会话
	currentResp string
	streamCh    <-chan string
	doneCh      <-chan session.TurnResult

	pendingUpload string
	notice        string

	ctx    context.Context
	cancel context.CancelFunc
}

// InitialModel 创建 TUI 模型，parent 被取消时所有进行中的请求随之中止
func InitialModel(parent context.Context, sess *session.Session) Model {
	ta := textarea.New()
	ta.Placeholder = "Ask a question, or type /help..."
	ta.Focus()
	ta.CharLimit = 0
	ta.SetWidth(80)
	ta.SetHeight(inputHeight)
	ta.ShowLineNumbers = false
	ta.KeyMap.InsertNewline.SetEnabled(false)

	vp := viewport.New(80, 20)
	// 只保留翻页键，字母键留给输入框
	vp.KeyMap = viewport.KeyMap{
		PageDown: key.NewBinding(key.WithKeys("pgdown")),
		PageUp:   key.NewBinding(key.WithKeys("pgup")),
		Up:       key.NewBinding(key.WithKeys("ctrl+up")),
		Down:     key.NewBinding(key.WithKeys("ctrl+down")),
	}

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = spinnerStyle

	ctx, cancel := context.WithCancel(parent)

	m := Model{
		session:       sess,
		viewport:      vp,
		textarea:      ta,
		spinner:       sp,
		commandParser: NewCommandParser(),
		ctx:           ctx,
		cancel:        cancel,
	}
	m.updateViewport()
	return m
}

// Init 启动时刷新 PDF 列表并检查后端状态
func (m *Model) Init() tea.Cmd {
	return tea.Batch(
		textarea.Blink,
		m.refreshPDFs(false),
		m.checkHealth(false),
	)
}

func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var (
		cmd  tea.Cmd
		cmds []tea.Cmd
	)

	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch {
		case key.Matches(msg, keys.Quit):
			m.cancel()
			return m, tea.Quit
		case key.Matches(msg, keys.ToggleMode):
			mode := m.session.ToggleMode()
			m.notice = "Switched to " + modeLabel(mode) + " mode."
			return m, nil
		case key.Matches(msg, keys.Send):
			return m, m.handleInput(m.textarea.Value())
		}

		if msg.Type == tea.KeyPgUp || msg.Type == tea.KeyPgDown {
			m.viewport, cmd = m.viewport.Update(msg)
			return m, cmd
		}

	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.resize()
		m.ready = true
		m.updateViewport()

	case spinner.TickMsg:
		if !m.busy() {
			return m, nil
		}
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case StreamChunkMsg:
		m.currentResp += msg.Chunk
		m.updateViewport()
		return m, m.checkStream()

	case TurnDoneMsg:
		m.session.FinishSubmit(msg.Result)
		m.currentResp = ""
		m.streamCh, m.doneCh = nil, nil
		m.updateViewport()
		return m, textarea.Blink

	case UploadDoneMsg:
		m.session.FinishUpload(msg.Result)
		m.pendingUpload = ""
		m.updateViewport()
		return m, nil

	case RefreshDoneMsg:
		m.session.FinishRefresh(msg.Result)
		if msg.Requested {
			if msg.Result.Err != nil {
				m.notice = "Could not load PDFs, see the log for details."
				if LogPath != "" {
					m.notice = "Could not load PDFs, see " + LogPath + " for details."
				}
			} else {
				m.notice = pdfCountNotice(len(m.session.PDFs()))
			}
		}
		m.updateViewport()
		return m, nil

	case DeleteDoneMsg:
		m.session.FinishDelete(msg.Result)
		m.updateViewport()
		return m, nil

	case HealthMsg:
		m.session.FinishHealth(msg.Result, msg.Verbose)
		m.updateViewport()
		return m, nil

	case ExportSuccessMsg:
		m.session.AddSystemMessage("Conversation exported to " + msg.FilePath)
		m.updateViewport()
		return m, nil

	case ExportErrorMsg:
		m.session.AddErrorMessage("Export failed: " + msg.Error.Error())
		m.updateViewport()
		return m, nil

	case tea.MouseMsg:
		m.viewport, cmd = m.viewport.Update(msg)
		return m, cmd
	}

	m.textarea, cmd = m.textarea.Update(msg)
	cmds = append(cmds, cmd)

	return m, tea.Batch(cmds...)
}

// handleInput 处理回车提交的内容：斜杠命令或聊天消息。
// 聊天请求进行中时命令仍可执行，聊天消息被忽略并保留在输入框中。
func (m *Model) handleInput(input string) tea.Cmd {
	m.notice = ""
	if cmd := m.commandParser.Parse(input); cmd != nil {
		m.textarea.Reset()
		return m.handleCommand(cmd)
	}
	if m.session.Loading() {
		m.notice = "Waiting for the current response..."
		return nil
	}

	wasBusy := m.busy()
	turn, ok := m.session.BeginSubmit(unescapeMessage(input))
	if !ok {
		// 被拒绝时保留原始输入
		m.textarea.SetValue(input)
		if m.session.APIKey() == "" && strings.TrimSpace(input) != "" {
			m.notice = "Set your API key first: /key <api-key>"
		}
		m.updateViewport()
		return nil
	}

	m.textarea.Reset()
	m.currentResp = ""
	m.updateViewport()
	return tea.Batch(m.startStream(turn), m.spin(wasBusy))
}

// unescapeMessage 以 // 开头的输入按普通消息发送，去掉转义用的第一个 /
func unescapeMessage(input string) string {
	trimmed := strings.TrimLeft(input, " \t\n")
	if strings.HasPrefix(trimmed, "//") {
		return trimmed[1:]
	}
	return input
}

// spin 开始转动加载动画，已在转动时不重复启动
func (m *Model) spin(wasBusy bool) tea.Cmd {
	if wasBusy {
		return nil
	}
	return m.spinner.Tick
}

// startStream 在后台执行本轮请求，片段经 streamCh 逐个送回事件循环
func (m *Model) startStream(turn *session.Turn) tea.Cmd {
	streamCh := make(chan string)
	doneCh := make(chan session.TurnResult, 1)
	m.streamCh, m.doneCh = streamCh, doneCh

	ctx := m.ctx
	go func() {
		res := turn.Run(ctx, func(chunk string) {
			select {
			case streamCh <- chunk:
			case <-ctx.Done():
			}
		})
		doneCh <- res
	}()

	return m.checkStream()
}

func (m *Model) checkStream() tea.Cmd {
	streamCh, doneCh := m.streamCh, m.doneCh
	if doneCh == nil {
		return nil
	}
	return func() tea.Msg {
		select {
		case chunk := <-streamCh:
			return StreamChunkMsg{Chunk: chunk}
		case res := <-doneCh:
			return TurnDoneMsg{Result: res}
		}
	}
}

func (m *Model) busy() bool {
	return m.session.Loading() || m.session.Uploading()
}

func (m *Model) resize() {
	vpWidth := m.width
	if m.showPanel() {
		vpWidth -= panelWidth
	}
	// header + 状态行 + 输入框 + 帮助行
	vpHeight := m.height - inputHeight - 4
	if vpHeight < 3 {
		vpHeight = 3
	}
	m.viewport.Width = vpWidth
	m.viewport.Height = vpHeight
	m.textarea.SetWidth(m.width)
}

func (m *Model) showPanel() bool {
	return m.width >= minPanelWidth
}

func (m *Model) View() string {
	if !m.ready {
		return "Initializing..."
	}
	return m.render()
}
