package tui

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/Zacy-Sokach/RAGChat/internal/session"
	"github.com/Zacy-Sokach/RAGChat/internal/utils"
	tea "github.com/charmbracelet/bubbletea"
)

// handleCommand 处理斜杠命令
func (m *Model) handleCommand(cmd *Command) tea.Cmd {
	slog.Debug("tui command", "type", FormatCommandType(cmd.Type), "name", cmd.Name)
	switch cmd.Type {
	case CommandTypeKey:
		return m.handleKeyCommand(cmd.Arg)
	case CommandTypeMode:
		return m.handleModeCommand(cmd.Arg)
	case CommandTypeUpload:
		return m.handleUploadCommand(cmd.Arg)
	case CommandTypePDFs:
		return m.refreshPDFs(true)
	case CommandTypeSelect:
		return m.handleSelectCommand(cmd.Arg)
	case CommandTypeDelete:
		return m.handleDeleteCommand(cmd.Arg)
	case CommandTypeExport:
		return m.handleExportCommand(cmd.Arg)
	case CommandTypeHealth:
		return m.checkHealth(true)
	case CommandTypeHelp:
		m.session.AddSystemMessage(helpText)
	default:
		m.session.AddSystemMessage(fmt.Sprintf("Unknown command %q. Type /help for available commands, or start with // to send it as a message.", "/"+cmd.Name))
	}
	m.updateViewport()
	return nil
}

func (m *Model) handleKeyCommand(arg string) tea.Cmd {
	if arg == "" {
		m.notice = "Usage: /key <api-key>"
		return nil
	}
	m.session.SetAPIKey(arg)
	m.notice = "API key set (" + utils.MaskAPIKey(m.session.APIKey()) + ")."
	return nil
}

func (m *Model) handleModeCommand(arg string) tea.Cmd {
	if err := m.session.SetMode(session.Mode(strings.ToLower(arg))); err != nil {
		m.notice = "Usage: /mode regular|pdf"
		return nil
	}
	m.notice = "Switched to " + modeLabel(m.session.Mode()) + " mode."
	return nil
}

func (m *Model) handleUploadCommand(arg string) tea.Cmd {
	if arg == "" {
		m.notice = "Usage: /upload <path.pdf>"
		return nil
	}
	if m.session.Uploading() {
		m.notice = "An upload is already in progress."
		return nil
	}

	wasBusy := m.busy()
	upload, ok := m.session.BeginUpload(arg)
	if !ok {
		m.updateViewport()
		return nil
	}
	m.pendingUpload = arg

	ctx := m.ctx
	return tea.Batch(
		func() tea.Msg {
			return UploadDoneMsg{Result: upload.Run(ctx)}
		},
		m.spin(wasBusy),
	)
}

func (m *Model) handleSelectCommand(arg string) tea.Cmd {
	rec, ok := m.session.ResolvePDF(arg)
	if !ok {
		m.notice = fmt.Sprintf("No PDF matches %q. Use /pdfs to refresh the list.", arg)
		return nil
	}
	// ResolvePDF 只返回已知记录，SelectPDF 不会失败
	_ = m.session.SelectPDF(rec.PDFID)
	m.notice = "Selected " + rec.Filename + "."
	return nil
}

func (m *Model) handleDeleteCommand(arg string) tea.Cmd {
	if arg == "" {
		m.notice = "Usage: /delete <n|id>"
		return nil
	}
	pdfID := arg
	if rec, ok := m.session.ResolvePDF(arg); ok {
		pdfID = rec.PDFID
	}

	deletion := m.session.BeginDelete(pdfID)
	ctx := m.ctx
	return func() tea.Msg {
		return DeleteDoneMsg{Result: deletion.Run(ctx)}
	}
}

func (m *Model) handleExportCommand(arg string) tea.Cmd {
	if arg == "" {
		m.notice = "Usage: /export <file.md|file.html>"
		return nil
	}
	path := utils.ExpandPath(arg)

	messages := m.session.Messages()
	entries := make([]utils.TranscriptEntry, len(messages))
	for i, msg := range messages {
		entries[i] = utils.TranscriptEntry{Role: string(msg.Role), Content: msg.Content}
	}

	return func() tea.Msg {
		if err := utils.ExportTranscript(path, "RAGChat conversation", entries); err != nil {
			return ExportErrorMsg{Error: err}
		}
		return ExportSuccessMsg{FilePath: path}
	}
}

func (m *Model) refreshPDFs(requested bool) tea.Cmd {
	refresh := m.session.BeginRefresh()
	ctx := m.ctx
	return func() tea.Msg {
		return RefreshDoneMsg{Result: refresh.Run(ctx), Requested: requested}
	}
}

func (m *Model) checkHealth(verbose bool) tea.Cmd {
	check := m.session.BeginHealth()
	ctx := m.ctx
	return func() tea.Msg {
		return HealthMsg{Result: check.Run(ctx), Verbose: verbose}
	}
}

func modeLabel(mode session.Mode) string {
	if mode == session.ModePDF {
		return "PDF"
	}
	return "regular"
}

func pdfCountNotice(n int) string {
	if n == 1 {
		return "1 PDF available."
	}
	return fmt.Sprintf("%d PDFs available.", n)
}
