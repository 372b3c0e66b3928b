package tui

import (
	"fmt"
	"strings"

	"github.com/Zacy-Sokach/RAGChat/internal/session"
	"github.com/Zacy-Sokach/RAGChat/internal/utils"
	"github.com/charmbracelet/lipgloss"
)

var (
	headerStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("15")).Background(lipgloss.Color("62")).Padding(0, 1)
	mutedStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	noticeStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("11"))
	spinnerStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("205"))
	panelStyle   = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("8")).
			Padding(0, 1)
	selectedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("10")).Bold(true)

	roleStyles = map[session.Role]lipgloss.Style{
		session.RoleUser:      lipgloss.NewStyle().Foreground(lipgloss.Color("12")).Bold(true),
		session.RoleAssistant: lipgloss.NewStyle().Foreground(lipgloss.Color("10")).Bold(true),
		session.RoleError:     lipgloss.NewStyle().Foreground(lipgloss.Color("9")).Bold(true),
		session.RoleSystem:    lipgloss.NewStyle().Foreground(lipgloss.Color("13")).Bold(true),
	}
	roleLabels = map[session.Role]string{
		session.RoleUser:      "You",
		session.RoleAssistant: "AI Assistant",
		session.RoleError:     "Error",
		session.RoleSystem:    "System",
	}
)

const welcomeText = "Welcome to RAGChat. Chat with the assistant, or upload a PDF with /upload and ask questions about it. Type /help for commands."

func (m *Model) render() string {
	body := m.viewport.View()
	if m.showPanel() {
		body = lipgloss.JoinHorizontal(lipgloss.Top, body, m.pdfPanel())
	}

	return strings.Join([]string{
		m.headerView(),
		body,
		m.statusView(),
		m.textarea.View(),
		m.helpView(),
	}, "\n")
}

func (m *Model) updateViewport() {
	m.viewport.SetContent(m.formatMessages())
	m.viewport.GotoBottom()
}

// formatMessages 渲染消息记录，流式接收中的回复附在末尾
func (m *Model) formatMessages() string {
	messages := m.session.Messages()
	if len(messages) == 0 && !m.session.Loading() {
		return mutedStyle.Render(welcomeText)
	}

	var sb strings.Builder
	// 预分配容量（估算每条消息平均200字符）
	sb.Grow(len(messages)*200 + len(m.currentResp))

	width := m.viewport.Width - 2
	if width < 20 {
		width = 20
	}
	wrap := lipgloss.NewStyle().Width(width)

	for _, msg := range messages {
		writeMessage(&sb, msg.Role, wrap.Render(msg.Content))
	}

	if m.session.Loading() && m.currentResp != "" {
		writeMessage(&sb, session.RoleAssistant, wrap.Render(m.currentResp+"█"))
	}
	return strings.TrimRight(sb.String(), "\n")
}

func writeMessage(sb *strings.Builder, role session.Role, content string) {
	style, ok := roleStyles[role]
	if !ok {
		style = mutedStyle
	}
	label, ok := roleLabels[role]
	if !ok {
		label = string(role)
	}
	sb.WriteString(style.Render(label + ":"))
	sb.WriteString("\n")
	sb.WriteString(content)
	sb.WriteString("\n\n")
}

func (m *Model) headerView() string {
	mode := "Mode: " + modeLabel(m.session.Mode())

	pdf := "PDF: none"
	if id := m.session.SelectedPDFID(); id != "" {
		if rec, ok := m.session.SelectedPDF(); ok {
			pdf = "PDF: " + rec.Filename
		} else {
			pdf = "PDF: " + id
		}
	}

	apiKey := "Key: not set"
	if k := m.session.APIKey(); k != "" {
		apiKey = "Key: " + utils.MaskAPIKey(k)
	}

	health := m.session.Health()
	if health == "" {
		health = "?"
	}

	parts := []string{"RAGChat", mode, pdf, apiKey, "Backend: " + health}
	return headerStyle.Width(m.width).Render(strings.Join(parts, " │ "))
}

// pdfPanel 右侧 PDF 列表，序号与 /select、/delete 使用的序号一致
func (m *Model) pdfPanel() string {
	var sb strings.Builder
	sb.WriteString(lipgloss.NewStyle().Bold(true).Render("Uploaded PDFs"))
	sb.WriteString("\n")

	pdfs := m.session.PDFs()
	if len(pdfs) == 0 {
		sb.WriteString(mutedStyle.Render("none yet"))
	}

	inner := panelWidth - 4
	for i, rec := range pdfs {
		line := fmt.Sprintf("%d. %s", i+1, truncate(rec.Filename, inner-4))
		meta := fmt.Sprintf("   %d chunks", rec.ChunksCount)
		if rec.PDFID == m.session.SelectedPDFID() {
			line = selectedStyle.Render(line + " ●")
		}
		sb.WriteString("\n")
		sb.WriteString(line)
		sb.WriteString("\n")
		sb.WriteString(mutedStyle.Render(meta))
	}

	return panelStyle.
		Width(inner).
		Height(m.viewport.Height - 2).
		Render(sb.String())
}

func (m *Model) statusView() string {
	switch {
	case m.session.Loading():
		return m.spinner.View() + " AI is thinking..."
	case m.session.Uploading():
		return m.spinner.View() + " Uploading PDF..."
	case m.notice != "":
		return noticeStyle.Render(m.notice)
	default:
		return ""
	}
}

func (m *Model) helpView() string {
	help := fmt.Sprintf("%s: %s • %s: %s • /help: commands • %s: %s",
		keys.Send.Help().Key, keys.Send.Help().Desc,
		keys.ToggleMode.Help().Key, keys.ToggleMode.Help().Desc,
		keys.Quit.Help().Key, keys.Quit.Help().Desc)
	if m.session.Loading() {
		help = "waiting for the response • ctrl+c: quit"
	}
	return mutedStyle.Render(help)
}

func truncate(s string, max int) string {
	r := []rune(s)
	if max <= 1 || len(r) <= max {
		return s
	}
	return string(r[:max-1]) + "…"
}
