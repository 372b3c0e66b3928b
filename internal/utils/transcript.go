package utils

import (
	"fmt"
	"html"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/russross/blackfriday/v2"
)

// TranscriptEntry 导出时的一条消息
type TranscriptEntry struct {
	Role    string
	Content string
}

var roleTitles = map[string]string{
	"user":      "You",
	"assistant": "AI Assistant",
	"error":     "Error",
	"system":    "System",
}

// RenderTranscriptMarkdown 将消息记录渲染为 Markdown
func RenderTranscriptMarkdown(title string, entries []TranscriptEntry, at time.Time) string {
	var sb strings.Builder
	sb.Grow(len(entries) * 200)

	fmt.Fprintf(&sb, "# %s\n\n", title)
	fmt.Fprintf(&sb, "_Exported %s_\n\n", at.Format(time.RFC3339))

	for _, e := range entries {
		heading, ok := roleTitles[e.Role]
		if !ok {
			heading = e.Role
		}
		fmt.Fprintf(&sb, "## %s\n\n", heading)
		sb.WriteString(strings.TrimRight(e.Content, "\n"))
		sb.WriteString("\n\n")
	}
	return sb.String()
}

// ExportTranscript 导出消息记录。扩展名为 .html/.htm 时经 blackfriday 转为 HTML，否则写 Markdown。
func ExportTranscript(path, title string, entries []TranscriptEntry) error {
	if path == "" {
		return fmt.Errorf("导出路径为空")
	}

	md := RenderTranscriptMarkdown(title, entries, time.Now())

	var data []byte
	switch strings.ToLower(filepath.Ext(path)) {
	case ".html", ".htm":
		// 消息内容来自用户和后端，原始 HTML 一律丢弃
		renderer := blackfriday.NewHTMLRenderer(blackfriday.HTMLRendererParameters{
			Flags: blackfriday.CommonHTMLFlags | blackfriday.SkipHTML | blackfriday.Safelink,
		})
		body := blackfriday.Run([]byte(md), blackfriday.WithRenderer(renderer))
		data = []byte(fmt.Sprintf("<!DOCTYPE html>\n<html>\n<head>\n<meta charset=\"utf-8\">\n<title>%s</title>\n</head>\n<body>\n%s</body>\n</html>\n",
			html.EscapeString(title), body))
	default:
		data = []byte(md)
	}

	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("创建导出目录失败: %w", err)
		}
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("写入导出文件失败: %w", err)
	}
	return nil
}
