package utils

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

var sampleEntries = []TranscriptEntry{
	{Role: "user", Content: "Hello"},
	{Role: "assistant", Content: "Hi **there**"},
	{Role: "error", Content: "An error occurred while fetching the response."},
}

func TestRenderTranscriptMarkdown(t *testing.T) {
	at := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	md := RenderTranscriptMarkdown("RAGChat", sampleEntries, at)

	for _, want := range []string{
		"# RAGChat",
		"2026-01-02T03:04:05Z",
		"## You\n\nHello",
		"## AI Assistant\n\nHi **there**",
		"## Error\n\nAn error occurred",
	} {
		if !strings.Contains(md, want) {
			t.Errorf("Markdown missing %q:\n%s", want, md)
		}
	}
}

func TestExportTranscript_Markdown(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out", "chat.md")

	if err := ExportTranscript(path, "RAGChat", sampleEntries); err != nil {
		t.Fatalf("ExportTranscript failed: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("读取导出文件失败: %v", err)
	}
	if !strings.Contains(string(data), "## You") {
		t.Errorf("Unexpected markdown output:\n%s", data)
	}
}

func TestExportTranscript_HTML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "chat.html")

	if err := ExportTranscript(path, "RAGChat", sampleEntries); err != nil {
		t.Fatalf("ExportTranscript failed: %v", err)
	}

	data, _ := os.ReadFile(path)
	out := string(data)
	for _, want := range []string{"<!DOCTYPE html>", "<h2>You</h2>", "<strong>there</strong>"} {
		if !strings.Contains(out, want) {
			t.Errorf("HTML missing %q:\n%s", want, out)
		}
	}
}

func TestExportTranscript_HTMLStripsRawHTML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "chat.html")
	entries := []TranscriptEntry{
		{Role: "user", Content: "<script>alert(1)</script> and <img src=x onerror=alert(2)>"},
		{Role: "assistant", Content: "[click](javascript:alert(3)) or **bold**"},
	}

	if err := ExportTranscript(path, "RAGChat", entries); err != nil {
		t.Fatalf("ExportTranscript failed: %v", err)
	}

	data, _ := os.ReadFile(path)
	out := string(data)
	for _, bad := range []string{"<script", "<img", `href="javascript:`} {
		if strings.Contains(out, bad) {
			t.Errorf("HTML should not contain %q:\n%s", bad, out)
		}
	}
	if !strings.Contains(out, "<strong>bold</strong>") {
		t.Errorf("Markdown should still be rendered:\n%s", out)
	}
}

func TestExportTranscript_EmptyPath(t *testing.T) {
	if err := ExportTranscript("", "RAGChat", sampleEntries); err == nil {
		t.Error("Expected error for empty path")
	}
}
