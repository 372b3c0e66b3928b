package session

import (
	"context"
	"io"
	"sync"

	"github.com/Zacy-Sokach/RAGChat/internal/api"
)

// fakeBackend 记录调用并返回预设结果
type fakeBackend struct {
	mu sync.Mutex

	chatReply string
	chatErr   error
	chunks    []string

	uploadResp *api.UploadResponse
	uploadErr  error
	uploaded   []byte

	pdfs    []api.PDFRecord
	listErr error

	deleteErr error

	healthStatus string
	healthErr    error

	chatReqs    []api.ChatRequest
	pdfChatReqs []api.PDFChatRequest
	calls       []string

	// onCall 在每次调用时执行，用于检查调用期间的会话状态
	onCall func(name string)
}

func (f *fakeBackend) record(name string) {
	f.mu.Lock()
	f.calls = append(f.calls, name)
	hook := f.onCall
	f.mu.Unlock()
	if hook != nil {
		hook(name)
	}
}

func (f *fakeBackend) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func (f *fakeBackend) stream(onChunk func(string)) {
	if onChunk == nil {
		return
	}
	for _, c := range f.chunks {
		onChunk(c)
	}
}

func (f *fakeBackend) Chat(ctx context.Context, req api.ChatRequest, onChunk func(string)) (string, error) {
	f.mu.Lock()
	f.chatReqs = append(f.chatReqs, req)
	f.mu.Unlock()
	f.record("chat")
	if f.chatErr != nil {
		return "", f.chatErr
	}
	f.stream(onChunk)
	return f.chatReply, nil
}

func (f *fakeBackend) ChatWithPDF(ctx context.Context, req api.PDFChatRequest, onChunk func(string)) (string, error) {
	f.mu.Lock()
	f.pdfChatReqs = append(f.pdfChatReqs, req)
	f.mu.Unlock()
	f.record("chat-with-pdf")
	if f.chatErr != nil {
		return "", f.chatErr
	}
	f.stream(onChunk)
	return f.chatReply, nil
}

func (f *fakeBackend) UploadPDF(ctx context.Context, apiKey, filename string, content io.Reader) (*api.UploadResponse, error) {
	f.record("upload")
	data, err := io.ReadAll(content)
	if err != nil {
		return nil, err
	}
	f.mu.Lock()
	f.uploaded = data
	f.mu.Unlock()
	if f.uploadErr != nil {
		return nil, f.uploadErr
	}
	return f.uploadResp, nil
}

func (f *fakeBackend) ListPDFs(ctx context.Context) ([]api.PDFRecord, error) {
	f.record("list")
	if f.listErr != nil {
		return nil, f.listErr
	}
	return append([]api.PDFRecord(nil), f.pdfs...), nil
}

func (f *fakeBackend) DeletePDF(ctx context.Context, pdfID string) (*api.DeleteResponse, error) {
	f.record("delete:" + pdfID)
	if f.deleteErr != nil {
		return nil, f.deleteErr
	}
	return &api.DeleteResponse{Message: "deleted"}, nil
}

func (f *fakeBackend) Health(ctx context.Context) (*api.HealthResponse, error) {
	f.record("health")
	if f.healthErr != nil {
		return nil, f.healthErr
	}
	return &api.HealthResponse{Status: f.healthStatus}, nil
}
