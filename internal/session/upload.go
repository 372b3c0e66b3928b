package session

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/Zacy-Sokach/RAGChat/internal/api"
	"github.com/Zacy-Sokach/RAGChat/internal/utils"
)

// Upload 一次待执行的 PDF 上传
type Upload struct {
	backend  Backend
	logger   *slog.Logger
	timeout  time.Duration
	apiKey   string
	path     string
	maxBytes int64
}

// UploadResult 上传结果；上传成功后附带刷新得到的 PDF 列表
type UploadResult struct {
	Path     string
	Info     *utils.PDFInfo
	Response *api.UploadResponse
	Err      error
	// CheckErr 本地预检失败，此时没有发出请求
	CheckErr error
	PDFs     []api.PDFRecord
	ListErr  error
}

// Run 本地预检后上传文件，成功后刷新 PDF 列表
func (u *Upload) Run(ctx context.Context) UploadResult {
	res := UploadResult{Path: u.path}

	info, err := utils.CheckPDF(u.path, u.maxBytes)
	if err != nil {
		u.logger.Warn("upload pre-check failed", "path", u.path, "error", err)
		res.CheckErr = err
		return res
	}
	res.Info = info

	f, err := os.Open(u.path)
	if err != nil {
		res.CheckErr = fmt.Errorf("打开文件失败: %w", err)
		return res
	}
	defer f.Close()

	uploadCtx, cancel := withTimeout(ctx, u.timeout)
	resp, err := u.backend.UploadPDF(uploadCtx, u.apiKey, info.Filename, f)
	cancel()
	if err != nil {
		res.Err = err
		return res
	}
	res.Response = resp
	u.logger.Info("pdf uploaded", "pdf_id", resp.PDFID, "chunks", resp.ChunksCreated, "pages", info.Pages)

	listCtx, cancel := withTimeout(ctx, u.timeout)
	defer cancel()
	res.PDFs, res.ListErr = u.backend.ListPDFs(listCtx)
	return res
}

// BeginUpload 开始上传。缺少 API Key 时追加错误消息；已有上传在进行时不做任何事
func (s *Session) BeginUpload(path string) (*Upload, bool) {
	if s.uploading {
		return nil, false
	}
	if s.apiKey == "" {
		s.append(RoleError, MsgUploadNeedsKey)
		return nil, false
	}

	s.uploading = true
	return &Upload{
		backend:  s.backend,
		logger:   s.logger,
		timeout:  s.opts.RequestTimeout,
		apiKey:   s.apiKey,
		path:     utils.ExpandPath(path),
		maxBytes: s.opts.MaxUploadBytes,
	}, true
}

// FinishUpload 应用上传结果：成功时选中新 PDF 并切换到 PDF 模式
func (s *Session) FinishUpload(res UploadResult) {
	defer func() { s.uploading = false }()

	switch {
	case res.CheckErr != nil:
		s.append(RoleError, fmt.Sprintf("Cannot upload %q: %v", displayName(res), res.CheckErr))
	case res.Err != nil:
		s.logger.Warn("upload failed", "path", res.Path, "error", res.Err)
		s.append(RoleError, errorText(res.Err, MsgUploadFailed))
	default:
		resp := res.Response
		filename := resp.Filename
		if filename == "" && res.Info != nil {
			filename = res.Info.Filename
		}
		s.append(RoleSystem, fmt.Sprintf("PDF %q uploaded successfully! Created %d chunks. You can now chat with it.", filename, resp.ChunksCreated))
		s.applyListing(res.PDFs, res.ListErr)
		s.selectedPDFID = resp.PDFID
		s.mode = ModePDF
	}
}

// UploadPDF 同步完成上传
func (s *Session) UploadPDF(ctx context.Context, path string) {
	u, ok := s.BeginUpload(path)
	if !ok {
		return
	}
	defer func() { s.uploading = false }()
	s.FinishUpload(u.Run(ctx))
}

func displayName(res UploadResult) string {
	if res.Info != nil {
		return res.Info.Filename
	}
	return baseName(res.Path)
}
