package session

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/Zacy-Sokach/RAGChat/internal/api"
)

// Refresh 一次 PDF 列表请求
type Refresh struct {
	backend Backend
	timeout time.Duration
}

type RefreshResult struct {
	PDFs []api.PDFRecord
	Err  error
}

func (r *Refresh) Run(ctx context.Context) RefreshResult {
	ctx, cancel := withTimeout(ctx, r.timeout)
	defer cancel()
	pdfs, err := r.backend.ListPDFs(ctx)
	return RefreshResult{PDFs: pdfs, Err: err}
}

// BeginRefresh 准备刷新 PDF 列表
func (s *Session) BeginRefresh() *Refresh {
	return &Refresh{backend: s.backend, timeout: s.opts.RequestTimeout}
}

// FinishRefresh 用后端列表整体替换本地列表。
// 失败只记录日志，不写入消息记录。
func (s *Session) FinishRefresh(res RefreshResult) {
	s.applyListing(res.PDFs, res.Err)
}

// LoadPDFs 同步刷新 PDF 列表，返回的错误仅供调用方参考
func (s *Session) LoadPDFs(ctx context.Context) error {
	res := s.BeginRefresh().Run(ctx)
	s.FinishRefresh(res)
	return res.Err
}

func (s *Session) applyListing(pdfs []api.PDFRecord, err error) {
	if err != nil {
		s.logger.Warn("failed to load pdfs", "error", err)
		return
	}
	next := make(map[string]api.PDFRecord, len(pdfs))
	for _, rec := range pdfs {
		next[rec.PDFID] = rec
	}
	// 选中的 ID 即使不在新列表中也保留
	s.pdfs = next
}

// Deletion 一次 PDF 删除请求
type Deletion struct {
	backend Backend
	timeout time.Duration
	pdfID   string
}

type DeletionResult struct {
	PDFID string
	Err   error
}

func (d *Deletion) Run(ctx context.Context) DeletionResult {
	ctx, cancel := withTimeout(ctx, d.timeout)
	defer cancel()
	_, err := d.backend.DeletePDF(ctx, d.pdfID)
	return DeletionResult{PDFID: d.pdfID, Err: err}
}

// BeginDelete 准备删除指定 PDF
func (s *Session) BeginDelete(pdfID string) *Deletion {
	return &Deletion{backend: s.backend, timeout: s.opts.RequestTimeout, pdfID: pdfID}
}

// FinishDelete 删除成功时移除记录，若删除的是选中的 PDF 则清除选择；聊天模式不变
func (s *Session) FinishDelete(res DeletionResult) {
	if res.Err != nil {
		s.logger.Warn("delete pdf failed", "pdf_id", res.PDFID, "error", res.Err)
		s.append(RoleError, errorText(res.Err, MsgDeleteFailed))
		return
	}

	name := res.PDFID
	if rec, ok := s.pdfs[res.PDFID]; ok && rec.Filename != "" {
		name = rec.Filename
	}
	delete(s.pdfs, res.PDFID)
	if s.selectedPDFID == res.PDFID {
		s.selectedPDFID = ""
	}
	s.append(RoleSystem, fmt.Sprintf("PDF %q deleted.", name))
}

// DeletePDF 同步删除
func (s *Session) DeletePDF(ctx context.Context, pdfID string) {
	s.FinishDelete(s.BeginDelete(pdfID).Run(ctx))
}

func baseName(path string) string {
	return filepath.Base(path)
}
