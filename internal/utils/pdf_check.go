package utils

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/ledongthuc/pdf"
)

var (
	ErrNotPDF       = errors.New("only PDF files are allowed")
	ErrFileTooLarge = errors.New("file is too large")
	ErrEmptyPDF     = errors.New("PDF has no pages")
)

// PDFInfo 本地 PDF 的基本信息
type PDFInfo struct {
	Path     string
	Filename string
	Size     int64
	Pages    int
}

// CheckPDF 在上传前校验本地文件：扩展名、大小以及能否解析出页面。
// maxBytes <= 0 表示不限制大小。
func CheckPDF(path string, maxBytes int64) (*PDFInfo, error) {
	filename := filepath.Base(path)
	if !strings.EqualFold(filepath.Ext(filename), ".pdf") {
		return nil, ErrNotPDF
	}

	stat, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("读取文件信息失败: %w", err)
	}
	if stat.IsDir() {
		return nil, fmt.Errorf("%s 是一个目录", path)
	}
	if maxBytes > 0 && stat.Size() > maxBytes {
		return nil, fmt.Errorf("%w (%d MB max)", ErrFileTooLarge, maxBytes>>20)
	}

	pages, err := countPages(path)
	if err != nil {
		return nil, err
	}
	if pages == 0 {
		return nil, ErrEmptyPDF
	}

	return &PDFInfo{
		Path:     path,
		Filename: filename,
		Size:     stat.Size(),
		Pages:    pages,
	}, nil
}

// countPages 解析器遇到损坏文件可能 panic，这里统一转成错误
func countPages(path string) (pages int, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("解析PDF失败: %v", r)
		}
	}()

	f, reader, err := pdf.Open(path)
	if err != nil {
		return 0, fmt.Errorf("解析PDF失败: %w", err)
	}
	defer f.Close()

	return reader.NumPage(), nil
}
