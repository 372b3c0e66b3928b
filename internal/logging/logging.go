package logging

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/Zacy-Sokach/RAGChat/internal/config"
	"github.com/Zacy-Sokach/RAGChat/internal/utils"
	"gopkg.in/natefinch/lumberjack.v2"
)

const (
	defaultLogFile = "ragchat.log"
	maxLogSizeMB   = 5
	maxLogBackups  = 3
	maxLogAgeDays  = 14
)

// Init 将 slog 默认日志写入滚动日志文件。
// TUI 占用终端，日志不能输出到 stdout/stderr。
// 返回的 close 函数在退出前调用，用于关闭日志文件。
func Init(cfg config.LogConfig) (*slog.Logger, func() error, error) {
	opts := &slog.HandlerOptions{Level: parseLogLevel(cfg.Level)}

	logPath := strings.TrimSpace(cfg.File)
	if logPath == "" {
		logPath = defaultLogPath()
	} else {
		logPath = utils.ExpandPath(logPath)
	}

	if err := os.MkdirAll(filepath.Dir(logPath), 0700); err != nil {
		// 日志目录不可用时丢弃日志，不影响主流程
		logger := slog.New(newHandler(cfg.Format, io.Discard, opts))
		slog.SetDefault(logger)
		return logger, func() error { return nil }, err
	}

	writer := &lumberjack.Logger{
		Filename:   logPath,
		MaxSize:    maxLogSizeMB,
		MaxBackups: maxLogBackups,
		MaxAge:     maxLogAgeDays,
		Compress:   true,
	}

	logger := slog.New(newHandler(cfg.Format, writer, opts))
	slog.SetDefault(logger)
	return logger, writer.Close, nil
}

// LogPath 返回实际使用的日志文件路径
func LogPath(cfg config.LogConfig) string {
	if p := strings.TrimSpace(cfg.File); p != "" {
		return utils.ExpandPath(p)
	}
	return defaultLogPath()
}

func defaultLogPath() string {
	dir, err := utils.GetConfigDir()
	if err != nil {
		return filepath.Join(".ragchat", "logs", defaultLogFile)
	}
	return filepath.Join(dir, "logs", defaultLogFile)
}

func parseLogLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func newHandler(format string, out io.Writer, opts *slog.HandlerOptions) slog.Handler {
	if strings.EqualFold(strings.TrimSpace(format), "text") {
		return slog.NewTextHandler(out, opts)
	}
	return slog.NewJSONHandler(out, opts)
}
