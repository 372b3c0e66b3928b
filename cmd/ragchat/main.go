package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"runtime/debug"
	"strings"
	"syscall"

	"github.com/Zacy-Sokach/RAGChat/internal/api"
	"github.com/Zacy-Sokach/RAGChat/internal/config"
	"github.com/Zacy-Sokach/RAGChat/internal/logging"
	"github.com/Zacy-Sokach/RAGChat/internal/session"
	"github.com/Zacy-Sokach/RAGChat/internal/tui"
	"github.com/Zacy-Sokach/RAGChat/internal/utils"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-isatty"
)

var (
	Version = "dev"
)

func main() {
	// 处理命令行参数
	if len(os.Args) > 1 {
		switch os.Args[1] {
		case "-v", "--version":
			fmt.Printf("RAGChat %s\n", Version)
			os.Exit(0)
		case "-h", "--help":
			printUsage()
			os.Exit(0)
		case "init":
			os.Exit(runInit())
		}
	}

	// 添加panic恢复
	defer func() {
		if r := recover(); r != nil {
			fmt.Printf("程序发生panic: %v\n", r)
			fmt.Println("堆栈跟踪:")
			debug.PrintStack()
			os.Exit(1)
		}
	}()

	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Printf("加载配置失败: %v\n", err)
		os.Exit(1)
	}

	logger, closeLog, err := logging.Init(cfg.Log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "初始化日志失败: %v\n", err)
	}
	defer closeLog()
	logPath := logging.LogPath(cfg.Log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	client := api.NewClient(cfg.BaseURL,
		api.WithLogger(logger),
		api.WithListRetry(cfg.Retry.ListMaxRetries),
	)
	sess := session.New(client, cfg.APIKey, session.Options{
		DeveloperMessage: cfg.DeveloperMessage,
		Model:            cfg.Model,
		TopK:             cfg.TopK,
		MaxUploadBytes:   cfg.MaxUploadBytes(),
		RequestTimeout:   cfg.RequestTimeout(),
		Logger:           logger,
	})

	logger.Info("ragchat starting", "version", Version, "base_url", client.BaseURL(), "api_key_set", cfg.APIKey != "", "log_file", logPath)

	if len(os.Args) > 1 {
		switch os.Args[1] {
		case "ask":
			os.Exit(runAsk(ctx, sess, os.Args[2:]))
		case "pdfs":
			os.Exit(runPDFs(ctx, sess))
		default:
			fmt.Printf("未知命令: %s\n\n", os.Args[1])
			printUsage()
			os.Exit(2)
		}
	}

	// 检查是否在交互式终端中
	if !isTerminal() {
		fmt.Println("RAGChat 运行在非交互式模式")
		fmt.Println("请在交互式终端中运行以获得完整TUI体验，或使用 ragchat ask <问题>")
		fmt.Printf("后端地址: %s\n", client.BaseURL())
		fmt.Printf("当前API Key: %s\n", displayKey(cfg.APIKey))
		fmt.Printf("日志文件: %s\n", logPath)
		return
	}

	tui.Version = Version
	tui.LogPath = logPath
	model := tui.InitialModel(ctx, sess)
	p := tea.NewProgram(&model, tea.WithAltScreen(), tea.WithContext(ctx))
	if _, err := p.Run(); err != nil && !errors.Is(err, tea.ErrProgramKilled) {
		fmt.Printf("程序运行错误: %v\n", err)
		os.Exit(1)
	}
}

// runAsk 单次提问，流式输出到 stdout；以错误消息结束时返回非零
func runAsk(ctx context.Context, sess *session.Session, args []string) int {
	fs := flag.NewFlagSet("ask", flag.ContinueOnError)
	pdfID := fs.String("pdf", "", "chat with an uploaded PDF by id")
	if err := fs.Parse(args); err != nil {
		return 2
	}

	question := strings.Join(fs.Args(), " ")
	if strings.TrimSpace(question) == "" {
		fmt.Fprintln(os.Stderr, "用法: ragchat ask [--pdf <id>] <问题>")
		return 2
	}
	if sess.APIKey() == "" {
		fmt.Fprintf(os.Stderr, "未配置 API Key，请设置 RAGCHAT_API_KEY 或在 %s 中配置 api_key\n", utils.GetConfigPathForDisplay())
		return 1
	}

	if *pdfID != "" {
		if err := sess.LoadPDFs(ctx); err != nil {
			slog.Warn("could not verify pdf id", "pdf_id", *pdfID, "error", err)
		}
		if err := sess.SelectPDF(*pdfID); err != nil {
			fmt.Fprintf(os.Stderr, "找不到 PDF: %s\n", *pdfID)
			return 1
		}
		if err := sess.SetMode(session.ModePDF); err != nil {
			fmt.Fprintf(os.Stderr, "切换到 PDF 模式失败: %v\n", err)
			return 1
		}
	}

	msg := sess.Submit(ctx, question, func(chunk string) {
		fmt.Print(chunk)
	})
	if msg == nil {
		return 1
	}
	if msg.Role == session.RoleError {
		fmt.Fprintln(os.Stderr, lipgloss.NewStyle().Foreground(lipgloss.Color("9")).Render("Error: "+msg.Content))
		return 1
	}
	fmt.Println()
	return 0
}

// runPDFs 打印后端已索引的 PDF
func runPDFs(ctx context.Context, sess *session.Session) int {
	if err := sess.LoadPDFs(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "获取 PDF 列表失败: %v\n", err)
		return 1
	}
	pdfs := sess.PDFs()
	if len(pdfs) == 0 {
		fmt.Println("No PDFs uploaded yet.")
		return 0
	}
	for i, rec := range pdfs {
		fmt.Printf("%2d. %-40s %4d chunks  %s\n", i+1, rec.Filename, rec.ChunksCount, rec.PDFID)
	}
	return 0
}

// runInit 写入默认配置文件，已存在时不覆盖
func runInit() int {
	path, err := config.ConfigPath()
	if err != nil {
		fmt.Printf("获取配置路径失败: %v\n", err)
		return 1
	}
	if _, err := os.Stat(path); err == nil {
		fmt.Printf("配置文件已存在: %s\n", path)
		return 0
	}
	if err := config.SaveConfig(config.Default()); err != nil {
		fmt.Printf("保存配置失败: %v\n", err)
		return 1
	}
	fmt.Println(lipgloss.NewStyle().Foreground(lipgloss.Color("10")).Render("已写入默认配置: " + path))
	fmt.Println("API Key 不会写入配置文件，请通过 RAGCHAT_API_KEY、.env 或 TUI 中的 /key 设置")
	return 0
}

func printUsage() {
	fmt.Println("RAGChat - chat with an assistant and your PDFs")
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Println("  ragchat                          Start the interactive TUI")
	fmt.Println("  ragchat ask [--pdf <id>] <text>  Ask one question and stream the answer")
	fmt.Println("  ragchat pdfs                     List uploaded PDFs")
	fmt.Println("  ragchat init                     Write a default config file")
	fmt.Println("  ragchat -v, --version            Show version information")
	fmt.Println("  ragchat -h, --help               Show help information")
	fmt.Println()
	fmt.Println("Config file:", utils.GetConfigPathForDisplay())
	fmt.Println("Environment: RAGCHAT_API_KEY, RAGCHAT_BASE_URL, RAGCHAT_MODEL, RAGCHAT_LOG_LEVEL, RAGCHAT_TOP_K")
}

func isTerminal() bool {
	fd := os.Stdout.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

func displayKey(key string) string {
	if key == "" {
		return "(not set)"
	}
	return utils.MaskAPIKey(key)
}
