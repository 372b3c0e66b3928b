package tui

import (
	"regexp"
	"strings"
)

// CommandType 命令类型
type CommandType int

const (
	CommandTypeUnknown CommandType = iota
	CommandTypeKey
	CommandTypeMode
	CommandTypeUpload
	CommandTypePDFs
	CommandTypeSelect
	CommandTypeDelete
	CommandTypeExport
	CommandTypeHealth
	CommandTypeHelp
)

// Command 解析后的斜杠命令
type Command struct {
	Type CommandType
	Raw  string
	Name string
	Arg  string
}

// CommandParser 命令解析器
type CommandParser struct {
	commandPattern *regexp.Regexp
	commands       map[string]CommandType
}

// NewCommandParser 创建新的命令解析器
func NewCommandParser() *CommandParser {
	return &CommandParser{
		// /name 后跟可选参数，参数保留原样（路径可能含空格）
		commandPattern: regexp.MustCompile(`^/([A-Za-z]+)(?:\s+(.*))?$`),
		commands: map[string]CommandType{
			"key":    CommandTypeKey,
			"mode":   CommandTypeMode,
			"upload": CommandTypeUpload,
			"pdfs":   CommandTypePDFs,
			"select": CommandTypeSelect,
			"delete": CommandTypeDelete,
			"export": CommandTypeExport,
			"health": CommandTypeHealth,
			"help":   CommandTypeHelp,
		},
	}
}

// Parse 解析命令字符串。
// 只有 /name 形式（name 全为字母，后跟空白或结束）才是命令，
// 其余输入（如 /etc/hosts、// 转义）返回 nil，按普通消息处理。
func (p *CommandParser) Parse(input string) *Command {
	input = strings.TrimSpace(input)
	matches := p.commandPattern.FindStringSubmatch(input)
	if matches == nil {
		return nil
	}

	cmd := &Command{Type: CommandTypeUnknown, Raw: input}
	cmd.Name = strings.ToLower(matches[1])
	cmd.Arg = strings.TrimSpace(matches[2])
	if t, ok := p.commands[cmd.Name]; ok {
		cmd.Type = t
	}
	return cmd
}

// FormatCommandType 格式化命令类型为字符串
func FormatCommandType(cmdType CommandType) string {
	switch cmdType {
	case CommandTypeKey:
		return "KEY"
	case CommandTypeMode:
		return "MODE"
	case CommandTypeUpload:
		return "UPLOAD"
	case CommandTypePDFs:
		return "PDFS"
	case CommandTypeSelect:
		return "SELECT"
	case CommandTypeDelete:
		return "DELETE"
	case CommandTypeExport:
		return "EXPORT"
	case CommandTypeHealth:
		return "HEALTH"
	case CommandTypeHelp:
		return "HELP"
	default:
		return "UNKNOWN"
	}
}

const helpText = `Commands:
  /key <api-key>          Set the API key for this session
  /mode regular|pdf       Switch chat mode (Ctrl+T toggles)
  /upload <path.pdf>      Upload and index a PDF
  /pdfs                   Refresh the list of uploaded PDFs
  /select <n|id>          Select a PDF to chat with
  /delete <n|id>          Delete an uploaded PDF
  /export <file.md|.html> Export this conversation
  /health                 Check the backend status
  /help                   Show this help

Start a message with // to send text that begins with /.`
