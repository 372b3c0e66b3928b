package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/Zacy-Sokach/RAGChat/internal/utils"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	DefaultBaseURL          = "http://localhost:8000"
	DefaultDeveloperMessage = "You are a helpful AI assistant."
	DefaultTopK             = 3
	DefaultMaxFileSizeMB    = 10
)

type Config struct {
	APIKey                string       `yaml:"api_key,omitempty"`
	BaseURL               string       `yaml:"base_url" validate:"required,url"`
	Model                 string       `yaml:"model,omitempty"`
	DeveloperMessage      string       `yaml:"developer_message"`
	TopK                  int          `yaml:"top_k" validate:"min=1,max=20"`
	RequestTimeoutSeconds int          `yaml:"request_timeout_seconds" validate:"min=0"`
	Upload                UploadConfig `yaml:"upload"`
	Retry                 RetryConfig  `yaml:"retry"`
	Log                   LogConfig    `yaml:"log"`
}

type UploadConfig struct {
	MaxFileSizeMB int `yaml:"max_file_size_mb" validate:"min=0"`
}

type RetryConfig struct {
	// ListMaxRetries 仅作用于幂等的 PDF 列表请求
	ListMaxRetries int `yaml:"list_max_retries" validate:"min=0,max=10"`
}

type LogConfig struct {
	Level  string `yaml:"level" validate:"omitempty,oneof=debug info warn warning error"`
	Format string `yaml:"format" validate:"omitempty,oneof=json text"`
	File   string `yaml:"file,omitempty"`
}

// Default 返回默认配置
func Default() *Config {
	return &Config{
		BaseURL:          DefaultBaseURL,
		DeveloperMessage: DefaultDeveloperMessage,
		TopK:             DefaultTopK,
		Upload: UploadConfig{
			MaxFileSizeMB: DefaultMaxFileSizeMB,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// RequestTimeout 返回单次请求超时，0 表示不限制
func (c *Config) RequestTimeout() time.Duration {
	return time.Duration(c.RequestTimeoutSeconds) * time.Second
}

// MaxUploadBytes 返回上传大小上限，0 表示不限制
func (c *Config) MaxUploadBytes() int64 {
	return int64(c.Upload.MaxFileSizeMB) << 20
}

// LoadConfig 读取配置文件，再依次应用 .env 与环境变量覆盖，最后校验
func LoadConfig() (*Config, error) {
	configPath, err := getConfigPath()
	if err != nil {
		return nil, err
	}

	config := Default()

	data, err := os.ReadFile(configPath)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("解析配置文件失败: %w", err)
		}
	case errors.Is(err, fs.ErrNotExist):
		// 配置文件不存在，使用默认值
	default:
		return nil, fmt.Errorf("读取配置文件失败: %w", err)
	}

	// .env 不存在不是错误
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("加载 .env 失败: %w", err)
	}
	if err := applyEnv(config); err != nil {
		return nil, err
	}

	applyDefaults(config)

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

// applyDefaults 填充未设置的字段
func applyDefaults(config *Config) {
	if config.BaseURL == "" {
		config.BaseURL = DefaultBaseURL
	}
	if config.DeveloperMessage == "" {
		config.DeveloperMessage = DefaultDeveloperMessage
	}
	if config.TopK == 0 {
		config.TopK = DefaultTopK
	}
	if config.Log.Level == "" {
		config.Log.Level = "info"
	}
	if config.Log.Format == "" {
		config.Log.Format = "json"
	}
}

func applyEnv(config *Config) error {
	if v := os.Getenv("RAGCHAT_API_KEY"); v != "" {
		config.APIKey = v
	}
	if v := os.Getenv("RAGCHAT_BASE_URL"); v != "" {
		config.BaseURL = v
	}
	if v := os.Getenv("RAGCHAT_MODEL"); v != "" {
		config.Model = v
	}
	if v := os.Getenv("RAGCHAT_LOG_LEVEL"); v != "" {
		config.Log.Level = v
	}
	if v := os.Getenv("RAGCHAT_TOP_K"); v != "" {
		k, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("RAGCHAT_TOP_K 不是整数: %w", err)
		}
		config.TopK = k
	}
	return nil
}

var validate = validator.New()

// Validate 校验配置取值
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("配置校验失败: %w", err)
	}
	return nil
}

// SaveConfig 写入配置文件（API Key 不会被写入）
func SaveConfig(config *Config) error {
	configPath, err := getConfigPath()
	if err != nil {
		return err
	}

	configDir := filepath.Dir(configPath)
	if err := os.MkdirAll(configDir, 0755); err != nil {
		return fmt.Errorf("创建配置目录失败: %w", err)
	}

	toSave := *config
	toSave.APIKey = ""

	data, err := yaml.Marshal(&toSave)
	if err != nil {
		return fmt.Errorf("序列化配置失败: %w", err)
	}

	if err := os.WriteFile(configPath, data, 0600); err != nil {
		return fmt.Errorf("写入配置文件失败: %w", err)
	}

	return nil
}

// ConfigPath 返回配置文件路径
func ConfigPath() (string, error) {
	return getConfigPath()
}

func getConfigPath() (string, error) {
	configDir, err := utils.GetConfigDir()
	if err != nil {
		return "", fmt.Errorf("获取配置目录失败: %w", err)
	}
	return filepath.Join(configDir, "config.yaml"), nil
}
