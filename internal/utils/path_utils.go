package utils

import (
	"os"
	"path/filepath"
	"strings"
)

// GetConfigDir 获取跨平台的配置目录
// Windows: %APPDATA%/ragchat
// Linux/macOS: ~/.config/ragchat
func GetConfigDir() (string, error) {
	// 检查是否设置了自定义配置目录
	if configHome := os.Getenv("RAGCHAT_CONFIG_HOME"); configHome != "" {
		return configHome, nil
	}

	// Windows: 使用 APPDATA
	if appData := os.Getenv("APPDATA"); appData != "" {
		return filepath.Join(appData, "ragchat"), nil
	}

	// Linux/macOS: 使用 XDG_CONFIG_HOME 或 ~/.config
	if configHome := os.Getenv("XDG_CONFIG_HOME"); configHome != "" {
		return filepath.Join(configHome, "ragchat"), nil
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(homeDir, ".config", "ragchat"), nil
}

// GetConfigPathForDisplay 获取用于显示的配置路径字符串
func GetConfigPathForDisplay() string {
	if dir, err := GetConfigDir(); err == nil {
		return filepath.Join(dir, "config.yaml")
	}
	return "~/.config/ragchat/config.yaml"
}

// ExpandPath 展开路径开头的 ~ 并去掉两端的引号
func ExpandPath(p string) string {
	p = strings.TrimSpace(p)
	p = strings.Trim(p, `"'`)
	if p == "~" || strings.HasPrefix(p, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, strings.TrimPrefix(p, "~"))
		}
	}
	return p
}

// MaskAPIKey 遮盖 API Key，只保留首尾各4位
func MaskAPIKey(key string) string {
	if key == "" {
		return ""
	}
	if len(key) <= 8 {
		return "***"
	}
	return key[:4] + "***" + key[len(key)-4:]
}
