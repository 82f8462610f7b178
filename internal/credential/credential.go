// Package credential 读取并解析目标站点的会话 cookie
package credential

import (
	"errors"
	"io/fs"
	"os"
	"strings"

	"go.uber.org/zap"

	"github.com/luoluoluo22/baidu-search-api/internal/browser"
)

// Source cookie 来源：环境变量优先，其次是文件
type Source struct {
	EnvVar string
	File   string
}

// Load 返回原始 cookie 字符串。两个来源都没有时返回空串，不视为错误。
func (s Source) Load() (string, error) {
	if s.EnvVar != "" {
		if v := strings.TrimSpace(os.Getenv(s.EnvVar)); v != "" {
			return v, nil
		}
	}
	if s.File == "" {
		return "", nil
	}
	data, err := os.ReadFile(s.File)
	if errors.Is(err, fs.ErrNotExist) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(data)), nil
}

// Parse 解析 "name=value; name=value" 格式的 cookie 串，每条都限定到 domain 和根路径。
// 缺少 '=' 的片段记录日志后跳过。
func Parse(raw, domain string, log *zap.Logger) []browser.Cookie {
	if log == nil {
		log = zap.NewNop()
	}

	var cookies []browser.Cookie
	for _, part := range strings.Split(raw, ";") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		name, value, ok := strings.Cut(part, "=")
		name = strings.TrimSpace(name)
		if !ok || name == "" {
			log.Warn("⚠️ Skipping malformed cookie", zap.String("segment", part))
			continue
		}
		cookies = append(cookies, browser.Cookie{
			Name:   name,
			Value:  value,
			Domain: domain,
			Path:   "/",
		})
	}
	return cookies
}
