package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

// Config 应用配置
type Config struct {
	// 服务器配置
	Server ServerConfig `yaml:"server"`

	// 搜索引擎配置
	Search SearchConfig `yaml:"search"`

	// 代理配置
	Proxy ProxyConfig `yaml:"proxy"`

	// MCP 配置
	MCP MCPConfig `yaml:"mcp"`

	// 浏览器配置
	Browser BrowserConfig `yaml:"browser"`

	// 知乎搜索配置
	Zhihu ZhihuConfig `yaml:"zhihu"`

	// 日志配置
	Log LogConfig `yaml:"log"`
}

// ServerConfig 服务器配置
type ServerConfig struct {
	Port int        `yaml:"port"`
	Host string     `yaml:"host"`
	CORS CORSConfig `yaml:"cors"`
}

// CORSConfig CORS 配置
type CORSConfig struct {
	Enabled bool   `yaml:"enabled"`
	Origin  string `yaml:"origin"`
}

// SearchConfig 搜索引擎配置
type SearchConfig struct {
	DefaultEngine  string   `yaml:"default_engine"`
	AllowedEngines []string `yaml:"allowed_engines"`
	DefaultLimit   int      `yaml:"default_limit"`
}

// ProxyConfig 代理配置
type ProxyConfig struct {
	Enabled bool   `yaml:"enabled"`
	URL     string `yaml:"url"`
}

// MCPConfig MCP 协议配置
type MCPConfig struct {
	ServerName    string `yaml:"server_name"`
	ServerVersion string `yaml:"server_version"`
	SearchTool    string `yaml:"search_tool"`
}

// BrowserConfig 浏览器配置
type BrowserConfig struct {
	Enabled  bool `yaml:"enabled"`
	Headless bool `yaml:"headless"`
	// ChromePath 为空时读取 CHROME_PATH，仍为空则自动探测
	ChromePath string `yaml:"chrome_path"`
	// UserDataDir 浏览器用户数据目录，为空表示使用临时目录
	UserDataDir string `yaml:"user_data_dir"`
	// RefreshInterval 共享浏览器实例的最长存活时间
	RefreshInterval time.Duration `yaml:"refresh_interval"`
}

// ZhihuConfig 知乎搜索配置
type ZhihuConfig struct {
	CookieFile        string        `yaml:"cookie_file"`
	CookieEnv         string        `yaml:"cookie_env"`
	CookieDomain      string        `yaml:"cookie_domain"`
	APIPattern        string        `yaml:"api_pattern"`
	NavigationTimeout time.Duration `yaml:"navigation_timeout"`
	CaptureTimeout    time.Duration `yaml:"capture_timeout"`
}

// LogConfig 日志配置
type LogConfig struct {
	Level      string `yaml:"level"`
	Format     string `yaml:"format"` // console | json
	File       string `yaml:"file"`
	MaxSize    int    `yaml:"max_size"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAge     int    `yaml:"max_age"`
	Compress   bool   `yaml:"compress"`
}

// ValidEngines 有效的搜索引擎列表
var ValidEngines = []string{"zhihu", "baidu"}

// BrowserEngines 依赖无头浏览器的引擎
var BrowserEngines = []string{"zhihu"}

// DefaultConfig 返回一份新的默认配置
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port: 8000,
			Host: "0.0.0.0",
			CORS: CORSConfig{
				Enabled: true,
				Origin:  "*",
			},
		},
		Search: SearchConfig{
			DefaultEngine:  "zhihu",
			AllowedEngines: []string{},
			DefaultLimit:   20,
		},
		Proxy: ProxyConfig{
			Enabled: false,
			URL:     "http://127.0.0.1:7890",
		},
		MCP: MCPConfig{
			ServerName:    "baidu-search-api",
			ServerVersion: "1.0.0",
			SearchTool:    "search",
		},
		Browser: BrowserConfig{
			Enabled:         true,
			Headless:        true,
			UserDataDir:     "./user_data",
			RefreshInterval: time.Hour,
		},
		Zhihu: ZhihuConfig{
			CookieFile:        "cookies.txt",
			CookieEnv:         "ZHIHU_COOKIE",
			CookieDomain:      ".zhihu.com",
			APIPattern:        "api/v4/search_v3?",
			NavigationTimeout: 30 * time.Second,
			CaptureTimeout:    10 * time.Second,
		},
		Log: LogConfig{
			Level:      "info",
			Format:     "console",
			File:       "search_api.log",
			MaxSize:    50,
			MaxBackups: 3,
			MaxAge:     7,
		},
	}
}

// configSearchPaths 配置文件搜索路径
var configSearchPaths = []string{
	"config.yaml",
	"config.yml",
	"configs/config.yaml",
	"configs/config.yml",
}

// Load 从 YAML 配置文件加载配置，找不到或解析失败时使用默认配置
// 支持通过 CONFIG_FILE 环境变量指定配置文件路径
func Load() (*Config, []string) {
	var notes []string

	path := findConfigFile()
	if path == "" {
		notes = append(notes, "⚠️ No config file found, using default configuration")
		cfg := DefaultConfig()
		cfg.applyEnv()
		return cfg, append(notes, cfg.Validate()...)
	}

	cfg, err := LoadFromFile(path)
	if err != nil {
		notes = append(notes, fmt.Sprintf("⚠️ %v, using defaults", err))
		cfg = DefaultConfig()
		cfg.applyEnv()
		return cfg, append(notes, cfg.Validate()...)
	}

	notes = append(notes, "📄 Loaded configuration from: "+path)
	return cfg, append(notes, cfg.Validate()...)
}

// LoadFromFile 从指定路径加载配置（不做校验）
func LoadFromFile(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file failed: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config file failed: %w", err)
	}

	cfg.applyEnv()
	return cfg, nil
}

// findConfigFile 查找配置文件
func findConfigFile() string {
	if envPath := os.Getenv("CONFIG_FILE"); envPath != "" {
		if _, err := os.Stat(envPath); err == nil {
			return envPath
		}
	}

	workDir, _ := os.Getwd()
	searchDirs := []string{workDir}
	if execPath, err := os.Executable(); err == nil {
		if execDir := filepath.Dir(execPath); execDir != workDir {
			searchDirs = append(searchDirs, execDir)
		}
	}

	for _, dir := range searchDirs {
		for _, name := range configSearchPaths {
			path := filepath.Join(dir, name)
			if _, err := os.Stat(path); err == nil {
				return path
			}
		}
	}

	return ""
}

// applyEnv 环境变量覆盖
func (c *Config) applyEnv() {
	if p := os.Getenv("CHROME_PATH"); p != "" {
		c.Browser.ChromePath = p
	}
	if lvl := os.Getenv("LOG_LEVEL"); lvl != "" {
		c.Log.Level = lvl
	}
}

// Validate 验证并修正配置，返回修正说明
func (c *Config) Validate() []string {
	def := DefaultConfig()
	var notes []string

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		notes = append(notes, fmt.Sprintf("⚠️ Invalid port %d, using default %d", c.Server.Port, def.Server.Port))
		c.Server.Port = def.Server.Port
	}
	if c.Server.Host == "" {
		c.Server.Host = def.Server.Host
	}
	if c.Server.CORS.Origin == "" {
		c.Server.CORS.Origin = def.Server.CORS.Origin
	}

	if !isValidEngine(c.Search.DefaultEngine) {
		notes = append(notes, fmt.Sprintf("⚠️ Invalid default_engine: %s, falling back to %s", c.Search.DefaultEngine, def.Search.DefaultEngine))
		c.Search.DefaultEngine = def.Search.DefaultEngine
	}

	validAllowed := []string{}
	for _, e := range c.Search.AllowedEngines {
		e = strings.TrimSpace(e)
		if isValidEngine(e) {
			validAllowed = append(validAllowed, e)
		} else {
			notes = append(notes, "⚠️ Invalid search engine ignored: "+e)
		}
	}
	c.Search.AllowedEngines = validAllowed

	// 浏览器关闭时浏览器引擎不会注册，从允许列表中去掉
	if !c.Browser.Enabled {
		kept := withoutBrowserEngines(c.Search.AllowedEngines)
		if len(kept) != len(c.Search.AllowedEngines) {
			notes = append(notes, "⚠️ Browser disabled, removed browser engines from allowed list: "+strings.Join(BrowserEngines, ", "))
		}
		if len(kept) == 0 {
			kept = withoutBrowserEngines(ValidEngines)
		}
		c.Search.AllowedEngines = kept
	}

	if len(c.Search.AllowedEngines) > 0 && !contains(c.Search.AllowedEngines, c.Search.DefaultEngine) {
		notes = append(notes, fmt.Sprintf("⚠️ Default engine %s not in allowed list, using %s", c.Search.DefaultEngine, c.Search.AllowedEngines[0]))
		c.Search.DefaultEngine = c.Search.AllowedEngines[0]
	}
	if c.Search.DefaultLimit <= 0 {
		c.Search.DefaultLimit = def.Search.DefaultLimit
	}

	if c.Proxy.Enabled && c.Proxy.URL == "" {
		notes = append(notes, "⚠️ Proxy enabled but URL is empty, using default")
		c.Proxy.URL = def.Proxy.URL
	}

	if c.MCP.ServerName == "" {
		c.MCP.ServerName = def.MCP.ServerName
	}
	if c.MCP.ServerVersion == "" {
		c.MCP.ServerVersion = def.MCP.ServerVersion
	}
	if c.MCP.SearchTool == "" {
		c.MCP.SearchTool = def.MCP.SearchTool
	}

	if c.Browser.RefreshInterval <= 0 {
		c.Browser.RefreshInterval = def.Browser.RefreshInterval
	}

	if c.Zhihu.CookieDomain == "" {
		c.Zhihu.CookieDomain = def.Zhihu.CookieDomain
	}
	if c.Zhihu.APIPattern == "" {
		c.Zhihu.APIPattern = def.Zhihu.APIPattern
	}
	if c.Zhihu.NavigationTimeout <= 0 {
		c.Zhihu.NavigationTimeout = def.Zhihu.NavigationTimeout
	}
	if c.Zhihu.CaptureTimeout <= 0 {
		c.Zhihu.CaptureTimeout = def.Zhihu.CaptureTimeout
	}

	if c.Log.Level == "" {
		c.Log.Level = def.Log.Level
	}
	if c.Log.Format != "json" && c.Log.Format != "console" {
		c.Log.Format = def.Log.Format
	}

	return notes
}

// Print 打印配置信息
func (c *Config) Print(l *zap.Logger) {
	l.Info("🔍 Search engines",
		zap.String("default", c.Search.DefaultEngine),
		zap.Strings("allowed", c.Search.AllowedEngines),
	)
	if c.Proxy.Enabled {
		l.Info("🌐 Using proxy", zap.String("url", c.Proxy.URL))
	}
	l.Info("🖥️ Browser",
		zap.Bool("enabled", c.Browser.Enabled),
		zap.Bool("headless", c.Browser.Headless),
		zap.Duration("refresh_interval", c.Browser.RefreshInterval),
	)
	l.Info("🔐 Zhihu",
		zap.String("cookie_file", c.Zhihu.CookieFile),
		zap.String("cookie_env", c.Zhihu.CookieEnv),
		zap.Duration("navigation_timeout", c.Zhihu.NavigationTimeout),
		zap.Duration("capture_timeout", c.Zhihu.CaptureTimeout),
	)
	l.Info("🔒 CORS", zap.Bool("enabled", c.Server.CORS.Enabled), zap.String("origin", c.Server.CORS.Origin))
	l.Info("🚀 Server will listen", zap.String("addr", c.Addr()))
}

// Addr 返回监听地址
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

// IsEngineAllowed 检查搜索引擎是否被允许使用
func (c *Config) IsEngineAllowed(engine string) bool {
	if len(c.Search.AllowedEngines) == 0 {
		return isValidEngine(engine)
	}
	return contains(c.Search.AllowedEngines, engine)
}

// ProxyURL 返回生效的代理地址，未启用时为空
func (c *Config) ProxyURL() string {
	if !c.Proxy.Enabled {
		return ""
	}
	return c.Proxy.URL
}

func withoutBrowserEngines(engines []string) []string {
	kept := []string{}
	for _, e := range engines {
		if !contains(BrowserEngines, e) {
			kept = append(kept, e)
		}
	}
	return kept
}

func isValidEngine(engine string) bool {
	return contains(ValidEngines, engine)
}

func contains(slice []string, item string) bool {
	for _, s := range slice {
		if s == item {
			return true
		}
	}
	return false
}
