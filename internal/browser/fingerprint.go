package browser

import (
	_ "embed"
)

//go:embed stealth.js
var stealthScript string

// Viewport 视口尺寸
type Viewport struct {
	Width  int64
	Height int64
}

// Flag 浏览器启动参数，Value 为 true 表示无值开关
type Flag struct {
	Name  string
	Value interface{}
}

// Profile 浏览器指纹：UA、视口、启动参数、额外请求头以及页面脚本执行前注入的反检测脚本
type Profile struct {
	UserAgent string
	Viewport  Viewport
	Flags     []Flag
	Headers   map[string]string
	Script    string
}

// DefaultProfile 返回模拟 Windows Chrome 的默认指纹
func DefaultProfile() Profile {
	return Profile{
		UserAgent: "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/122.0.0.0 Safari/537.36",
		Viewport:  Viewport{Width: 1920, Height: 1080},
		Flags: []Flag{
			{Name: "no-sandbox", Value: true},
			{Name: "disable-setuid-sandbox", Value: true},
			{Name: "disable-blink-features", Value: "AutomationControlled"},
			{Name: "disable-infobars", Value: true},
			{Name: "window-size", Value: "1920,1080"},
			{Name: "start-maximized", Value: true},
			{Name: "disable-gpu", Value: true},
			{Name: "disable-dev-shm-usage", Value: true},
			{Name: "ignore-certificate-errors", Value: true},
			// chromedp 默认带 --enable-automation，会在注入脚本前暴露自动化
			{Name: "enable-automation", Value: false},
		},
		Headers: map[string]string{
			"Accept-Language": "zh-CN,zh;q=0.9,en;q=0.8",
		},
		Script: stealthScript,
	}
}

// AcceptLanguage 返回指纹中的 Accept-Language
func (p Profile) AcceptLanguage() string {
	return p.Headers["Accept-Language"]
}
