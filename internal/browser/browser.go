// Package browser 管理共享的无头浏览器进程以及在其上打开的页面
package browser

import (
	"context"
)

// Cookie 注入页面的 cookie
type Cookie struct {
	Name   string
	Value  string
	Domain string
	Path   string
}

// Response 被观察到的网络响应
type Response struct {
	URL    string
	Status int64
	Body   []byte
	// Err 读取响应体失败时非空
	Err error
}

// ResponseObserver 只有 Match 返回 true 的响应才会读取响应体并交给 Handle，
// Handle 可能被并发调用
type ResponseObserver struct {
	Match  func(url string) bool
	Handle func(resp Response)
}

// Instance 一个浏览器进程
type Instance interface {
	ID() string
	NewPage(ctx context.Context) (Page, error)
	Close() error
}

// Page 一个标签页，只属于一次搜索操作
type Page interface {
	ApplyProfile(ctx context.Context, profile Profile) error
	SetCookies(ctx context.Context, cookies []Cookie) error
	// Observe 必须在 Navigate 之前调用
	Observe(obs ResponseObserver)
	// Navigate 导航并等待网络空闲，超时返回 ErrNavigationTimeout
	Navigate(ctx context.Context, url string) error
	Close() error
}

// Launcher 启动新的浏览器进程
type Launcher interface {
	Launch(ctx context.Context, profile Profile) (Instance, error)
}

// LauncherFunc 函数形式的 Launcher
type LauncherFunc func(ctx context.Context, profile Profile) (Instance, error)

// Launch 实现 Launcher
func (f LauncherFunc) Launch(ctx context.Context, profile Profile) (Instance, error) {
	return f(ctx, profile)
}
