package browser

import (
	"errors"
	"fmt"
)

var (
	// ErrEnvironment 浏览器可执行文件缺失或无法启动等环境类错误
	ErrEnvironment = errors.New("browser environment error")

	// ErrNavigationTimeout 页面导航在等待网络空闲时超时
	ErrNavigationTimeout = errors.New("navigation timeout")
)

// LaunchError 浏览器启动失败
type LaunchError struct {
	Path string
	Err  error
}

func (e *LaunchError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("launch browser: %v", e.Err)
	}
	return fmt.Sprintf("launch browser %q: %v", e.Path, e.Err)
}

func (e *LaunchError) Unwrap() error { return e.Err }

// Is 使 errors.Is(err, ErrEnvironment) 对所有启动失败成立
func (e *LaunchError) Is(target error) bool { return target == ErrEnvironment }
