package browser

import (
	"context"
	"errors"
	"os"
	"runtime"

	"github.com/chromedp/chromedp"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ChromeLauncher 通过 chromedp 启动本地 Chrome/Chromium
type ChromeLauncher struct {
	// ExecPath 为空时自动探测
	ExecPath    string
	Headless    bool
	UserDataDir string
	ProxyURL    string
	Logger      *zap.Logger
}

// Launch 启动浏览器进程并完成预热。进程生命周期与 ctx 无关，只由 Instance.Close 结束。
func (l *ChromeLauncher) Launch(ctx context.Context, profile Profile) (Instance, error) {
	log := l.Logger
	if log == nil {
		log = zap.NewNop()
	}

	path := l.ExecPath
	if path == "" {
		path = FindChromePath()
	}
	if path == "" {
		return nil, &LaunchError{Err: errors.New("chrome executable not found, set CHROME_PATH or browser.chrome_path")}
	}
	if _, err := os.Stat(path); err != nil {
		return nil, &LaunchError{Path: path, Err: err}
	}

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.ExecPath(path),
		chromedp.Flag("headless", l.Headless),
		chromedp.UserAgent(profile.UserAgent),
		chromedp.WindowSize(int(profile.Viewport.Width), int(profile.Viewport.Height)),
	)
	for _, f := range profile.Flags {
		opts = append(opts, chromedp.Flag(f.Name, f.Value))
	}
	if l.UserDataDir != "" {
		opts = append(opts, chromedp.UserDataDir(l.UserDataDir))
	}
	if l.ProxyURL != "" {
		opts = append(opts, chromedp.ProxyServer(l.ProxyURL))
		log.Info("🌐 Browser using proxy", zap.String("proxy", l.ProxyURL))
	}

	allocCtx, allocCancel := chromedp.NewExecAllocator(context.Background(), opts...)
	browserCtx, browserCancel := chromedp.NewContext(allocCtx,
		chromedp.WithLogf(log.Sugar().Debugf),
		chromedp.WithErrorf(log.Sugar().Debugf),
	)

	// 第一次 Run 启动进程，不能带超时，否则超时后进程随之退出
	started := make(chan error, 1)
	go func() { started <- chromedp.Run(browserCtx) }()

	select {
	case err := <-started:
		if err != nil {
			browserCancel()
			allocCancel()
			return nil, &LaunchError{Path: path, Err: err}
		}
	case <-ctx.Done():
		browserCancel()
		allocCancel()
		return nil, &LaunchError{Path: path, Err: ctx.Err()}
	}

	log.Debug("Chrome started", zap.String("path", path), zap.Bool("headless", l.Headless))
	return &chromeInstance{
		id:            uuid.NewString(),
		allocCancel:   allocCancel,
		browserCtx:    browserCtx,
		browserCancel: browserCancel,
		log:           log,
	}, nil
}

// FindChromePath 查找本机 Chrome 可执行文件路径，找不到时返回空字符串
func FindChromePath() string {
	var paths []string

	switch runtime.GOOS {
	case "darwin":
		paths = []string{
			"/Applications/Google Chrome.app/Contents/MacOS/Google Chrome",
			"/Applications/Chromium.app/Contents/MacOS/Chromium",
		}
	case "linux":
		paths = []string{
			"/usr/bin/google-chrome",
			"/usr/bin/google-chrome-stable",
			"/usr/bin/chromium",
			"/usr/bin/chromium-browser",
			"/snap/bin/chromium",
		}
	case "windows":
		paths = []string{
			`C:\Program Files\Google\Chrome\Application\chrome.exe`,
			`C:\Program Files (x86)\Google\Chrome\Application\chrome.exe`,
			os.Getenv("LOCALAPPDATA") + `\Google\Chrome\Application\chrome.exe`,
		}
	}

	for _, p := range paths {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return ""
}
