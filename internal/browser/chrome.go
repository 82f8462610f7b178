package browser

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/emulation"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"
)

type chromeInstance struct {
	id            string
	allocCancel   context.CancelFunc
	browserCtx    context.Context
	browserCancel context.CancelFunc
	log           *zap.Logger

	closeOnce sync.Once
	closeErr  error
}

func (b *chromeInstance) ID() string { return b.id }

// NewPage 在共享浏览器上新建标签页
func (b *chromeInstance) NewPage(ctx context.Context) (Page, error) {
	if err := b.browserCtx.Err(); err != nil {
		return nil, fmt.Errorf("browser %s already closed: %w", b.id, err)
	}

	tabCtx, tabCancel := chromedp.NewContext(b.browserCtx)

	// 第一次 Run 创建 target，使用不带超时的 tabCtx
	created := make(chan error, 1)
	go func() { created <- chromedp.Run(tabCtx) }()

	select {
	case err := <-created:
		if err != nil {
			tabCancel()
			return nil, fmt.Errorf("create tab: %w", err)
		}
	case <-ctx.Done():
		tabCancel()
		return nil, ctx.Err()
	}

	p := &chromePage{ctx: tabCtx, cancel: tabCancel, log: b.log, idle: make(chan struct{})}
	p.listenLifecycle()
	return p, nil
}

// Close 结束浏览器进程
func (b *chromeInstance) Close() error {
	b.closeOnce.Do(func() {
		b.closeErr = chromedp.Cancel(b.browserCtx)
		b.browserCancel()
		b.allocCancel()
		if errors.Is(b.closeErr, context.Canceled) {
			b.closeErr = nil
		}
	})
	return b.closeErr
}

type chromePage struct {
	ctx    context.Context
	cancel context.CancelFunc
	log    *zap.Logger

	mu         sync.Mutex
	navigating bool
	mainFrame  cdp.FrameID
	idle       chan struct{}
	idleOnce   sync.Once
	closeOnce  sync.Once
}

// ApplyProfile 设置 UA、视口、请求头并注入在页面脚本之前执行的反检测脚本
func (p *chromePage) ApplyProfile(ctx context.Context, profile Profile) error {
	headers := make(network.Headers, len(profile.Headers))
	for k, v := range profile.Headers {
		headers[k] = v
	}

	return p.run(ctx,
		network.Enable(),
		page.SetLifecycleEventsEnabled(true),
		emulation.SetUserAgentOverride(profile.UserAgent).WithAcceptLanguage(profile.AcceptLanguage()),
		emulation.SetDeviceMetricsOverride(profile.Viewport.Width, profile.Viewport.Height, 1, false),
		network.SetExtraHTTPHeaders(headers),
		chromedp.ActionFunc(func(ctx context.Context) error {
			if profile.Script == "" {
				return nil
			}
			if _, err := page.AddScriptToEvaluateOnNewDocument(profile.Script).Do(ctx); err != nil {
				return fmt.Errorf("inject stealth script: %w", err)
			}
			return nil
		}),
	)
}

// SetCookies 注入 cookie
func (p *chromePage) SetCookies(ctx context.Context, cookies []Cookie) error {
	if len(cookies) == 0 {
		return nil
	}
	params := make([]*network.CookieParam, 0, len(cookies))
	for _, c := range cookies {
		params = append(params, &network.CookieParam{
			Name:   c.Name,
			Value:  c.Value,
			Domain: c.Domain,
			Path:   c.Path,
		})
	}
	return p.run(ctx, network.SetCookies(params))
}

// run 在标签页上下文上执行动作，同时受调用方 ctx 的取消和超时约束
func (p *chromePage) run(ctx context.Context, actions ...chromedp.Action) error {
	runCtx, cancel := context.WithCancel(p.ctx)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	err := chromedp.Run(runCtx, actions...)
	if err != nil && ctx.Err() != nil {
		return ctx.Err()
	}
	return err
}

// Observe 监听网络响应；匹配的响应在加载完成后异步读取响应体
func (p *chromePage) Observe(obs ResponseObserver) {
	var mu sync.Mutex
	pending := make(map[network.RequestID]*network.Response)

	chromedp.ListenTarget(p.ctx, func(ev interface{}) {
		switch e := ev.(type) {
		case *network.EventResponseReceived:
			if e.Response != nil && obs.Match(e.Response.URL) {
				mu.Lock()
				pending[e.RequestID] = e.Response
				mu.Unlock()
			}
		case *network.EventLoadingFinished:
			mu.Lock()
			resp, ok := pending[e.RequestID]
			delete(pending, e.RequestID)
			mu.Unlock()
			if ok {
				// 监听回调中不能阻塞，读取响应体放到 goroutine
				go p.deliver(e.RequestID, resp, obs.Handle)
			}
		case *network.EventLoadingFailed:
			mu.Lock()
			delete(pending, e.RequestID)
			mu.Unlock()
		}
	})
}

func (p *chromePage) deliver(id network.RequestID, resp *network.Response, handle func(Response)) {
	var body []byte
	err := chromedp.Run(p.ctx, chromedp.ActionFunc(func(ctx context.Context) error {
		var err error
		body, err = network.GetResponseBody(id).Do(ctx)
		return err
	}))
	if p.ctx.Err() != nil {
		return
	}
	if err != nil {
		p.log.Debug("Failed to read response body", zap.String("url", resp.URL), zap.Error(err))
	}
	handle(Response{URL: resp.URL, Status: resp.Status, Body: body, Err: err})
}

func (p *chromePage) listenLifecycle() {
	chromedp.ListenTarget(p.ctx, func(ev interface{}) {
		e, ok := ev.(*page.EventLifecycleEvent)
		if !ok {
			return
		}
		p.mu.Lock()
		defer p.mu.Unlock()
		if !p.navigating {
			return
		}
		// 主框架的 init 最先到达，iframe 的生命周期事件忽略
		if e.Name == "init" && p.mainFrame == "" {
			p.mainFrame = e.FrameID
			return
		}
		if e.Name == "networkIdle" && e.FrameID == p.mainFrame {
			p.idleOnce.Do(func() { close(p.idle) })
		}
	})
}

// Navigate 导航到 url 并等待网络空闲
func (p *chromePage) Navigate(ctx context.Context, url string) error {
	p.mu.Lock()
	p.navigating = true
	p.mu.Unlock()

	if err := p.run(ctx, chromedp.Navigate(url)); err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return ErrNavigationTimeout
		}
		return fmt.Errorf("navigate %s: %w", url, err)
	}

	select {
	case <-p.idle:
		return nil
	case <-ctx.Done():
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return ErrNavigationTimeout
		}
		return ctx.Err()
	}
}

// Close 关闭标签页
func (p *chromePage) Close() error {
	var err error
	p.closeOnce.Do(func() {
		err = chromedp.Cancel(p.ctx)
		p.cancel()
		if errors.Is(err, context.Canceled) {
			err = nil
		}
	})
	return err
}
