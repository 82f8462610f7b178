package engine

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/tidwall/gjson"
	"go.uber.org/zap"

	"github.com/luoluoluo22/baidu-search-api/internal/browser"
)

// captureState 一次拦截的状态，只用于日志
type captureState string

const (
	stateIdle       captureState = "idle"
	statePageOpen   captureState = "page_open"
	stateConfigured captureState = "configured"
	stateNavigating captureState = "navigating"
	stateCaptured   captureState = "payload_captured"
	stateTimedOut   captureState = "timed_out"
	stateNavError   captureState = "nav_error"
	stateClosed     captureState = "closed"
)

// Interceptor 在共享浏览器上打开页面，导航到搜索页并截获站点内部搜索 API 的 JSON 响应
type Interceptor struct {
	Profile           browser.Profile
	SearchURL         string // 查询词会被转义后拼接在末尾
	APIPattern        string
	NavigationTimeout time.Duration
	CaptureTimeout    time.Duration
	Logger            *zap.Logger
}

// Capture 返回截获的响应体；在 CaptureTimeout 内没有拿到可用响应时返回 nil, nil。
// 页面在所有路径上都会被关闭。
func (i *Interceptor) Capture(ctx context.Context, inst browser.Instance, query string, cookies []browser.Cookie) ([]byte, error) {
	searchURL := i.SearchURL + url.QueryEscape(query)
	log := i.logger().With(zap.String("url", searchURL), zap.String("browser", inst.ID()))

	state := stateIdle
	moveTo := func(next captureState) {
		log.Debug("capture state", zap.String("from", string(state)), zap.String("to", string(next)))
		state = next
	}

	pg, err := inst.NewPage(ctx)
	if err != nil {
		return nil, fmt.Errorf("open page: %w", err)
	}
	moveTo(statePageOpen)
	defer func() {
		if err := pg.Close(); err != nil {
			log.Warn("⚠️ Failed to close page", zap.Error(err))
		}
		moveTo(stateClosed)
	}()

	if err := pg.ApplyProfile(ctx, i.Profile); err != nil {
		return nil, fmt.Errorf("apply fingerprint: %w", err)
	}
	if len(cookies) > 0 {
		if err := pg.SetCookies(ctx, cookies); err != nil {
			return nil, fmt.Errorf("set cookies: %w", err)
		}
		log.Debug("cookies injected", zap.Int("count", len(cookies)))
	} else {
		log.Info("🔓 No credentials supplied, searching unauthenticated")
	}
	moveTo(stateConfigured)

	capture := newResponseCapture(i.APIPattern, log)
	pg.Observe(capture.observer())

	moveTo(stateNavigating)
	log.Info("🌐 Navigating")
	navCtx, cancel := context.WithTimeout(ctx, i.NavigationTimeout)
	navErr := pg.Navigate(navCtx, searchURL)
	cancel()

	switch {
	case navErr == nil:
	case errors.Is(navErr, browser.ErrNavigationTimeout):
		log.Warn("⚠️ Network idle not reached before navigation timeout", zap.Duration("timeout", i.NavigationTimeout))
	default:
		if payload, ok := capture.result(); ok {
			log.Warn("⚠️ Navigation failed after payload was captured", zap.Error(navErr))
			moveTo(stateCaptured)
			return payload, nil
		}
		moveTo(stateNavError)
		return nil, navErr
	}

	timer := time.NewTimer(i.CaptureTimeout)
	defer timer.Stop()

	select {
	case <-capture.done:
		moveTo(stateCaptured)
		payload, _ := capture.result()
		log.Info("✅ Search API response captured", zap.Int("bytes", len(payload)))
		return payload, nil
	case <-timer.C:
		moveTo(stateTimedOut)
		log.Warn("⚠️ Timed out waiting for search API response", zap.Duration("timeout", i.CaptureTimeout))
		return nil, nil
	case <-ctx.Done():
		moveTo(stateNavError)
		return nil, ctx.Err()
	}
}

func (i *Interceptor) logger() *zap.Logger {
	if i.Logger == nil {
		return zap.NewNop()
	}
	return i.Logger
}

// responseCapture 一次性结果：第一条可解析且不含 error 字段的匹配响应胜出，之后的全部忽略
type responseCapture struct {
	pattern string
	log     *zap.Logger

	mu      sync.Mutex
	payload []byte
	done    chan struct{}
}

func newResponseCapture(pattern string, log *zap.Logger) *responseCapture {
	return &responseCapture{pattern: pattern, log: log, done: make(chan struct{})}
}

func (c *responseCapture) observer() browser.ResponseObserver {
	return browser.ResponseObserver{
		Match: func(u string) bool { return strings.Contains(u, c.pattern) },
		Handle: func(resp browser.Response) {
			c.offer(resp)
		},
	}
}

// offer 尝试保存响应，返回是否被采用
func (c *responseCapture) offer(resp browser.Response) bool {
	if resp.Err != nil {
		c.log.Warn("⚠️ Failed to read search API body", zap.String("api", resp.URL), zap.Error(resp.Err))
		return false
	}
	if !gjson.ValidBytes(resp.Body) {
		c.log.Warn("⚠️ Search API body is not valid JSON", zap.String("api", resp.URL), zap.Int("bytes", len(resp.Body)))
		return false
	}
	if e := gjson.GetBytes(resp.Body, "error"); e.Exists() {
		c.log.Warn("⚠️ Search API returned an error", zap.String("api", resp.URL), zap.String("error", e.Raw))
		return false
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.payload != nil {
		c.log.Debug("ignoring extra search API response", zap.String("api", resp.URL))
		return false
	}
	c.payload = resp.Body
	close(c.done)
	return true
}

func (c *responseCapture) result() ([]byte, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.payload, c.payload != nil
}
