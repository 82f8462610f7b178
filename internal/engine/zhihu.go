package engine

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/luoluoluo22/baidu-search-api/internal/browser"
	"github.com/luoluoluo22/baidu-search-api/internal/config"
	"github.com/luoluoluo22/baidu-search-api/internal/credential"
)

const zhihuSearchURL = "https://www.zhihu.com/search?type=content&q="

// BrowserProvider 提供共享浏览器实例，*browser.Session 实现了它
type BrowserProvider interface {
	Acquire(ctx context.Context) (browser.Instance, error)
}

// ZhihuEngine 知乎搜索：结果完全由前端渲染，只能通过无头浏览器截获内部搜索 API 获取
type ZhihuEngine struct {
	browsers     BrowserProvider
	credentials  credential.Source
	cookieDomain string
	interceptor  *Interceptor
	now          func() time.Time
	log          *zap.Logger
}

// NewZhihuEngine 创建知乎搜索引擎
func NewZhihuEngine(browsers BrowserProvider, profile browser.Profile, cfg config.ZhihuConfig, log *zap.Logger) *ZhihuEngine {
	if log == nil {
		log = zap.NewNop()
	}
	log = log.Named(zhihuEngineName)

	return &ZhihuEngine{
		browsers:     browsers,
		credentials:  credential.Source{EnvVar: cfg.CookieEnv, File: cfg.CookieFile},
		cookieDomain: cfg.CookieDomain,
		interceptor: &Interceptor{
			Profile:           profile,
			SearchURL:         zhihuSearchURL,
			APIPattern:        cfg.APIPattern,
			NavigationTimeout: cfg.NavigationTimeout,
			CaptureTimeout:    cfg.CaptureTimeout,
			Logger:            log,
		},
		now: time.Now,
		log: log,
	}
}

// Name 返回引擎名称
func (e *ZhihuEngine) Name() string {
	return zhihuEngineName
}

// Search 执行知乎搜索。截获超时视为没有结果，返回空切片。
func (e *ZhihuEngine) Search(ctx context.Context, query string, limit int) ([]SearchResult, error) {
	if strings.TrimSpace(query) == "" {
		return nil, e.fail(query, ErrEmptyQuery)
	}

	inst, err := e.browsers.Acquire(ctx)
	if err != nil {
		return nil, e.fail(query, err)
	}

	raw, err := e.credentials.Load()
	if err != nil {
		e.log.Warn("⚠️ Failed to load cookies, continuing without them", zap.Error(err))
	}
	cookies := credential.Parse(raw, e.cookieDomain, e.log)

	payload, err := e.interceptor.Capture(ctx, inst, query, cookies)
	if err != nil {
		return nil, e.fail(query, err)
	}
	if payload == nil {
		return []SearchResult{}, nil
	}

	results := mapZhihuPayload(payload, e.now())
	if limit > 0 && len(results) > limit {
		results = results[:limit]
	}

	e.log.Info("🔍 Zhihu search finished", zap.String("query", query), zap.Int("results", len(results)))
	return results, nil
}

func (e *ZhihuEngine) fail(query string, err error) error {
	e.log.Error("❌ Zhihu search failed", zap.String("query", query), zap.Error(err))
	return &SearchFailure{Engine: zhihuEngineName, Query: query, Err: err}
}
