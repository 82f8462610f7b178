package engine

import (
	"context"
	"sync"

	"github.com/luoluoluo22/baidu-search-api/internal/browser"
)

// fakePage 在 Navigate 中按脚本回放网络响应
type fakePage struct {
	mu        sync.Mutex
	closed    int
	cookies   []browser.Cookie
	profile   *browser.Profile
	navigated string
	observer  browser.ResponseObserver

	applyErr error
	// navigate 为空时直接返回 nil
	navigate func(ctx context.Context, emit func(browser.Response)) error
}

func (p *fakePage) ApplyProfile(ctx context.Context, profile browser.Profile) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.profile = &profile
	return p.applyErr
}

func (p *fakePage) SetCookies(ctx context.Context, cookies []browser.Cookie) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.cookies = cookies
	return nil
}

func (p *fakePage) Observe(obs browser.ResponseObserver) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.observer = obs
}

func (p *fakePage) Navigate(ctx context.Context, url string) error {
	p.mu.Lock()
	p.navigated = url
	obs := p.observer
	nav := p.navigate
	p.mu.Unlock()

	if nav == nil {
		return nil
	}
	emit := func(resp browser.Response) {
		if obs.Match != nil && obs.Match(resp.URL) {
			obs.Handle(resp)
		}
	}
	return nav(ctx, emit)
}

func (p *fakePage) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed++
	return nil
}

func (p *fakePage) closeCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closed
}

type fakeInstance struct {
	page    *fakePage
	pageErr error
}

func (f *fakeInstance) ID() string { return "fake-browser" }

func (f *fakeInstance) NewPage(ctx context.Context) (browser.Page, error) {
	if f.pageErr != nil {
		return nil, f.pageErr
	}
	return f.page, nil
}

func (f *fakeInstance) Close() error { return nil }

type fakeProvider struct {
	inst browser.Instance
	err  error
}

func (f *fakeProvider) Acquire(ctx context.Context) (browser.Instance, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.inst, nil
}

// fakeEngine 固定返回结果的引擎
type fakeEngine struct {
	name    string
	results []SearchResult
	err     error

	mu        sync.Mutex
	lastLimit int
	lastPage  int
}

func (f *fakeEngine) Name() string { return f.name }

func (f *fakeEngine) Search(ctx context.Context, query string, limit int) ([]SearchResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lastLimit = limit
	f.lastPage = 1
	return f.results, f.err
}

// fakePagedEngine 额外支持翻页
type fakePagedEngine struct {
	fakeEngine
}

func (f *fakePagedEngine) SearchPage(ctx context.Context, query string, page, limit int) ([]SearchResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lastLimit = limit
	f.lastPage = page
	return f.results, f.err
}
