package engine

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/luoluoluo22/baidu-search-api/internal/browser"
	"github.com/luoluoluo22/baidu-search-api/internal/config"
)

// pagedEngine 支持翻页的引擎
type pagedEngine interface {
	SearchPage(ctx context.Context, query string, page, limit int) ([]SearchResult, error)
}

// Manager 搜索引擎管理器
type Manager struct {
	engines map[string]SearchEngine
	config  *config.Config
	session *browser.Session
	log     *zap.Logger
	mu      sync.RWMutex
}

// NewManager 创建搜索引擎管理器并注册配置中启用的引擎
func NewManager(cfg *config.Config, log *zap.Logger) *Manager {
	if log == nil {
		log = zap.NewNop()
	}
	m := &Manager{
		engines: make(map[string]SearchEngine),
		config:  cfg,
		log:     log.Named("engine"),
	}
	m.initEngines()
	return m
}

// initEngines 初始化所有搜索引擎
func (m *Manager) initEngines() {
	proxyURL := m.config.ProxyURL()

	m.RegisterEngine(NewBaiduEngine(proxyURL, m.log))

	// 浏览器版搜索引擎；浏览器在第一次搜索时才启动
	if m.config.Browser.Enabled {
		profile := browser.DefaultProfile()
		launcher := &browser.ChromeLauncher{
			ExecPath:    m.config.Browser.ChromePath,
			Headless:    m.config.Browser.Headless,
			UserDataDir: m.config.Browser.UserDataDir,
			ProxyURL:    proxyURL,
			Logger:      m.log,
		}
		m.session = browser.NewSession(launcher, profile,
			browser.WithRefreshInterval(m.config.Browser.RefreshInterval),
			browser.WithLogger(m.log),
		)
		m.RegisterEngine(NewZhihuEngine(m.session, profile, m.config.Zhihu, m.log))
		m.log.Info("🌐 Browser engines enabled", zap.Bool("headless", m.config.Browser.Headless))
	}

	m.log.Info("✅ Search engines initialized", zap.Strings("engines", m.GetEngineNames()))
}

// RegisterEngine 注册搜索引擎，同名引擎会被替换
func (m *Manager) RegisterEngine(engine SearchEngine) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.engines[engine.Name()] = engine
	m.log.Debug("📝 Registered search engine", zap.String("engine", engine.Name()))
}

// GetEngine 获取搜索引擎
func (m *Manager) GetEngine(name string) (SearchEngine, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	engine, ok := m.engines[name]
	return engine, ok
}

// GetEngineNames 获取所有引擎名称（已排序）
func (m *Manager) GetEngineNames() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	names := make([]string, 0, len(m.engines))
	for name := range m.engines {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Search 执行搜索（支持多引擎并发）。只有全部引擎失败时才返回错误。
func (m *Manager) Search(ctx context.Context, req SearchRequest) ([]SearchResult, error) {
	if req.Query == "" {
		return nil, ErrEmptyQuery
	}

	names := req.Engines
	if len(names) == 0 {
		names = []string{m.config.Search.DefaultEngine}
	}

	limit := req.Limit
	if limit <= 0 {
		limit = m.config.Search.DefaultLimit
	}

	var selected []SearchEngine
	for _, name := range names {
		if !m.config.IsEngineAllowed(name) {
			m.log.Warn("⚠️ Engine is not allowed, skipping", zap.String("engine", name))
			continue
		}
		engine, ok := m.GetEngine(name)
		if !ok {
			m.log.Warn("⚠️ Engine not found, skipping", zap.String("engine", name))
			continue
		}
		selected = append(selected, engine)
	}
	if len(selected) == 0 {
		return nil, fmt.Errorf("%w: %v", ErrEngineNotAllowed, names)
	}

	perEngine := make([][]SearchResult, len(selected))
	errs := make([]error, len(selected))

	// 每个引擎的错误单独记录在 errs 中，闭包总是返回 nil，一个引擎失败不影响其他引擎
	var g errgroup.Group
	for i, eng := range selected {
		g.Go(func() error {
			var results []SearchResult
			var err error
			if p, ok := eng.(pagedEngine); ok && req.Page > 1 {
				results, err = p.SearchPage(ctx, req.Query, req.Page, limit)
			} else {
				results, err = eng.Search(ctx, req.Query, limit)
			}
			if err != nil {
				m.log.Error("❌ Search failed", zap.String("engine", eng.Name()), zap.Error(err))
				errs[i] = err
				return nil
			}
			perEngine[i] = results
			m.log.Info("✅ Search finished", zap.String("engine", eng.Name()), zap.Int("results", len(results)))
			return nil
		})
	}
	_ = g.Wait() // 总是 nil

	allResults := []SearchResult{}
	failed := 0
	for i := range selected {
		if errs[i] != nil {
			failed++
			continue
		}
		allResults = append(allResults, perEngine[i]...)
	}

	if failed == len(selected) {
		return nil, errors.Join(errs...)
	}
	return allResults, nil
}

// Close 释放浏览器等资源
func (m *Manager) Close() {
	if m.session != nil {
		m.session.Close()
	}
}
