package browser

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// DefaultRefreshInterval 共享浏览器实例的默认存活时间
const DefaultRefreshInterval = time.Hour

// Session 持有唯一的共享浏览器实例：首次使用时启动，超过刷新间隔后先关闭旧实例再启动新实例
type Session struct {
	launcher Launcher
	profile  Profile
	interval time.Duration
	now      func() time.Time
	log      *zap.Logger

	mu         sync.Mutex
	current    Instance
	launchedAt time.Time
}

// SessionOption Session 可选项
type SessionOption func(*Session)

// WithRefreshInterval 设置刷新间隔
func WithRefreshInterval(d time.Duration) SessionOption {
	return func(s *Session) {
		if d > 0 {
			s.interval = d
		}
	}
}

// WithClock 替换时钟，测试用
func WithClock(now func() time.Time) SessionOption {
	return func(s *Session) { s.now = now }
}

// WithLogger 设置 logger
func WithLogger(l *zap.Logger) SessionOption {
	return func(s *Session) {
		if l != nil {
			s.log = l
		}
	}
}

// NewSession 创建浏览器会话管理器，此时并不启动浏览器
func NewSession(launcher Launcher, profile Profile, opts ...SessionOption) *Session {
	s := &Session{
		launcher: launcher,
		profile:  profile,
		interval: DefaultRefreshInterval,
		now:      time.Now,
		log:      zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.log = s.log.Named("browser")
	return s
}

// Acquire 返回当前浏览器实例，必要时（不存在或已过期）重新启动。
// 启动失败直接返回错误，不做重试。
func (s *Session) Acquire(ctx context.Context) (Instance, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	if s.current != nil && now.Sub(s.launchedAt) <= s.interval {
		return s.current, nil
	}

	if s.current != nil {
		s.log.Info("♻️ Browser instance expired, restarting",
			zap.String("id", s.current.ID()),
			zap.Duration("age", now.Sub(s.launchedAt)),
		)
		s.closeCurrentLocked()
	}

	inst, err := s.launcher.Launch(ctx, s.profile)
	if err != nil {
		s.log.Error("❌ Failed to launch browser", zap.Error(err))
		return nil, err
	}

	s.current = inst
	s.launchedAt = now
	s.log.Info("✅ Browser instance launched", zap.String("id", inst.ID()))
	return inst, nil
}

// Close 关闭当前实例，可重复调用
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closeCurrentLocked()
}

func (s *Session) closeCurrentLocked() {
	if s.current == nil {
		return
	}
	id := s.current.ID()
	if err := s.current.Close(); err != nil {
		s.log.Warn("⚠️ Failed to close browser instance", zap.String("id", id), zap.Error(err))
	} else {
		s.log.Info("🔴 Browser instance closed", zap.String("id", id))
	}
	s.current = nil
}
