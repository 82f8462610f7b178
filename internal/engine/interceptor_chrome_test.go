package engine

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/luoluoluo22/baidu-search-api/internal/browser"
	"github.com/luoluoluo22/baidu-search-api/internal/config"
)

const chromeSearchBody = `{"data":[{"type":"search_result","object":{"type":"answer","id":"2","title":"Go 并发","question":{"id":"1"},"excerpt":"goroutine"}}],"paging":{"is_end":true}}`

// 第一次请求返回 error 字段，第二次返回正常结果
const chromeSearchPage = `<!DOCTYPE html>
<html><head><title>search</title></head>
<body>
<script>
fetch('/api/v4/search_v3?x=1').then(function () { return fetch('/api/v4/search_v3?x=2'); });
</script>
%s
</body></html>`

func newChromeSearchSite(t *testing.T, slow bool) *httptest.Server {
	t.Helper()
	release := make(chan struct{})

	mux := http.NewServeMux()
	mux.HandleFunc("/search", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		img := ""
		if slow {
			img = `<img src="/slow.png">`
		}
		fmt.Fprintf(w, chromeSearchPage, img)
	})
	mux.HandleFunc("/api/v4/search_v3", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if r.URL.Query().Get("x") == "1" {
			_, _ = io.WriteString(w, `{"error":{"code":40352,"message":"rate limited"}}`)
			return
		}
		_, _ = io.WriteString(w, chromeSearchBody)
	})
	// 一直挂起，页面到不了网络空闲
	mux.HandleFunc("/slow.png", func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	t.Cleanup(func() { close(release) })
	return srv
}

func launchChrome(t *testing.T) browser.Instance {
	t.Helper()
	if testing.Short() {
		t.Skip("real browser test skipped in short mode")
	}
	path := os.Getenv("CHROME_PATH")
	if path == "" {
		path = browser.FindChromePath()
	}
	if path == "" {
		t.Skip("chrome executable not found")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	launcher := &browser.ChromeLauncher{ExecPath: path, Headless: true}
	inst, err := launcher.Launch(ctx, browser.DefaultProfile())
	require.NoError(t, err)
	t.Cleanup(func() { assert.NoError(t, inst.Close()) })
	return inst
}

func newChromeInterceptor(srv *httptest.Server, navTimeout time.Duration, log *zap.Logger) *Interceptor {
	return &Interceptor{
		Profile:           browser.DefaultProfile(),
		SearchURL:         srv.URL + "/search?q=",
		APIPattern:        config.DefaultConfig().Zhihu.APIPattern,
		NavigationTimeout: navTimeout,
		CaptureTimeout:    5 * time.Second,
		Logger:            log,
	}
}

func TestInterceptorChromeSkipsErrorPayload(t *testing.T) {
	srv := newChromeSearchSite(t, false)
	inst := launchChrome(t)

	ic := newChromeInterceptor(srv, 15*time.Second, zap.NewNop())
	payload, err := ic.Capture(context.Background(), inst, "go 并发", nil)
	require.NoError(t, err)
	assert.JSONEq(t, chromeSearchBody, string(payload))

	results := mapZhihuPayload(payload, time.Now())
	require.Len(t, results, 1)
	assert.Equal(t, "Go 并发", results[0].Title)
	assert.Equal(t, "https://www.zhihu.com/question/1/answer/2", results[0].URL)
}

func TestInterceptorChromeNavigationTimeoutKeepsPayload(t *testing.T) {
	srv := newChromeSearchSite(t, true)
	inst := launchChrome(t)

	core, logs := observer.New(zap.WarnLevel)
	ic := newChromeInterceptor(srv, time.Second, zap.New(core))
	payload, err := ic.Capture(context.Background(), inst, "go", nil)
	require.NoError(t, err)
	assert.JSONEq(t, chromeSearchBody, string(payload))
	assert.Equal(t, 1, logs.FilterMessage("⚠️ Network idle not reached before navigation timeout").Len())
}
