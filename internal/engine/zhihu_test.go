package engine

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/luoluoluo22/baidu-search-api/internal/browser"
	"github.com/luoluoluo22/baidu-search-api/internal/config"
)

func testZhihuConfig(t *testing.T) config.ZhihuConfig {
	cfg := config.DefaultConfig().Zhihu
	cfg.CookieEnv = "TEST_ZHIHU_ENGINE_COOKIE"
	cfg.CookieFile = filepath.Join(t.TempDir(), "cookies.txt")
	cfg.CaptureTimeout = 100 * time.Millisecond
	return cfg
}

func zhihuPayload(n int) string {
	items := make([]string, n)
	for i := range items {
		items[i] = fmt.Sprintf(`{"object":{"title":"t%d","id":"%d","question":{"id":"q%d"}}}`, i, i, i)
	}
	return `{"data":[` + strings.Join(items, ",") + `]}`
}

func TestZhihuSearch(t *testing.T) {
	t.Setenv("TEST_ZHIHU_ENGINE_COOKIE", "z_c0=token; _xsrf=abc")
	page := &fakePage{
		navigate: func(ctx context.Context, emit func(browser.Response)) error {
			emit(browser.Response{URL: testAPIURL, Body: []byte(zhihuPayload(5))})
			return nil
		},
	}
	e := NewZhihuEngine(&fakeProvider{inst: &fakeInstance{page: page}}, browser.DefaultProfile(), testZhihuConfig(t), nil)
	e.now = func() time.Time { return mapperNow }

	results, err := e.Search(context.Background(), "golang", 3)
	require.NoError(t, err)

	require.Len(t, results, 3)
	assert.Equal(t, "t0", results[0].Title)
	assert.Equal(t, "https://www.zhihu.com/question/q2/answer/2", results[2].URL)
	assert.Equal(t, "2025-03-01T12:30:00Z", results[0].Timestamp)

	assert.Equal(t, []browser.Cookie{
		{Name: "z_c0", Value: "token", Domain: ".zhihu.com", Path: "/"},
		{Name: "_xsrf", Value: "abc", Domain: ".zhihu.com", Path: "/"},
	}, page.cookies)
}

func TestZhihuSearchNoResponseIsEmpty(t *testing.T) {
	t.Setenv("TEST_ZHIHU_ENGINE_COOKIE", "")
	page := &fakePage{}
	e := NewZhihuEngine(&fakeProvider{inst: &fakeInstance{page: page}}, browser.DefaultProfile(), testZhihuConfig(t), nil)

	results, err := e.Search(context.Background(), "golang", 10)
	require.NoError(t, err)
	assert.NotNil(t, results)
	assert.Empty(t, results)
	assert.Nil(t, page.cookies)
}

func TestZhihuSearchLaunchFailure(t *testing.T) {
	launchErr := &browser.LaunchError{Path: "/missing/chrome", Err: fmt.Errorf("no such file")}
	e := NewZhihuEngine(&fakeProvider{err: launchErr}, browser.DefaultProfile(), testZhihuConfig(t), nil)

	results, err := e.Search(context.Background(), "golang", 10)
	assert.Nil(t, results)
	assert.ErrorIs(t, err, browser.ErrEnvironment)

	var failure *SearchFailure
	require.ErrorAs(t, err, &failure)
	assert.Equal(t, "zhihu", failure.Engine)
	assert.Equal(t, "golang", failure.Query)
}

func TestZhihuSearchEmptyQuery(t *testing.T) {
	e := NewZhihuEngine(&fakeProvider{}, browser.DefaultProfile(), testZhihuConfig(t), nil)

	_, err := e.Search(context.Background(), "   ", 10)
	assert.ErrorIs(t, err, ErrEmptyQuery)
}

func TestZhihuSearchEndToEnd(t *testing.T) {
	t.Setenv("TEST_ZHIHU_ENGINE_COOKIE", "")

	tests := []struct {
		name    string
		payload string
		want    []SearchResult
	}{
		{
			name:    "answer link",
			payload: `{"data":[{"object":{"title":"T","excerpt":"E","author":{"name":"A"},"question":{"id":"1"},"id":"2"}}]}`,
			want: []SearchResult{{
				Title:       "T",
				URL:         "https://www.zhihu.com/question/1/answer/2",
				Description: "E",
				Author:      "A",
				Source:      "zhihu",
				Engine:      "zhihu",
				Timestamp:   "2025-03-01T12:30:00Z",
			}},
		},
		{
			name:    "error payload ends in capture timeout",
			payload: `{"error":"rate limited"}`,
			want:    []SearchResult{},
		},
		{
			name:    "item without object skipped",
			payload: `{"data":[{"type":"ad"},{"object":{"title":"kept","url":"https://zhuanlan.zhihu.com/p/1"}}]}`,
			want: []SearchResult{{
				Title:     "kept",
				URL:       "https://zhuanlan.zhihu.com/p/1",
				Source:    "zhihu",
				Engine:    "zhihu",
				Timestamp: "2025-03-01T12:30:00Z",
			}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			page := &fakePage{
				navigate: func(ctx context.Context, emit func(browser.Response)) error {
					emit(browser.Response{URL: testAPIURL, Body: []byte(tt.payload)})
					return nil
				},
			}
			e := NewZhihuEngine(&fakeProvider{inst: &fakeInstance{page: page}}, browser.DefaultProfile(), testZhihuConfig(t), nil)
			e.now = func() time.Time { return mapperNow }

			results, err := e.Search(context.Background(), "test", 10)
			require.NoError(t, err)
			assert.Equal(t, tt.want, results)
			assert.Equal(t, 1, page.closeCount())
		})
	}
}
