package engine

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"
)

const baiduEngineName = "baidu"

// errBaiduCaptcha 被重定向到百度安全验证页面
var errBaiduCaptcha = errors.New("baidu captcha required")

// baiduUserAgent 与百度首页预热请求共用
const baiduUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

// BaiduEngine 百度搜索引擎实现（纯 HTTP + HTML 解析）
type BaiduEngine struct {
	client  *http.Client
	baseURL string
	log     *zap.Logger
}

// NewBaiduEngine 创建百度搜索引擎实例
func NewBaiduEngine(proxyURL string, log *zap.Logger) *BaiduEngine {
	if log == nil {
		log = zap.NewNop()
	}
	jar, _ := cookiejar.New(nil)

	transport := &http.Transport{}
	if proxyURL != "" {
		if proxy, err := url.Parse(proxyURL); err == nil {
			transport.Proxy = http.ProxyURL(proxy)
		}
	}

	return &BaiduEngine{
		client: &http.Client{
			Timeout:   30 * time.Second,
			Jar:       jar,
			Transport: transport,
		},
		baseURL: "https://www.baidu.com",
		log:     log.Named(baiduEngineName),
	}
}

// Name 返回引擎名称
func (e *BaiduEngine) Name() string {
	return baiduEngineName
}

// Search 执行百度搜索（第一页）
func (e *BaiduEngine) Search(ctx context.Context, query string, limit int) ([]SearchResult, error) {
	return e.SearchPage(ctx, query, 1, limit)
}

// SearchPage 搜索指定页，page 从 1 开始
func (e *BaiduEngine) SearchPage(ctx context.Context, query string, page, limit int) ([]SearchResult, error) {
	if strings.TrimSpace(query) == "" {
		return nil, &SearchFailure{Engine: baiduEngineName, Query: query, Err: ErrEmptyQuery}
	}
	if page < 1 {
		page = 1
	}

	// 先访问首页拿 cookie，失败不影响搜索
	if err := e.warmup(ctx); err != nil {
		e.log.Warn("⚠️ Baidu warmup failed", zap.Error(err))
	}

	results, err := e.fetch(ctx, query, page)
	if err != nil {
		return nil, &SearchFailure{Engine: baiduEngineName, Query: query, Err: err}
	}
	if limit > 0 && len(results) > limit {
		results = results[:limit]
	}

	e.log.Info("🔍 Baidu search finished", zap.String("query", query), zap.Int("page", page), zap.Int("results", len(results)))
	return results, nil
}

// warmup 访问百度主页获取初始 cookie
func (e *BaiduEngine) warmup(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, e.baseURL+"/", nil)
	if err != nil {
		return err
	}
	e.setHeaders(req)

	resp, err := e.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

func (e *BaiduEngine) fetch(ctx context.Context, query string, page int) ([]SearchResult, error) {
	params := url.Values{}
	params.Set("wd", query)
	params.Set("pn", strconv.Itoa((page-1)*10))
	params.Set("rn", "10")
	params.Set("ie", "utf-8")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, e.baseURL+"/s?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("create request failed: %w", err)
	}
	e.setHeaders(req)

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("parse HTML failed: %w", err)
	}

	if isBaiduCaptcha(doc) {
		return nil, errBaiduCaptcha
	}
	return parseBaiduResults(doc), nil
}

// setHeaders 设置请求头
func (e *BaiduEngine) setHeaders(req *http.Request) {
	req.Header.Set("User-Agent", baiduUserAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,image/webp,image/apng,*/*;q=0.8")
	req.Header.Set("Accept-Language", "zh-CN,zh;q=0.9,en;q=0.8")
	req.Header.Set("Connection", "keep-alive")
}

func isBaiduCaptcha(doc *goquery.Document) bool {
	title := doc.Find("title").Text()
	if strings.Contains(title, "安全验证") {
		return true
	}
	return doc.Find(`a[href*="wappass.baidu.com"], form[action*="wappass.baidu.com"]`).Length() > 0
}

var (
	baiduDescSelectors   = []string{".content-right", ".c-abstract", ".content", ".c-row"}
	baiduSourceSelectors = ".c-showurl, .source"
)

// parseBaiduResults 解析结果容器；缺少标题链接的容器跳过
func parseBaiduResults(doc *goquery.Document) []SearchResult {
	results := []SearchResult{}

	doc.Find("div.result, div.c-container").Each(func(_ int, s *goquery.Selection) {
		// 嵌套容器只处理最外层
		if s.ParentsFiltered("div.result, div.c-container").Length() > 0 {
			return
		}

		titleEl := s.Find("h3 a").First()
		title := cleanText(titleEl.Text())
		href, ok := titleEl.Attr("href")
		if title == "" || !ok || href == "" {
			return
		}

		description := ""
		for _, sel := range baiduDescSelectors {
			if description = cleanText(s.Find(sel).First().Text()); description != "" {
				break
			}
		}

		results = append(results, SearchResult{
			Title:       title,
			URL:         href,
			Description: description,
			Source:      cleanText(s.Find(baiduSourceSelectors).First().Text()),
			Engine:      baiduEngineName,
		})
	})

	return results
}

// cleanText 折叠空白
func cleanText(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
