package engine

import (
	"fmt"
	"time"

	"github.com/tidwall/gjson"
)

const zhihuEngineName = "zhihu"

// mapZhihuPayload 把 search_v3 响应转换为搜索结果。
// 缺失字段取空串；没有 object 的条目单独跳过，不影响其他条目。
func mapZhihuPayload(payload []byte, now time.Time) []SearchResult {
	results := []SearchResult{}
	if !gjson.ValidBytes(payload) {
		return results
	}

	data := gjson.GetBytes(payload, "data")
	if !data.IsArray() {
		return results
	}

	ts := now.Format(time.RFC3339)
	for _, item := range data.Array() {
		obj := item.Get("object")
		if !obj.IsObject() {
			continue
		}

		results = append(results, SearchResult{
			Title:       obj.Get("title").String(),
			URL:         zhihuLink(obj),
			Description: obj.Get("excerpt").String(),
			Author:      obj.Get("author.name").String(),
			Source:      zhihuEngineName,
			Engine:      zhihuEngineName,
			Timestamp:   ts,
		})
	}
	return results
}

// zhihuLink 有问题 id 时拼回答链接，否则用条目自带的 url
func zhihuLink(obj gjson.Result) string {
	if qid := obj.Get("question.id"); qid.Exists() {
		return fmt.Sprintf("https://www.zhihu.com/question/%s/answer/%s", qid.String(), obj.Get("id").String())
	}
	return obj.Get("url").String()
}
