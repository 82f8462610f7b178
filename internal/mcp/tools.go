package mcp

import (
	"github.com/luoluoluo22/baidu-search-api/internal/config"
)

const searchToolDescription = "Search Zhihu (rendered in a headless browser) or Baidu and return normalized results " +
	"with title, url, description, author and source."

// GetTools 获取所有 MCP 工具定义
func GetTools(cfg *config.Config) []Tool {
	one := 1

	return []Tool{
		{
			Name:        cfg.MCP.SearchTool,
			Description: searchToolDescription,
			InputSchema: InputSchema{
				Type: "object",
				Properties: map[string]Property{
					"query": {
						Type:        "string",
						Description: "The search query string",
					},
					"limit": {
						Type:        "number",
						Description: "Maximum number of results to return",
						Default:     cfg.Search.DefaultLimit,
						Minimum:     &one,
					},
					"page": {
						Type:        "number",
						Description: "Result page, starting at 1 (only engines with paging honor it)",
						Default:     1,
						Minimum:     &one,
					},
					"engines": {
						Type:        "array",
						Description: "Search engines to use. Default: " + cfg.Search.DefaultEngine,
						Items:       &Items{Type: "string", Enum: allowedEngines(cfg)},
					},
				},
				Required: []string{"query"},
			},
		},
	}
}

func allowedEngines(cfg *config.Config) []string {
	if len(cfg.Search.AllowedEngines) > 0 {
		return cfg.Search.AllowedEngines
	}
	return config.ValidEngines
}
