package engine

import (
	"errors"
	"fmt"
)

var (
	// ErrEngineNotAllowed 引擎不存在或未被配置允许
	ErrEngineNotAllowed = errors.New("engine not allowed")

	// ErrEmptyQuery 搜索关键词为空
	ErrEmptyQuery = errors.New("empty query")
)

// SearchFailure 一次搜索无法完成时返回的错误
type SearchFailure struct {
	Engine string
	Query  string
	Err    error
}

func (e *SearchFailure) Error() string {
	return fmt.Sprintf("%s search %q failed: %v", e.Engine, e.Query, e.Err)
}

func (e *SearchFailure) Unwrap() error { return e.Err }
