// Package summary 为新条目生成中文摘要。
// 约定：Summarize 永不失败、永不返回空串，失败信息以内联标记写进返回值，
// 由调用方原样入库，避免单条摘要失败中断整条流水线。
package summary

import (
	"context"
	"strings"
)

const (
	// 摘要最大长度（rune），远端与本地两种模式共用
	maxSummaryRunes = 600

	// 兜底截断长度，与本地模式无 URL 时的行为一致
	fallbackTruncateRunes = 150

	emptyPlaceholder = "（暂无简介）"
)

type Summarizer interface {
	Summarize(ctx context.Context, text, sourceLabel, url string) string
}

// truncateRunes 按 rune 截断并补省略号
func truncateRunes(s string, limit int) string {
	s = strings.TrimSpace(s)
	rs := []rune(s)
	if len(rs) <= limit {
		return s
	}
	return string(rs[:limit]) + "..."
}

// boundSummary 对最终摘要做统一的非空与长度保护
func boundSummary(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return emptyPlaceholder
	}
	return truncateRunes(s, maxSummaryRunes)
}
