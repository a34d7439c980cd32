// Package classifier 基于关键词把资讯归入固定的三个类别。
package classifier

import "strings"

const (
	CategoryTechnology = "Technology"
	CategoryProduct    = "Product"
	CategoryOther      = "Other"
)

// 中英双语关键词表：产品向 vs 技术向
var (
	productKeywords = []string{
		"launch", "release", "product", "app", "service", "startup", "tool", "platform",
		"发布", "产品", "应用", "上线", "工具",
	}
	techKeywords = []string{
		"paper", "algorithm", "model", "architecture", "code", "repo", "library", "framework", "dataset",
		"论文", "算法", "模型", "架构", "代码", "库", "框架", "数据集", "transformer", "diffusion",
	}

	// 平局时的技术来源标记
	techOriginMarkers = []string{"github", "hugging face", "arxiv"}
)

// Classify 对标题 + 描述做不区分大小写的关键词计分，严格多数者胜；
// 平局时若文本带有技术来源标记则归 Technology，否则归 Other。
// 纯函数，任何输入都返回三个类别之一。
func Classify(title, description string) string {
	text := strings.ToLower(title + " " + description)

	scoreProd := countMatches(text, productKeywords)
	scoreTech := countMatches(text, techKeywords)

	switch {
	case scoreTech > scoreProd:
		return CategoryTechnology
	case scoreProd > scoreTech:
		return CategoryProduct
	}

	for _, marker := range techOriginMarkers {
		if strings.Contains(text, marker) {
			return CategoryTechnology
		}
	}
	return CategoryOther
}

func countMatches(text string, keywords []string) int {
	n := 0
	for _, k := range keywords {
		if strings.Contains(text, k) {
			n++
		}
	}
	return n
}
