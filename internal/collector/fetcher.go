package collector

import "time"

// 所有数据源请求的统一超时时间，避免单个来源拖慢整条流水线
const RequestTimeout = 10 * time.Second

const browserUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/91.0.4472.124 Safari/537.36"

// CandidateItem 单个数据源抓取到的原始条目，尚未去重与加工。
// URL 作为全局唯一键，入库前用它判断是否已见过。
type CandidateItem struct {
	Title       string
	URL         string
	Description string
	Source      string
	Stars       string
	Upvotes     string
	Thumbnail   string
	Extra       map[string]any
}

// Fetcher 抽象每一个数据源。
// 约定：实现内部消化解析错误（跳过坏条目而不是中断整次抓取）；
// 网络层面的失败通过 error 返回，由流水线降级为空结果。
type Fetcher interface {
	Name() string
	Fetch() ([]CandidateItem, error)
}
