package summary

import (
	"context"
	"log"
	"net/http"
	nurl "net/url"
	"strings"
	"time"

	readability "github.com/go-shiori/go-readability"
)

const (
	localFetchTimeout   = 10 * time.Second
	localExtractedRunes = 300
	extractedPrefix     = "[自动提取] "
)

// LocalSummarizer 不依赖任何远端模型：
// 有 URL 时抓取原文并用 readability 抽取正文做摘要，
// 抽取失败或无 URL 时退化为对原始文本的截断。
type LocalSummarizer struct {
	client *http.Client
}

func NewLocalSummarizer() *LocalSummarizer {
	return &LocalSummarizer{
		client: &http.Client{Timeout: localFetchTimeout},
	}
}

func (l *LocalSummarizer) Summarize(ctx context.Context, text, sourceLabel, url string) string {
	if url == "" {
		return boundSummary(truncateRunes(text, fallbackTruncateRunes))
	}

	extracted, err := l.extract(ctx, url)
	if err != nil {
		log.Printf("summary: local extraction failed for %s: %v", url, err)
		return boundSummary(truncateRunes(text, fallbackTruncateRunes))
	}
	if extracted == "" {
		return boundSummary(truncateRunes(text, fallbackTruncateRunes))
	}

	return boundSummary(extractedPrefix + truncateRunes(extracted, localExtractedRunes))
}

func (l *LocalSummarizer) extract(ctx context.Context, rawURL string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("User-Agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/91.0.4472.124 Safari/537.36")

	resp, err := l.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	pageURL, err := nurl.Parse(rawURL)
	if err != nil {
		return "", err
	}

	doc, err := readability.FromReader(resp.Body, pageURL)
	if err != nil {
		return "", err
	}

	if excerpt := strings.TrimSpace(doc.Excerpt); excerpt != "" {
		return excerpt, nil
	}
	return strings.TrimSpace(doc.TextContent), nil
}
