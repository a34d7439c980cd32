// Package notify 把已入库的资讯渲染为每日摘要并推送到外部渠道。
// 各渠道相互独立：某个渠道失败只记日志，不影响其它渠道，也绝不回写任何记录。
package notify

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/LJTian/AIDailyHub/internal/storage"
)

const (
	digestItemCount       = 10
	digestSummaryMaxRunes = 100
	pushTimeout           = 10 * time.Second
)

// NewsReader 摘要推送只需要只读访问
type NewsReader interface {
	ListLatest(limit int) ([]storage.News, error)
}

type Notifier struct {
	store NewsReader

	feishuWebhookURL string
	webURL           string
	wechat           *WeChatTemplateSender

	client *http.Client
}

func New(store NewsReader, feishuWebhookURL, webURL string, wechat *WeChatTemplateSender) *Notifier {
	return &Notifier{
		store:            store,
		feishuWebhookURL: feishuWebhookURL,
		webURL:           webURL,
		wechat:           wechat,
		client:           &http.Client{Timeout: pushTimeout},
	}
}

// PushDailyDigest 读取最新记录并推送到所有已配置的渠道。
// 没有可推送内容时不产生任何外发请求。
func (n *Notifier) PushDailyDigest(ctx context.Context) error {
	items, err := n.store.ListLatest(digestItemCount)
	if err != nil {
		return fmt.Errorf("notify: load latest news: %w", err)
	}
	if len(items) == 0 {
		log.Println("notify: no news to push")
		return nil
	}

	dateStr := time.Now().Format("2006-01-02")
	title := "AI Daily Digest - " + dateStr
	content := renderDigest(items, n.webURL)

	if n.feishuWebhookURL != "" {
		if err := n.sendFeishuWebhook(ctx, title, content); err != nil {
			log.Printf("notify: feishu push failed: %v", err)
		} else {
			log.Println("notify: feishu notification sent")
		}
	} else {
		log.Println("notify: feishu webhook not set, skipping")
	}

	if n.wechat != nil {
		n.wechat.SendDigest(ctx, title, items)
	}

	return nil
}

// renderDigest 渲染 markdown 摘要正文：序号 + 标题链接 + 截断摘要 + 来源
func renderDigest(items []storage.News, webURL string) string {
	var b strings.Builder
	for i, item := range items {
		fmt.Fprintf(&b, "**%d. [%s](%s)**\n", i+1, item.Title, item.URL)
		if item.Summary != nil && *item.Summary != "" {
			b.WriteString(truncateRunes(*item.Summary, digestSummaryMaxRunes))
			b.WriteString("\n")
		}
		fmt.Fprintf(&b, "_%s_\n\n", item.Source)
	}
	if webURL != "" {
		fmt.Fprintf(&b, "\n[查看完整列表](%s)", webURL)
	}
	return b.String()
}

func truncateRunes(s string, limit int) string {
	rs := []rune(s)
	if len(rs) <= limit {
		return s
	}
	return string(rs[:limit]) + "..."
}
